package http

import (
	"errors"
	"sync"

	"brainrace-live-service/internal/app"
	"github.com/gorilla/websocket"
)

var errSendBufferFull = errors.New("outbound buffer full")

// wsConn adapts one gorilla connection to app.Conn. Sends go through a
// buffered channel drained by a single writer goroutine, so the room's
// broadcast never blocks on a slow client and never writes concurrently.
type wsConn struct {
	conn *websocket.Conn
	send chan app.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:   conn,
		send:   make(chan app.Event, 32),
		closed: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) Send(event app.Event) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	case c.send <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.Close()
				return
			}
		}
	}
}
