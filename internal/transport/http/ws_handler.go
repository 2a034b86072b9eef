package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"brainrace-live-service/internal/app"
	"brainrace-live-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests to websockets and wires each player
// connection into the live-battle registry.
type WSHandler struct {
	registry *app.Registry
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *app.Registry, log *slog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Categories string `json:"categories"`
	Difficulty string `json:"difficulty"`
}

type answerPayload struct {
	Answer int `json:"answer"`
}

type chatPayload struct {
	Message string `json:"message"`
}

// ServeWS handles /ws?room=<code|create>&name=<player>. With room=create the
// first inbound message must be a create payload carrying the filters.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("room")
	playerName := strings.TrimSpace(r.URL.Query().Get("name"))
	if roomCode == "" || playerName == "" {
		http.Error(w, "missing room or name", http.StatusBadRequest)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	conn := newWSConn(raw)
	defer conn.Close()

	var room *app.Room
	if strings.EqualFold(roomCode, "create") {
		room, err = h.createRoom(r, raw, conn, playerName)
	} else {
		room, err = h.registry.JoinRoom(roomCode, playerName, conn)
	}
	if err != nil {
		// Nothing is enqueued on the writer yet, and the deferred Close would
		// tear the socket down before a buffered send flushes. Write directly
		// so the client sees why it was rejected.
		_ = raw.WriteJSON(app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: err.Error()}})
		return
	}

	h.readLoop(raw, conn, room, playerName)
	room.Disconnect(playerName)
}

func (h *WSHandler) createRoom(r *http.Request, raw *websocket.Conn, conn *wsConn, playerName string) (*app.Room, error) {
	var inbound inboundMessage
	if err := raw.ReadJSON(&inbound); err != nil {
		return nil, errors.New("expected create message")
	}
	var payload createPayload
	if inbound.Type != "create" || json.Unmarshal(inbound.Payload, &payload) != nil {
		return nil, errors.New("expected create message")
	}

	filters := domain.RoundFilters{Difficulty: payload.Difficulty}
	for _, c := range strings.Split(payload.Categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			filters.Categories = append(filters.Categories, c)
		}
	}
	return h.registry.CreateRoom(r.Context(), playerName, filters, conn)
}

// readLoop decodes inbound messages until the connection drops. Messages with
// an unrecognized type are ignored so protocol skew never kills a connection;
// state errors go back to the offending client only.
func (h *WSHandler) readLoop(raw *websocket.Conn, conn *wsConn, room *app.Room, playerName string) {
	for {
		var inbound inboundMessage
		if err := raw.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "start_game":
			if err := room.Start(playerName); err != nil {
				_ = conn.Send(app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: err.Error()}})
			}
		case "submit_answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				_ = conn.Send(app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: "invalid answer payload"}})
				continue
			}
			if err := room.SubmitAnswer(playerName, payload.Answer); err != nil {
				_ = conn.Send(app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: err.Error()}})
			}
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			room.Chat(playerName, payload.Message)
		default:
			h.log.Debug("ignoring unknown message type",
				"room", room.Code(), "player", playerName, "type", inbound.Type)
		}
	}
}
