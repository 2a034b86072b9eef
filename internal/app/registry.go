package app

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"brainrace-live-service/internal/domain"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 5

// RoundSupplier produces an ordered round sequence for a new room.
type RoundSupplier interface {
	Rounds(ctx context.Context, filters domain.RoundFilters, count int) ([]domain.QuestionRound, error)
}

// ScoreRecorder receives final scores when a game finishes.
type ScoreRecorder interface {
	RecordScores(ctx context.Context, records []domain.ScoreRecord) error
}

// Registry owns every live room, keyed by code. It is the only process-wide
// shared state; rooms never reference each other.
type Registry struct {
	supplier RoundSupplier
	recorder ScoreRecorder
	settings Settings
	log      *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
	rnd   *rand.Rand
}

// NewRegistry builds a registry. recorder may be nil when final scores are
// not persisted.
func NewRegistry(supplier RoundSupplier, recorder ScoreRecorder, settings Settings, log *slog.Logger) *Registry {
	return &Registry{
		supplier: supplier,
		recorder: recorder,
		settings: settings,
		log:      log,
		rooms:    make(map[string]*Room),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom draws a round sequence for the filters, allocates an unused code
// and seats the host as the first player.
func (g *Registry) CreateRoom(ctx context.Context, hostName string, filters domain.RoundFilters, conn Conn) (*Room, error) {
	rounds, err := g.supplier.Rounds(ctx, filters, g.settings.RoundsPerGame)
	if err != nil {
		g.log.Warn("round supplier failed", "filters", filters.Key(), "error", err)
		return nil, domain.ErrSupplierUnavailable
	}
	if len(rounds) == 0 {
		return nil, domain.ErrSupplierUnavailable
	}
	for i := range rounds {
		rounds[i].TimeLimit = g.settings.QuestionTime
	}

	g.mu.Lock()
	code := g.generateCodeLocked()
	room := newRoom(code, g.settings, rounds, g.log, g.recordScores)
	g.rooms[code] = room
	g.mu.Unlock()

	room.addHost(hostName, conn)
	g.log.Info("room created", "room", code, "host", hostName, "rounds", len(rounds))
	return room, nil
}

// JoinRoom seats a player in a waiting room. Codes are case-insensitive.
func (g *Registry) JoinRoom(code, playerName string, conn Conn) (*Room, error) {
	room, ok := g.GetRoom(code)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if err := room.Join(playerName, conn); err != nil {
		return nil, err
	}
	g.log.Info("player joined", "room", room.Code(), "player", playerName)
	return room, nil
}

// GetRoom looks a live room up by code.
func (g *Registry) GetRoom(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[strings.ToUpper(code)]
	return room, ok
}

// Run drives the reaper until the context is canceled.
func (g *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(g.settings.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.reap(now)
		}
	}
}

// reap reclaims idle and lingering finished rooms. Each room is closed under
// its own lock before it leaves the map, so a join racing with removal either
// fails with RoomNotFound or lands on a still-live instance.
func (g *Registry) reap(now time.Time) {
	g.mu.RLock()
	candidates := make([]*Room, 0)
	for _, room := range g.rooms {
		if room.reapable(now) {
			candidates = append(candidates, room)
		}
	}
	g.mu.RUnlock()

	for _, room := range candidates {
		if !room.reclaim(now, "room expired") {
			continue
		}
		g.mu.Lock()
		delete(g.rooms, room.Code())
		g.mu.Unlock()
		g.log.Info("room reaped", "room", room.Code())
	}
}

func (g *Registry) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[g.rnd.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}

func (g *Registry) recordScores(code string, records []domain.ScoreRecord) {
	if g.recorder == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.recorder.RecordScores(ctx, records); err != nil {
		g.log.Error("recording final scores failed", "room", code, "error", err)
		return
	}
	g.log.Info("final scores recorded", "room", code, "players", len(records))
}
