package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"brainrace-live-service/internal/domain"
)

// LeaderboardSource serves the persistent top-N leaderboard.
type LeaderboardSource interface {
	TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler exposes GET /leaderboard?limit=N.
type LeaderboardHandler struct {
	source LeaderboardSource
	log    *slog.Logger
}

func NewLeaderboardHandler(source LeaderboardSource, log *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{source: source, log: log}
}

func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.source.TopScores(r.Context(), limit)
	if err != nil {
		h.log.Error("leaderboard lookup failed", "error", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}
