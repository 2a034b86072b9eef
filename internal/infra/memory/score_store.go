package memory

import (
	"context"
	"sort"
	"sync"

	"brainrace-live-service/internal/domain"
)

// ScoreStore keeps finished-game scores in memory and serves a best-score-
// per-player leaderboard. Useful when no database is configured.
type ScoreStore struct {
	mu      sync.RWMutex
	records []domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{}
}

// RecordScores implements app.ScoreRecorder.
func (s *ScoreStore) RecordScores(_ context.Context, records []domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// TopScores returns the best score per player, highest first, name ascending
// on ties.
func (s *ScoreStore) TopScores(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	best := make(map[string]int, len(s.records))
	for _, rec := range s.records {
		if score, ok := best[rec.PlayerName]; !ok || rec.Score > score {
			best[rec.PlayerName] = rec.Score
		}
	}
	s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(best))
	for name, score := range best {
		entries = append(entries, domain.LeaderboardEntry{PlayerName: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerName < entries[j].PlayerName
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
