package redis

import (
	"context"

	"brainrace-live-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:best"

// Leaderboard keeps the all-time best score per player in a Redis sorted set.
// ZADD GT only moves scores upward, so replayed games never lower an entry.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// RecordScores implements app.ScoreRecorder.
func (l *Leaderboard) RecordScores(ctx context.Context, records []domain.ScoreRecord) error {
	members := make([]redis.Z, 0, len(records))
	for _, rec := range records {
		members = append(members, redis.Z{Score: float64(rec.Score), Member: rec.PlayerName})
	}
	return l.client.ZAddGT(ctx, leaderboardKey, members...).Err()
}

// TopScores returns the highest-scoring players, best first.
func (l *Leaderboard) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		name, _ := row.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{
			PlayerName: name,
			Score:      int(row.Score),
		})
	}
	return entries, nil
}
