package postgres

import (
	"context"
	"fmt"

	"brainrace-live-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ScoreStore persists finished-game scores and serves the top-N leaderboard.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// RecordScores implements app.ScoreRecorder.
func (s *ScoreStore) RecordScores(ctx context.Context, records []domain.ScoreRecord) error {
	for _, rec := range records {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO scores (player_name, score, total_questions, created_at) VALUES ($1, $2, $3, $4)`,
			rec.PlayerName, rec.Score, rec.TotalQuestions, rec.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	return nil
}

// TopScores returns the best score per player, highest first.
func (s *ScoreStore) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT player_name, MAX(score) AS best
		   FROM scores
		  GROUP BY player_name
		  ORDER BY best DESC, player_name ASC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.PlayerName, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	return entries, nil
}
