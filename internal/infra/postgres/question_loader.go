package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"brainrace-live-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question JSONB rows from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns the question pool restricted to the requested
// categories. Difficulty filtering and ordering happen in the selection step,
// so one pool per category set serves every difficulty mode.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error) {
	query := `SELECT category, difficulty, data FROM questions`
	args := []interface{}{}
	if len(filters.Categories) > 0 {
		query += ` WHERE category = ANY($1)`
		args = append(args, filters.Categories)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var pool []domain.QuestionRound
	for rows.Next() {
		var category, difficulty string
		var raw []byte
		if err := rows.Scan(&category, &difficulty, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var round domain.QuestionRound
		if err := json.Unmarshal(raw, &round); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		round.Category = category
		round.Difficulty = difficulty
		pool = append(pool, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return pool, nil
}
