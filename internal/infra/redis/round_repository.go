package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"brainrace-live-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question pool from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error)
}

// RoundRepository caches question pools in Redis (one JSON blob per filter
// combination) and falls back to a loader on cache miss. Pools are stored as:
// SET questions:{filterKey} {json} EX {ttl}
type RoundRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRoundRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *RoundRepository {
	return &RoundRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Rounds implements app.RoundSupplier.
func (r *RoundRepository) Rounds(ctx context.Context, filters domain.RoundFilters, count int) ([]domain.QuestionRound, error) {
	pool, err := r.pool(ctx, filters)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.SelectRounds(pool, filters, count, r.rnd), nil
}

func (r *RoundRepository) pool(ctx context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error) {
	key := r.poolKey(filters)

	if pool, ok := r.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx, filters)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(pool); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRound), nil
}

func (r *RoundRepository) cached(ctx context.Context, key string) ([]domain.QuestionRound, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var pool []domain.QuestionRound
	if err := json.Unmarshal(data, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	return pool, true
}

func (r *RoundRepository) poolKey(filters domain.RoundFilters) string {
	return "questions:" + filters.Key()
}

func (r *RoundRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
