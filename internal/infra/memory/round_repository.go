package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"brainrace-live-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question pool from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error)
}

// RoundRepository caches question pools per filter combination with TTL to
// avoid repeated store hits, and draws round sequences from the cached pool.
type RoundRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]cachedPool
}

type cachedPool struct {
	rounds    []domain.QuestionRound
	expiresAt time.Time
}

func NewRoundRepository(loader QuestionLoader, ttl time.Duration) *RoundRepository {
	return &RoundRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
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
	key := filters.Key()
	now := r.clock()

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.Unlock()
		return entry.rounds, nil
	}
	r.mu.Unlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.Lock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.Unlock()
			return entry.rounds, nil
		}
		r.mu.Unlock()

		rounds, err := r.loader.LoadQuestions(ctx, filters)
		if err != nil {
			return nil, err
		}

		ttl := r.ttlWithJitter()
		r.mu.Lock()
		r.cache[key] = cachedPool{
			rounds:    rounds,
			expiresAt: now.Add(ttl),
		}
		r.mu.Unlock()
		return rounds, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRound), nil
}

func (r *RoundRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed in-memory question pool (tests/demos).
// Category filtering happens loader-side, mirroring a store-backed loader.
type StaticQuestionLoader struct {
	pool []domain.QuestionRound
}

func NewStaticQuestionLoader(pool []domain.QuestionRound) *StaticQuestionLoader {
	return &StaticQuestionLoader{pool: pool}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error) {
	if len(filters.Categories) == 0 {
		return l.pool, nil
	}
	wanted := make(map[string]struct{}, len(filters.Categories))
	for _, c := range filters.Categories {
		wanted[c] = struct{}{}
	}
	out := make([]domain.QuestionRound, 0, len(l.pool))
	for _, q := range l.pool {
		if _, ok := wanted[q.Category]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
