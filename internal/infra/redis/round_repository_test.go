package redis

import (
	"context"
	"testing"
	"time"

	"brainrace-live-service/internal/domain"
	"brainrace-live-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func samplePool() []domain.QuestionRound {
	return []domain.QuestionRound{
		{Question: "q1", Choices: []string{"a", "b"}, CorrectIndex: 0, Category: "science", Difficulty: "easy"},
		{Question: "q2", Choices: []string{"a", "b"}, CorrectIndex: 1, Category: "science", Difficulty: "medium"},
		{Question: "q3", Choices: []string{"a", "b"}, CorrectIndex: 1, Category: "cold-war", Difficulty: "hard"},
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, filters domain.RoundFilters) ([]domain.QuestionRound, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, filters)
}

func TestRoundRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(samplePool())}
	repo := NewRoundRepository(client, loader, time.Minute)

	filters := domain.RoundFilters{Difficulty: "mixed"}
	rounds, err := repo.Rounds(context.Background(), filters, 2)
	if err != nil {
		t.Fatalf("rounds: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("questions:" + filters.Key()) {
		t.Fatalf("expected cached pool key in redis")
	}

	// Second call should hit cache, loader not incremented.
	if _, err := repo.Rounds(context.Background(), filters, 2); err != nil {
		t.Fatalf("rounds: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
