package app

import "time"

// Settings carries the tunables of the live-battle engine. TickInterval is the
// real-time length of one broadcast "second" (countdown ticks and timer
// updates); tests shrink it to run games in milliseconds.
type Settings struct {
	MaxPlayers        int
	RoundsPerGame     int
	CountdownSeconds  int
	QuestionTime      time.Duration
	RevealHold        time.Duration
	TickInterval      time.Duration
	IdleTimeout       time.Duration
	FinishedRetention time.Duration
	ReapInterval      time.Duration
	Scoring           ScoringPolicy
}

// DefaultSettings mirrors the production defaults: 15s questions, a 3 second
// countdown, 4s reveal hold, finished rooms kept for one minute.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:        8,
		RoundsPerGame:     10,
		CountdownSeconds:  3,
		QuestionTime:      15 * time.Second,
		RevealHold:        4 * time.Second,
		TickInterval:      time.Second,
		IdleTimeout:       10 * time.Minute,
		FinishedRetention: time.Minute,
		ReapInterval:      30 * time.Second,
		Scoring:           DefaultScoringPolicy(),
	}
}
