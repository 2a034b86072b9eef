package app

import "time"

// ScoringPolicy maps (difficulty, elapsed time, correctness) to points.
// Streaks are tracked alongside scores but never multiply points in live
// battle; the solo mode's streak multiplier is a separate table and applying
// both would double-count the bonus.
type ScoringPolicy struct {
	BasePoints       map[string]int
	FastAnswerWindow time.Duration
	SpeedBonus       int
}

// DefaultScoringPolicy returns the standard live-battle tier values.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		BasePoints: map[string]int{
			"easy":   10,
			"medium": 20,
			"hard":   30,
		},
		FastAnswerWindow: 5 * time.Second,
		SpeedBonus:       5,
	}
}

// Points returns the points earned for one answer. Wrong or missing answers
// earn zero; a timed-out player is scored with correct=false.
func (p ScoringPolicy) Points(difficulty string, elapsed time.Duration, correct bool) int {
	if !correct {
		return 0
	}
	points, ok := p.BasePoints[difficulty]
	if !ok {
		points = p.BasePoints["easy"]
	}
	if elapsed >= 0 && elapsed < p.FastAnswerWindow {
		points += p.SpeedBonus
	}
	return points
}

// NextStreak advances a consecutive-correct streak: correct answers extend it,
// anything else resets it to zero.
func NextStreak(streak int, correct bool) int {
	if correct {
		return streak + 1
	}
	return 0
}
