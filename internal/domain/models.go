package domain

import "time"

// RoundFilters selects question content when a room is created.
type RoundFilters struct {
	Categories []string
	Difficulty string // "easy", "medium", "hard", "progressive" or "mixed"
}

// Key returns a stable cache key for the filter combination.
func (f RoundFilters) Key() string {
	key := ""
	for i, c := range f.Categories {
		if i > 0 {
			key += ","
		}
		key += c
	}
	return key + "|" + f.Difficulty
}

// QuestionRound is one question cycle's content. It is immutable once drawn
// from the supplier; rooms only advance an index over the sequence.
type QuestionRound struct {
	Question     string        `json:"question"`
	Choices      []string      `json:"choices"`
	CorrectIndex int           `json:"correct_answer"`
	Category     string        `json:"category"`
	Difficulty   string        `json:"difficulty"`
	Explanation  string        `json:"explanation"`
	TimeLimit    time.Duration `json:"-"`
}

// PlayerView is the broadcast-friendly snapshot of one player in a room.
type PlayerView struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	Streak       int    `json:"streak"`
	CorrectCount int    `json:"correct_count"`
	Answered     bool   `json:"answered"`
	Connected    bool   `json:"connected"`
	IsHost       bool   `json:"is_host"`
}

// RoundResult is one player's outcome for a single revealed round.
// Answer is nil when the player never submitted.
type RoundResult struct {
	Name         string `json:"name"`
	Answer       *int   `json:"answer"`
	Correct      bool   `json:"correct"`
	PointsEarned int    `json:"points_earned"`
	Score        int    `json:"score"`
	Streak       int    `json:"streak"`
}

// Standing is one entry of the final ranked standings.
type Standing struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	BestStreak   int    `json:"best_streak"`
	CorrectCount int    `json:"correct_count"`
}

// ScoreRecord is a finished player's result, handed to the score store.
type ScoreRecord struct {
	PlayerName     string
	Score          int
	TotalQuestions int
	RecordedAt     time.Time
}

// LeaderboardEntry is a row of the persistent top-N leaderboard.
type LeaderboardEntry struct {
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
}
