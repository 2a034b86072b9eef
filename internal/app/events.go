package app

import "brainrace-live-service/internal/domain"

// Event is the outbound wire envelope shared by every server-to-client message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Conn is one outbound channel to a single player. Implementations must not
// block the caller: a send that cannot be delivered promptly returns an error
// and the room marks the player disconnected.
type Conn interface {
	Send(event Event) error
	Close()
}

// Outbound event types.
const (
	EventRoomCreated    = "room_created"
	EventRoomJoined     = "room_joined"
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventRoomClosed     = "room_closed"
	EventError          = "error"
	EventCountdown      = "countdown"
	EventGameStart      = "game_start"
	EventQuestion       = "question"
	EventTimer          = "timer"
	EventPlayerAnswered = "player_answered"
	EventAnswerResult   = "answer_result"
	EventGameOver       = "game_over"
	EventChat           = "chat"
)

type RoomCreatedPayload struct {
	RoomCode string              `json:"room_code"`
	Players  []domain.PlayerView `json:"players"`
}

type RoomJoinedPayload struct {
	RoomCode string              `json:"room_code"`
	Host     string              `json:"host"`
	Players  []domain.PlayerView `json:"players"`
}

type PlayerJoinedPayload struct {
	Player  string              `json:"player"`
	Players []domain.PlayerView `json:"players"`
}

type PlayerLeftPayload struct {
	Player  string              `json:"player"`
	Players []domain.PlayerView `json:"players"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type CountdownPayload struct {
	Count int `json:"count"`
}

type GameStartPayload struct {
	TotalQuestions int `json:"total_questions"`
}

// QuestionPayload never carries the correct index.
type QuestionPayload struct {
	QuestionNumber int      `json:"question_number"`
	TotalQuestions int      `json:"total_questions"`
	Question       string   `json:"question"`
	Choices        []string `json:"choices"`
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	TimeLimit      int      `json:"time_limit"`
}

type TimerPayload struct {
	Remaining int `json:"remaining"`
}

// PlayerAnsweredPayload says who has answered, never what.
type PlayerAnsweredPayload struct {
	Player  string              `json:"player"`
	Players []domain.PlayerView `json:"players"`
}

type AnswerResultPayload struct {
	CorrectAnswer int                  `json:"correct_answer"`
	Explanation   string               `json:"explanation"`
	Results       []domain.RoundResult `json:"results"`
	Standings     []domain.PlayerView  `json:"standings"`
}

type GameOverPayload struct {
	Standings      []domain.Standing `json:"standings"`
	TotalQuestions int               `json:"total_questions"`
}

type ChatPayload struct {
	Player  string `json:"player"`
	Message string `json:"message"`
}
