package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not match a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room has reached its player cap.
	ErrRoomFull = errors.New("room is full")
	// ErrNameTaken is returned when the name is held by a connected player.
	ErrNameTaken = errors.New("player name already taken")
	// ErrRoomNotJoinable is returned for joins after the game has started.
	ErrRoomNotJoinable = errors.New("game already started")
	// ErrNotEnoughPlayers rejects starting a live battle with fewer than two players.
	ErrNotEnoughPlayers = errors.New("need at least 2 connected players to start")
	// ErrNotHost is returned when a non-host player tries to start the game.
	ErrNotHost = errors.New("only the host can start the game")
	// ErrNotAcceptingAnswers is returned for submissions outside the question stage.
	ErrNotAcceptingAnswers = errors.New("room is not accepting answers")
	// ErrAlreadyAnswered is returned when a player already holds a ledger entry this round.
	ErrAlreadyAnswered = errors.New("answer already recorded for this round")
	// ErrInvalidChoice is returned when the submitted index is out of range.
	ErrInvalidChoice = errors.New("choice index out of range")
	// ErrPlayerNotFound is returned when a player acts in a room they never joined.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrSupplierUnavailable indicates no questions could be produced for the filters.
	ErrSupplierUnavailable = errors.New("no questions available for the requested filters")
)
