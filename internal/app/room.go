package app

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"brainrace-live-service/internal/domain"
)

// State is a room's lifecycle stage. The state and the current round index
// jointly determine which inbound messages are accepted.
type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StateQuestion  State = "question"
	StateReveal    State = "reveal"
	StateGameOver  State = "game_over"
)

type answerEntry struct {
	choice  int
	elapsed time.Duration
}

type playerState struct {
	name         string
	conn         Conn
	joinOrder    int
	score        int
	streak       int
	bestStreak   int
	correctCount int
	connected    bool
	answered     bool
}

// Room is the authoritative state of one live-battle session. Every mutation
// funnels through its mutex; connections and timers never touch fields
// directly. The generation counter is bumped on each transition so a stale
// timer fire is a no-op against the changed state.
type Room struct {
	code     string
	settings Settings
	rounds   []domain.QuestionRound
	log      *slog.Logger
	now      func() time.Time
	onFinish func(code string, records []domain.ScoreRecord)

	mu           sync.Mutex
	state        State
	closed       bool
	host         string
	players      map[string]*playerState
	order        []string
	roundIndex   int
	ledger       map[string]answerEntry
	generation   int
	roundStart   time.Time
	createdAt    time.Time
	lastActivity time.Time
}

func newRoom(code string, settings Settings, rounds []domain.QuestionRound, log *slog.Logger, onFinish func(string, []domain.ScoreRecord)) *Room {
	now := time.Now()
	return &Room{
		code:         code,
		settings:     settings,
		rounds:       rounds,
		log:          log,
		now:          time.Now,
		onFinish:     onFinish,
		state:        StateWaiting,
		players:      make(map[string]*playerState),
		createdAt:    now,
		lastActivity: now,
	}
}

// Code returns the room's shareable join code.
func (r *Room) Code() string { return r.code }

// State returns the current lifecycle stage.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Host returns the name of the player holding start privileges.
func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// Players returns a join-ordered snapshot of the player list.
func (r *Room) Players() []domain.PlayerView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerListLocked()
}

// addHost seats the creating player and acknowledges with room_created.
func (r *Room) addHost(name string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = name
	r.addPlayerLocked(name, conn)
	r.sendLocked(name, Event{Type: EventRoomCreated, Payload: RoomCreatedPayload{
		RoomCode: r.code,
		Players:  r.playerListLocked(),
	}})
}

// Join seats a player in a waiting room. A disconnected player of the same
// name is reconnected; a still-connected name collides with ErrNameTaken.
func (r *Room) Join(name string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}
	if r.state != StateWaiting {
		return domain.ErrRoomNotJoinable
	}
	if p, ok := r.players[name]; ok {
		if p.connected {
			return domain.ErrNameTaken
		}
		p.conn = conn
		p.connected = true
	} else {
		if len(r.players) >= r.settings.MaxPlayers {
			return domain.ErrRoomFull
		}
		r.addPlayerLocked(name, conn)
	}
	r.lastActivity = r.now()

	r.sendLocked(name, Event{Type: EventRoomJoined, Payload: RoomJoinedPayload{
		RoomCode: r.code,
		Host:     r.host,
		Players:  r.playerListLocked(),
	}})
	r.broadcastLocked(Event{Type: EventPlayerJoined, Payload: PlayerJoinedPayload{
		Player:  name,
		Players: r.playerListLocked(),
	}})
	return nil
}

// Start begins the countdown. Host only, waiting rooms only, and at least two
// connected players so a single-player live battle is rejected outright.
func (r *Room) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return domain.ErrRoomNotJoinable
	}
	if name != r.host {
		return domain.ErrNotHost
	}
	if r.connectedCountLocked() < 2 {
		return domain.ErrNotEnoughPlayers
	}

	r.state = StateCountdown
	r.generation++
	r.roundIndex = 0
	r.lastActivity = r.now()
	for _, p := range r.players {
		p.score = 0
		p.streak = 0
		p.bestStreak = 0
		p.correctCount = 0
		p.answered = false
	}
	go r.runCountdown(r.generation)
	return nil
}

// SubmitAnswer records a choice in the round ledger. The ledger never
// overwrites: a second submission from the same player is rejected. When every
// connected player has answered the round reveals immediately.
func (r *Room) SubmitAnswer(name string, choice int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateQuestion {
		return domain.ErrNotAcceptingAnswers
	}
	p, ok := r.players[name]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if _, dup := r.ledger[name]; dup {
		return domain.ErrAlreadyAnswered
	}
	round := r.rounds[r.roundIndex]
	if choice < 0 || choice >= len(round.Choices) {
		return domain.ErrInvalidChoice
	}

	r.ledger[name] = answerEntry{choice: choice, elapsed: r.now().Sub(r.roundStart)}
	p.answered = true
	r.lastActivity = r.now()

	r.broadcastLocked(Event{Type: EventPlayerAnswered, Payload: PlayerAnsweredPayload{
		Player:  name,
		Players: r.playerListLocked(),
	}})

	if r.allConnectedAnsweredLocked() {
		r.revealLocked()
	}
	return nil
}

// Chat fans a chat line out to the room. Pass-through, never scored.
func (r *Room) Chat(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[name]; !ok {
		return
	}
	if runes := []rune(message); len(runes) > 200 {
		message = string(runes[:200])
	}
	r.lastActivity = r.now()
	r.broadcastLocked(Event{Type: EventChat, Payload: ChatPayload{Player: name, Message: message}})
}

// Disconnect marks a player gone. Their state is retained so standings still
// reflect their progress; the game continues for the rest. A departing host
// hands privileges to the next-joined connected player. A room that empties
// mid-game or after the game closes immediately rather than waiting for the
// reaper: only WAITING rooms have a rejoin path, so keeping the rest alive
// would just hold dead timers until the idle threshold.
func (r *Room) Disconnect(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok || !p.connected {
		return
	}
	p.connected = false
	p.conn = nil
	r.lastActivity = r.now()

	if name == r.host {
		next := ""
		for _, n := range r.order {
			if r.players[n].connected {
				next = n
				break
			}
		}
		if next == "" {
			// A waiting room survives until the reaper's idle threshold so a
			// brief connection blip can recover silently. Anything later is
			// closed outright.
			if r.state != StateWaiting {
				r.closeLocked()
			}
			return
		}
		r.host = next
	}

	r.broadcastLocked(Event{Type: EventPlayerLeft, Payload: PlayerLeftPayload{
		Player:  name,
		Players: r.playerListLocked(),
	}})

	// One dropped client must not stall the round for everyone else.
	if r.state == StateQuestion && r.allConnectedAnsweredLocked() {
		r.revealLocked()
	}
}

// FinalStandings returns the ranked end-of-game snapshot: score descending,
// ties broken by best streak, then by join order. Stable across repeated calls
// until the room is reaped.
func (r *Room) FinalStandings() []domain.Standing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalStandingsLocked()
}

// reclaim closes the room on behalf of the reaper, telling any remaining
// connections why. The reap condition is re-checked under the room lock so a
// join that revived the room in the meantime wins; the reaper backs off.
func (r *Room) reclaim(now time.Time, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reapableLocked(now) {
		return false
	}
	if !r.closed && r.connectedCountLocked() > 0 {
		r.broadcastLocked(Event{Type: EventRoomClosed, Payload: RoomClosedPayload{Reason: reason}})
	}
	r.closeLocked()
	return true
}

// reapable reports whether the reaper may reclaim the room.
func (r *Room) reapable(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reapableLocked(now)
}

func (r *Room) reapableLocked(now time.Time) bool {
	if r.closed {
		return true
	}
	if r.connectedCountLocked() == 0 && now.Sub(r.lastActivity) > r.settings.IdleTimeout {
		return true
	}
	if r.state == StateGameOver && now.Sub(r.lastActivity) > r.settings.FinishedRetention {
		return true
	}
	return false
}

func (r *Room) closeLocked() {
	r.closed = true
	r.generation++
	for _, p := range r.players {
		p.connected = false
		p.conn = nil
	}
}

func (r *Room) addPlayerLocked(name string, conn Conn) {
	r.players[name] = &playerState{
		name:      name,
		conn:      conn,
		joinOrder: len(r.order),
		connected: true,
	}
	r.order = append(r.order, name)
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.connected {
			n++
		}
	}
	return n
}

func (r *Room) allConnectedAnsweredLocked() bool {
	connected := 0
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		connected++
		if !p.answered {
			return false
		}
	}
	return connected > 0
}

// runCountdown broadcasts the pre-game ticks, then starts round zero.
func (r *Room) runCountdown(gen int) {
	for i := r.settings.CountdownSeconds; i > 0; i-- {
		r.mu.Lock()
		if r.generation != gen || r.state != StateCountdown {
			r.mu.Unlock()
			return
		}
		r.broadcastLocked(Event{Type: EventCountdown, Payload: CountdownPayload{Count: i}})
		r.mu.Unlock()
		time.Sleep(r.settings.TickInterval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.state != StateCountdown {
		return
	}
	r.broadcastLocked(Event{Type: EventGameStart, Payload: GameStartPayload{TotalQuestions: len(r.rounds)}})
	r.beginQuestionLocked()
}

// beginQuestionLocked enters the QUESTION state for the current round index,
// or finishes the game when the sequence is exhausted.
func (r *Room) beginQuestionLocked() {
	if r.roundIndex >= len(r.rounds) {
		r.finishLocked()
		return
	}

	r.state = StateQuestion
	r.generation++
	r.ledger = make(map[string]answerEntry)
	for _, p := range r.players {
		p.answered = false
	}
	r.roundStart = r.now()
	r.lastActivity = r.roundStart

	round := r.rounds[r.roundIndex]
	seconds := int(round.TimeLimit / time.Second)
	if seconds <= 0 {
		seconds = int(r.settings.QuestionTime / time.Second)
	}
	r.broadcastLocked(Event{Type: EventQuestion, Payload: QuestionPayload{
		QuestionNumber: r.roundIndex + 1,
		TotalQuestions: len(r.rounds),
		Question:       round.Question,
		Choices:        round.Choices,
		Category:       round.Category,
		Difficulty:     round.Difficulty,
		TimeLimit:      seconds,
	}})
	go r.runQuestionTimer(r.generation, seconds)
}

// runQuestionTimer drives the per-round countdown. The generation check makes
// it race-free against early completion: whichever of timeout and last-answer
// takes the lock first reveals, the other sees a bumped generation and stops.
func (r *Room) runQuestionTimer(gen int, seconds int) {
	for remaining := seconds; remaining > 0; remaining-- {
		time.Sleep(r.settings.TickInterval)

		r.mu.Lock()
		if r.generation != gen || r.state != StateQuestion {
			r.mu.Unlock()
			return
		}
		if remaining > 1 {
			r.broadcastLocked(Event{Type: EventTimer, Payload: TimerPayload{Remaining: remaining - 1}})
			r.mu.Unlock()
			continue
		}
		r.revealLocked()
		r.mu.Unlock()
		return
	}
}

// revealLocked scores the round ledger, broadcasts the outcome and schedules
// the advance. Players without a ledger entry are scored as wrong with their
// streak reset.
func (r *Room) revealLocked() {
	r.state = StateReveal
	r.generation++

	round := r.rounds[r.roundIndex]
	results := make([]domain.RoundResult, 0, len(r.players))
	for _, name := range r.order {
		p := r.players[name]
		entry, submitted := r.ledger[name]
		correct := submitted && entry.choice == round.CorrectIndex

		points := 0
		if correct {
			p.correctCount++
			points = r.settings.Scoring.Points(round.Difficulty, entry.elapsed, true)
			p.score += points
		}
		p.streak = NextStreak(p.streak, correct)
		if p.streak > p.bestStreak {
			p.bestStreak = p.streak
		}

		var answer *int
		if submitted {
			choice := entry.choice
			answer = &choice
		}
		results = append(results, domain.RoundResult{
			Name:         name,
			Answer:       answer,
			Correct:      correct,
			PointsEarned: points,
			Score:        p.score,
			Streak:       p.streak,
		})
	}
	// Ledger is read once at round end, then discarded.
	r.ledger = nil

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	r.lastActivity = r.now()
	r.broadcastLocked(Event{Type: EventAnswerResult, Payload: AnswerResultPayload{
		CorrectAnswer: round.CorrectIndex,
		Explanation:   round.Explanation,
		Results:       results,
		Standings:     r.playerListLocked(),
	}})
	go r.runRevealHold(r.generation)
}

// runRevealHold keeps the reveal on screen, then advances to the next round.
func (r *Room) runRevealHold(gen int) {
	time.Sleep(r.settings.RevealHold)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.state != StateReveal {
		return
	}
	r.roundIndex++
	r.beginQuestionLocked()
}

func (r *Room) finishLocked() {
	r.state = StateGameOver
	r.generation++
	r.lastActivity = r.now()

	standings := r.finalStandingsLocked()
	r.broadcastLocked(Event{Type: EventGameOver, Payload: GameOverPayload{
		Standings:      standings,
		TotalQuestions: len(r.rounds),
	}})

	if r.onFinish != nil {
		records := make([]domain.ScoreRecord, 0, len(r.players))
		recordedAt := r.now()
		for _, name := range r.order {
			p := r.players[name]
			records = append(records, domain.ScoreRecord{
				PlayerName:     name,
				Score:          p.score,
				TotalQuestions: len(r.rounds),
				RecordedAt:     recordedAt,
			})
		}
		go r.onFinish(r.code, records)
	}
}

func (r *Room) finalStandingsLocked() []domain.Standing {
	ranked := make([]*playerState, 0, len(r.players))
	for _, name := range r.order {
		ranked = append(ranked, r.players[name])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].bestStreak != ranked[j].bestStreak {
			return ranked[i].bestStreak > ranked[j].bestStreak
		}
		return ranked[i].joinOrder < ranked[j].joinOrder
	})

	standings := make([]domain.Standing, 0, len(ranked))
	for _, p := range ranked {
		standings = append(standings, domain.Standing{
			Name:         p.name,
			Score:        p.score,
			BestStreak:   p.bestStreak,
			CorrectCount: p.correctCount,
		})
	}
	return standings
}

func (r *Room) playerListLocked() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(r.players))
	for _, name := range r.order {
		p := r.players[name]
		views = append(views, domain.PlayerView{
			Name:         p.name,
			Score:        p.score,
			Streak:       p.streak,
			CorrectCount: p.correctCount,
			Answered:     p.answered,
			Connected:    p.connected,
			IsHost:       p.name == r.host,
		})
	}
	return views
}

func (r *Room) sendLocked(name string, event Event) {
	p, ok := r.players[name]
	if !ok || !p.connected || p.conn == nil {
		return
	}
	if err := p.conn.Send(event); err != nil {
		r.log.Warn("send failed, marking player disconnected",
			"room", r.code, "player", name, "error", err)
		p.connected = false
		p.conn = nil
	}
}

// broadcastLocked fans an event out to every connected player. A failed send
// marks only that player disconnected; delivery to the rest continues and the
// state machine never blocks on a slow client.
func (r *Room) broadcastLocked(event Event) {
	for _, name := range r.order {
		r.sendLocked(name, event)
	}
}
