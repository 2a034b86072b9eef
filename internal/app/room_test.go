package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"brainrace-live-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() Settings {
	s := DefaultSettings()
	s.CountdownSeconds = 1
	s.QuestionTime = 60 * time.Second
	s.RevealHold = 20 * time.Millisecond
	s.TickInterval = 5 * time.Millisecond
	s.IdleTimeout = 50 * time.Millisecond
	s.FinishedRetention = 50 * time.Millisecond
	return s
}

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (c *fakeConn) Send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) ofType(typ string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func waitForCount(t *testing.T, c *fakeConn, typ string, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := c.ofType(typ); len(events) >= n {
			return events
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q events, got %d", n, typ, len(c.ofType(typ)))
	return nil
}

func waitForEvent(t *testing.T, c *fakeConn, typ string) Event {
	t.Helper()
	return waitForCount(t, c, typ, 1)[0]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testRounds(settings Settings, difficulties ...string) []domain.QuestionRound {
	rounds := make([]domain.QuestionRound, len(difficulties))
	for i, diff := range difficulties {
		rounds[i] = domain.QuestionRound{
			Question:     fmt.Sprintf("question %d", i+1),
			Choices:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
			Difficulty:   diff,
			Explanation:  "context",
			TimeLimit:    settings.QuestionTime,
		}
	}
	return rounds
}

func newTestRoom(settings Settings, difficulties ...string) *Room {
	return newRoom("ABCD1", settings, testRounds(settings, difficulties...), testLogger(), nil)
}

func seatPlayers(t *testing.T, room *Room, names ...string) map[string]*fakeConn {
	t.Helper()
	conns := make(map[string]*fakeConn, len(names))
	for i, name := range names {
		conn := &fakeConn{}
		conns[name] = conn
		if i == 0 {
			room.addHost(name, conn)
			continue
		}
		if err := room.Join(name, conn); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	return conns
}

func TestStartValidation(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice")

	if err := room.Start("Alice"); err != domain.ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
	if room.State() != StateWaiting {
		t.Fatalf("room left WAITING after failed start: %s", room.State())
	}

	if err := room.Join("Bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := room.Start("Bob"); err != domain.ErrNotHost {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Alice"], EventCountdown)
}

func TestJoinValidation(t *testing.T) {
	settings := testSettings()
	settings.MaxPlayers = 2
	room := newTestRoom(settings, "medium")
	seatPlayers(t, room, "Alice", "Bob")

	if err := room.Join("Bob", &fakeConn{}); err != domain.ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if err := room.Join("Carol", &fakeConn{}); err != domain.ErrRoomFull {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestJoinRejectedOnceStarted(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Alice"], EventQuestion)

	if err := room.Join("Carol", &fakeConn{}); err != domain.ErrRoomNotJoinable {
		t.Fatalf("expected ErrRoomNotJoinable during QUESTION, got %v", err)
	}
}

func TestRoundScoringAndEarlyReveal(t *testing.T) {
	settings := testSettings()
	room := newTestRoom(settings, "medium")
	clk := &fakeClock{t: time.Now()}
	room.now = clk.Now
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Bob"], EventQuestion)

	// Alice answers correctly at t=3, inside the fast-answer window.
	clk.advance(3 * time.Second)
	if err := room.SubmitAnswer("Alice", 1); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	// Bob answers incorrectly at t=10, past the window.
	clk.advance(7 * time.Second)
	if err := room.SubmitAnswer("Bob", 0); err != nil {
		t.Fatalf("bob submit: %v", err)
	}

	// Both answered: the reveal must not wait out the 60s clock.
	result := waitForEvent(t, conns["Alice"], EventAnswerResult).Payload.(AnswerResultPayload)
	if result.CorrectAnswer != 1 {
		t.Fatalf("expected correct answer 1, got %d", result.CorrectAnswer)
	}

	byName := map[string]domain.RoundResult{}
	for _, res := range result.Results {
		byName[res.Name] = res
	}
	alice, bob := byName["Alice"], byName["Bob"]
	if !alice.Correct || alice.PointsEarned != 25 || alice.Streak != 1 {
		t.Fatalf("alice expected 20 base + 5 speed bonus with streak 1, got %+v", alice)
	}
	if bob.Correct || bob.PointsEarned != 0 || bob.Streak != 0 {
		t.Fatalf("bob expected zero points and reset streak, got %+v", bob)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Alice"], EventQuestion)

	if err := room.SubmitAnswer("Alice", 1); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := room.SubmitAnswer("Alice", 0); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	// The ledger kept the first entry: Alice still scores as correct.
	if err := room.SubmitAnswer("Bob", 0); err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	result := waitForEvent(t, conns["Bob"], EventAnswerResult).Payload.(AnswerResultPayload)
	for _, res := range result.Results {
		if res.Name == "Alice" && !res.Correct {
			t.Fatalf("duplicate submission overwrote the ledger: %+v", res)
		}
	}
}

func TestDisconnectedPlayerExcludedFromCompleteness(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Bob"], EventQuestion)

	room.Disconnect("Alice")
	if err := room.SubmitAnswer("Bob", 1); err != nil {
		t.Fatalf("bob submit: %v", err)
	}

	// Bob is the only connected player; his answer completes the round.
	result := waitForEvent(t, conns["Bob"], EventAnswerResult).Payload.(AnswerResultPayload)
	for _, res := range result.Results {
		switch res.Name {
		case "Alice":
			if res.Answer != nil || res.Correct || res.Streak != 0 {
				t.Fatalf("disconnected player should score as wrong with streak reset: %+v", res)
			}
		case "Bob":
			if !res.Correct {
				t.Fatalf("bob expected correct, got %+v", res)
			}
		}
	}
}

func TestTimeoutForcesReveal(t *testing.T) {
	settings := testSettings()
	settings.QuestionTime = 2 * time.Second // 2 ticks of 5ms real time
	room := newTestRoom(settings, "easy")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	result := waitForEvent(t, conns["Alice"], EventAnswerResult).Payload.(AnswerResultPayload)
	for _, res := range result.Results {
		if res.Correct || res.PointsEarned != 0 {
			t.Fatalf("timeout round should score everyone as wrong: %+v", res)
		}
	}
}

func TestRevealHappensExactlyOnce(t *testing.T) {
	for i := 0; i < 10; i++ {
		settings := testSettings()
		settings.QuestionTime = time.Second // timeout races the submissions
		room := newTestRoom(settings, "medium")
		conns := seatPlayers(t, room, "Alice", "Bob")

		if err := room.Start("Alice"); err != nil {
			t.Fatalf("start: %v", err)
		}
		waitForEvent(t, conns["Alice"], EventQuestion)

		var wg sync.WaitGroup
		for _, name := range []string{"Alice", "Bob"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_ = room.SubmitAnswer(name, 1)
			}(name)
		}
		wg.Wait()

		waitForEvent(t, conns["Bob"], EventGameOver)
		if got := len(conns["Bob"].ofType(EventAnswerResult)); got != 1 {
			t.Fatalf("iteration %d: expected exactly one reveal, got %d", i, got)
		}
	}
}

func TestMultiRoundGameAndStreaks(t *testing.T) {
	room := newTestRoom(testSettings(), "easy", "hard")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Round 1: both correct.
	waitForCount(t, conns["Alice"], EventQuestion, 1)
	_ = room.SubmitAnswer("Alice", 1)
	_ = room.SubmitAnswer("Bob", 1)
	waitForCount(t, conns["Alice"], EventAnswerResult, 1)

	// Round 2: only Alice correct, Bob's streak resets.
	waitForCount(t, conns["Alice"], EventQuestion, 2)
	_ = room.SubmitAnswer("Alice", 1)
	_ = room.SubmitAnswer("Bob", 2)
	results := waitForCount(t, conns["Alice"], EventAnswerResult, 2)

	second := results[1].Payload.(AnswerResultPayload)
	for _, res := range second.Results {
		switch res.Name {
		case "Alice":
			if res.Streak != 2 {
				t.Fatalf("alice streak expected 2, got %+v", res)
			}
		case "Bob":
			if res.Streak != 0 {
				t.Fatalf("bob streak expected reset, got %+v", res)
			}
		}
	}

	over := waitForEvent(t, conns["Bob"], EventGameOver).Payload.(GameOverPayload)
	if over.TotalQuestions != 2 {
		t.Fatalf("expected 2 total questions, got %d", over.TotalQuestions)
	}
	if over.Standings[0].Name != "Alice" || over.Standings[0].BestStreak != 2 {
		t.Fatalf("alice expected on top with best streak 2, got %+v", over.Standings)
	}
	if room.State() != StateGameOver {
		t.Fatalf("expected GAME_OVER, got %s", room.State())
	}
}

func TestHostTransferOnDisconnect(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob", "Carol")

	room.Disconnect("Alice")
	if got := room.Host(); got != "Bob" {
		t.Fatalf("expected host transferred to next-joined player Bob, got %q", got)
	}
	left := waitForEvent(t, conns["Carol"], EventPlayerLeft).Payload.(PlayerLeftPayload)
	if left.Player != "Alice" {
		t.Fatalf("expected player_left for Alice, got %+v", left)
	}
}

func TestWaitingRoomSurvivesBriefDisconnect(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	seatPlayers(t, room, "Alice")

	room.Disconnect("Alice")
	if room.reapable(time.Now()) {
		t.Fatalf("empty waiting room reaped before idle threshold")
	}
	if err := room.Join("Alice", &fakeConn{}); err != nil {
		t.Fatalf("reconnect into waiting room: %v", err)
	}
	if got := room.Host(); got != "Alice" {
		t.Fatalf("reconnected host lost privileges, host=%q", got)
	}
	if room.reapable(time.Now().Add(time.Minute)) {
		t.Fatalf("room with a connected player must not be reapable")
	}
}

func TestRoomClosesWhenHostLeavesMidGameAlone(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Alice"], EventQuestion)

	room.Disconnect("Bob")
	room.Disconnect("Alice")
	if !room.reapable(time.Now()) {
		t.Fatalf("mid-game room abandoned by everyone should be reapable immediately")
	}
}

func TestChatTruncatesOnRuneBoundary(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob")

	long := strings.Repeat("é", 250)
	room.Chat("Alice", long)

	chat := waitForEvent(t, conns["Bob"], EventChat).Payload.(ChatPayload)
	if got := utf8.RuneCountInString(chat.Message); got != 200 {
		t.Fatalf("expected 200 runes after truncation, got %d", got)
	}
	if !utf8.ValidString(chat.Message) {
		t.Fatalf("truncation split a rune: %q", chat.Message[len(chat.Message)-4:])
	}
}

func TestFailedSendMarksPlayerDisconnected(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	conns := seatPlayers(t, room, "Alice", "Bob", "Carol")

	conns["Bob"].mu.Lock()
	conns["Bob"].fail = true
	conns["Bob"].mu.Unlock()

	room.Chat("Alice", "hello")

	chat := waitForEvent(t, conns["Carol"], EventChat).Payload.(ChatPayload)
	if chat.Message != "hello" {
		t.Fatalf("broadcast aborted by one failed send: %+v", chat)
	}
	for _, p := range room.Players() {
		if p.Name == "Bob" && p.Connected {
			t.Fatalf("failed send should mark Bob disconnected")
		}
	}
}

func TestFinalStandingsDeterministicOrdering(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	room.mu.Lock()
	for i, name := range []string{"Dana", "Alice", "Bob", "Carol"} {
		room.addPlayerLocked(name, &fakeConn{})
		p := room.players[name]
		switch i {
		case 0: // Dana: top score
			p.score, p.bestStreak = 50, 1
		case 1: // Alice: tied with Bob, higher best streak
			p.score, p.bestStreak = 30, 3
		case 2: // Bob: tied score, lower best streak
			p.score, p.bestStreak = 30, 1
		case 3: // Carol: fully tied with Bob, later join order
			p.score, p.bestStreak = 30, 1
		}
	}
	room.mu.Unlock()

	want := []string{"Dana", "Alice", "Bob", "Carol"}
	first := room.FinalStandings()
	for i, standing := range first {
		if standing.Name != want[i] {
			t.Fatalf("expected order %v, got %+v", want, first)
		}
	}

	// Idempotent until the room is reaped.
	second := room.FinalStandings()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("standings changed between calls: %+v vs %+v", first, second)
	}
}

func TestGameOverReportsFinalScores(t *testing.T) {
	recorded := make(chan []domain.ScoreRecord, 1)
	settings := testSettings()
	rounds := testRounds(settings, "easy")
	room := newRoom("ABCD1", settings, rounds, testLogger(), func(code string, records []domain.ScoreRecord) {
		recorded <- records
	})
	conns := seatPlayers(t, room, "Alice", "Bob")

	if err := room.Start("Alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForEvent(t, conns["Alice"], EventQuestion)
	_ = room.SubmitAnswer("Alice", 1)
	_ = room.SubmitAnswer("Bob", 0)
	waitForEvent(t, conns["Bob"], EventGameOver)

	select {
	case records := <-recorded:
		if len(records) != 2 {
			t.Fatalf("expected 2 score records, got %+v", records)
		}
		for _, rec := range records {
			if rec.TotalQuestions != 1 {
				t.Fatalf("expected total questions 1, got %+v", rec)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("final scores never recorded")
	}
}

func TestAnswerOutsideQuestionStateRejected(t *testing.T) {
	room := newTestRoom(testSettings(), "medium")
	seatPlayers(t, room, "Alice", "Bob")

	if err := room.SubmitAnswer("Alice", 1); err != domain.ErrNotAcceptingAnswers {
		t.Fatalf("expected ErrNotAcceptingAnswers in WAITING, got %v", err)
	}
}
