package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/events/eventstest"
	"github.com/mcdev12/feud/go/internal/game/gametest"
	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/game/sequencer"
	"github.com/mcdev12/feud/go/internal/game/store"
	"github.com/mcdev12/feud/go/internal/models"
)

const (
	hostSession = "host-conn"
	waitFor     = 2 * time.Second
)

type staticBank map[string][]models.Question

func (b staticBank) Questions(_ context.Context, set string) ([]models.Question, error) {
	qs, ok := b[set]
	if !ok {
		return nil, errors.New("no such set")
	}
	return models.CloneQuestions(qs), nil
}

type env struct {
	t     *testing.T
	ctx   context.Context
	clock *clockwork.FakeClock
	store *store.MemoryStore
	seq   *sequencer.Sequencer
	rec   *eventstest.Recorder
	app   *App

	code  string
	alice string // team1
	bob   string // team2
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, nil)
}

// newEnvWith publishes through wrap, which must forward to the recorder it is
// given.
func newEnvWith(t *testing.T, wrap func(next events.Sink) events.Sink) *env {
	t.Helper()
	clock := clockwork.NewFakeClockAt(gametest.Epoch)
	ms := store.NewMemoryStore(clock)
	rec := &eventstest.Recorder{}
	var sink events.Sink = rec
	if wrap != nil {
		sink = wrap(rec)
	}
	seq := sequencer.New(ms, sink, clock, sequencer.DefaultConfig())
	t.Cleanup(seq.Shutdown)

	bank := staticBank{
		"tossup":  gametest.Questions(true),
		"classic": gametest.Questions(false),
		"broken":  gametest.Questions(false)[:4],
	}
	return &env{
		t:     t,
		ctx:   context.Background(),
		clock: clock,
		store: ms,
		seq:   seq,
		rec:   rec,
		app:   NewApp(ms, bank, seq, sink, clock, Config{DefaultQuestionSet: "tossup"}),
	}
}

// seated creates a game with one player per team and a bound host.
func (e *env) seated(set string) *env {
	e.t.Helper()
	g, err := e.app.CreateGame(e.ctx, set)
	require.NoError(e.t, err)
	e.code = g.Code

	alice, err := e.app.JoinGame(e.ctx, e.code, "Alice")
	require.NoError(e.t, err)
	bob, err := e.app.JoinGame(e.ctx, e.code, "Bob")
	require.NoError(e.t, err)
	e.alice, e.bob = alice.Player.ID, bob.Player.ID

	_, err = e.app.JoinTeam(e.ctx, e.code, e.alice, models.TeamOne)
	require.NoError(e.t, err)
	_, err = e.app.JoinTeam(e.ctx, e.code, e.bob, models.TeamTwo)
	require.NoError(e.t, err)

	_, err = e.app.HostJoin(e.ctx, e.code, hostSession, g.ID.String(), nil)
	require.NoError(e.t, err)
	e.rec.Reset()
	return e
}

func (e *env) started(set string) *env {
	e.t.Helper()
	e.seated(set)
	_, err := e.app.StartGame(e.ctx, e.code, hostSession)
	require.NoError(e.t, err)
	e.rec.Reset()
	return e
}

func (e *env) game() *models.Game {
	e.t.Helper()
	g, err := e.app.GetGame(e.ctx, e.code)
	require.NoError(e.t, err)
	return g
}

// settle lets the sequencer finish whatever the last answer scheduled.
func (e *env) settle(v judge.Verdict) {
	e.t.Helper()
	before := len(e.rec.Types())
	wait := func() {
		ctx, cancel := context.WithTimeout(e.ctx, waitFor)
		defer cancel()
		require.NoError(e.t, e.clock.BlockUntilContext(ctx, 1))
	}

	if v.Correct || v.TossUpComplete {
		wait()
		e.clock.Advance(sequencer.DefaultRevealDelay)
		before++
		require.Eventually(e.t, func() bool { return len(e.rec.Types()) >= before }, waitFor, 5*time.Millisecond)
	}
	wait()
	e.clock.Advance(sequencer.DefaultAdvanceDelay)
	require.Eventually(e.t, func() bool { return len(e.rec.Types()) > before }, waitFor, 5*time.Millisecond)
}

func (e *env) count(typ events.Type) int {
	n := 0
	for _, got := range e.rec.Types() {
		if got == typ {
			n++
		}
	}
	return n
}

func TestCreateGame(t *testing.T) {
	e := newEnv(t)

	g, err := e.app.CreateGame(e.ctx, "")
	require.NoError(t, err)

	assert.True(t, ValidCode(g.Code))
	assert.Equal(t, models.StatusWaiting, g.Status)
	assert.Len(t, g.Questions, len(gametest.Questions(true)))
	assert.True(t, e.store.Exists(e.ctx, g.Code))

	_, err = e.app.CreateGame(e.ctx, "broken")
	assert.ErrorIs(t, err, models.ErrInvalidQuestionBank)

	_, err = e.app.CreateGame(e.ctx, "missing")
	assert.Error(t, err)
}

func TestJoinGame(t *testing.T) {
	e := newEnv(t)
	g, err := e.app.CreateGame(e.ctx, "")
	require.NoError(t, err)

	res, err := e.app.JoinGame(e.ctx, g.Code, "  Nakula ")
	require.NoError(t, err)
	assert.Equal(t, "Nakula", res.Player.Name)
	assert.True(t, res.Player.Connected)
	assert.Equal(t, []events.Type{events.TypePlayerJoined}, e.rec.Types())

	_, err = e.app.JoinGame(e.ctx, g.Code, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidPlayerName)

	_, err = e.app.JoinGame(e.ctx, "NOPE22", "Sahadeva")
	assert.ErrorIs(t, err, models.ErrGameNotFound)
}

func TestJoinTeam_Idempotent(t *testing.T) {
	e := newEnv(t).seated("tossup")

	first, err := e.app.JoinTeam(e.ctx, e.code, e.alice, models.TeamTwo)
	require.NoError(t, err)
	second, err := e.app.JoinTeam(e.ctx, e.code, e.alice, models.TeamTwo)
	require.NoError(t, err)

	second.UpdatedAt = first.UpdatedAt
	assert.Equal(t, first, second)
	assert.Equal(t, []string{e.bob, e.alice}, second.Teams[1].Members)
	assert.Empty(t, second.Teams[0].Members)

	_, err = e.app.JoinTeam(e.ctx, e.code, e.alice, "team3")
	assert.ErrorIs(t, err, models.ErrInvalidTeam)
	_, err = e.app.JoinTeam(e.ctx, e.code, "ghost", models.TeamOne)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
}

func TestHostJoin(t *testing.T) {
	e := newEnv(t)
	g, err := e.app.CreateGame(e.ctx, "")
	require.NoError(t, err)
	p, err := e.app.JoinGame(e.ctx, g.Code, "Bhima")
	require.NoError(t, err)

	_, err = e.app.HostJoin(e.ctx, g.Code, hostSession, "not-the-id", nil)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	out, err := e.app.HostJoin(e.ctx, g.Code, hostSession, g.ID.String(), &TeamsConfig{Teams: []TeamConfig{
		{ID: models.TeamOne, Name: "Pandavas", Members: []string{p.Player.ID}},
		{ID: models.TeamTwo, Name: "Kauravas"},
	}})
	require.NoError(t, err)

	assert.Equal(t, hostSession, out.HostSession)
	assert.Equal(t, "Pandavas", out.Teams[0].Name)
	assert.Equal(t, "Kauravas", out.Teams[1].Name)
	assert.Equal(t, []string{p.Player.ID}, out.Teams[0].Members)
	assert.Equal(t, models.TeamOne, out.Player(p.Player.ID).TeamID)
	assert.Equal(t, "Agni", out.Questions[0].Answers[0].Text)
}

func TestHostOnlyIntents_RejectOtherSessions(t *testing.T) {
	e := newEnv(t).seated("tossup")

	_, err := e.app.StartGame(e.ctx, e.code, "intruder")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = e.app.ResetGame(e.ctx, e.code, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	assert.Equal(t, models.StatusWaiting, e.game().Status)
	assert.Empty(t, e.rec.Types())
}

func TestStartGame(t *testing.T) {
	e := newEnv(t).seated("tossup")

	g, err := e.app.StartGame(e.ctx, e.code, hostSession)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, g.Status)
	assert.Equal(t, models.TeamOne, g.GameState.CurrentTurn)
	assert.Equal(t, []events.Type{events.TypeGameStarted}, e.rec.Types())

	ev, ok := e.rec.Last(events.TypeGameStarted)
	require.True(t, ok)
	p, err := events.ParsePayload(&ev)
	require.NoError(t, err)
	board := p.(*events.GameStartedPayload).Game.Questions[0].Answers[0]
	assert.Empty(t, board.Text, "hidden cards are redacted in broadcasts")

	_, err = e.app.StartGame(e.ctx, e.code, hostSession)
	assert.ErrorIs(t, err, models.ErrInvalidGameState)
}

func TestTossUpScenario(t *testing.T) {
	e := newEnv(t).started("tossup")

	v, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Agni")
	require.NoError(t, err)
	assert.True(t, v.Correct)
	assert.Equal(t, 40, v.Points)

	_, err = e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Vayu")
	assert.ErrorIs(t, err, models.ErrAlreadyAnswered)

	v, err = e.app.SubmitAnswer(e.ctx, e.code, e.bob, "Indra")
	require.NoError(t, err)
	assert.False(t, v.Correct)
	require.True(t, v.TossUpComplete)

	g := e.game()
	assert.Equal(t, models.TeamOne, g.GameState.TossUpWinner)
	assert.Equal(t, 40, g.Teams[0].Score)
	assert.Equal(t, 0, g.Teams[1].Score)

	e.settle(v)
	assert.Equal(t, models.StatusRoundSummary, e.game().Status)

	g, err = e.app.ContinueToNextRound(e.ctx, e.code, hostSession)
	require.NoError(t, err)
	assert.Equal(t, 1, g.CurrentRound)
	assert.Equal(t, models.TeamOne, g.GameState.CurrentTurn)
	_, ok := e.rec.Last(events.TypeRoundStarted)
	assert.True(t, ok)
}

func TestIncorrectAnswerScenario(t *testing.T) {
	e := newEnv(t).started("classic")

	v, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Indra")
	require.NoError(t, err)
	require.False(t, v.Correct)

	ev, ok := e.rec.Last(events.TypeAnswerIncorrect)
	require.True(t, ok)
	p, err := events.ParsePayload(&ev)
	require.NoError(t, err)
	snap := p.(*events.AnswerPayload).Game
	assert.True(t, snap.CurrentQuestion().AllRevealed())
	assert.Equal(t, 0, snap.GameState.QuestionsAnswered[models.TeamOne])

	e.settle(v)

	assert.Equal(t, 1, e.game().GameState.QuestionsAnswered[models.TeamOne])
}

func TestSingleAttemptPerQuestion(t *testing.T) {
	e := newEnv(t).started("classic")

	_, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Agni")
	require.NoError(t, err)
	before := e.game()

	_, err = e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Vayu")
	assert.ErrorIs(t, err, models.ErrAlreadyAnswered)
	_, err = e.app.SubmitAnswer(e.ctx, e.code, e.bob, "Vayu")
	assert.ErrorIs(t, err, models.ErrNotYourTurn)

	assert.Equal(t, before, e.game())
}

func TestRoundRobin(t *testing.T) {
	e := newEnv(t).started("classic")

	for i := 0; i < 2*models.QuestionsPerTurn; i++ {
		pid := e.alice
		if i >= models.QuestionsPerTurn {
			pid = e.bob
		}
		v, err := e.app.SubmitAnswer(e.ctx, e.code, pid, "Soma")
		require.NoError(t, err, "question %d", i)
		e.settle(v)
	}

	assert.Equal(t, 1, e.count(events.TypeRoundComplete))
	assert.Equal(t, 1, e.count(events.TypeTurnChanged))
	g := e.game()
	assert.Equal(t, models.StatusRoundSummary, g.Status)
	assert.Equal(t, 1, g.CurrentRound)
	assert.Equal(t, 30, g.Teams[0].RoundScores[0])
	assert.Equal(t, 30, g.Teams[1].RoundScores[0])
}

func TestForceNextQuestion_CancelsPendingSteps(t *testing.T) {
	e := newEnv(t).started("classic")

	_, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Agni")
	require.NoError(t, err)
	require.Equal(t, 1, e.seq.Pending(e.code))

	g, err := e.app.ForceNextQuestion(e.ctx, e.code, hostSession)
	require.NoError(t, err)
	assert.Equal(t, 0, e.seq.Pending(e.code))
	assert.Equal(t, 1, g.CurrentQuestionIndex)
	assert.False(t, g.GameState.AwaitingAdvance)

	e.clock.Advance(time.Minute)
	e.seq.Shutdown()

	assert.Equal(t, []events.Type{events.TypeAnswerCorrect, events.TypeNextQuestion}, e.rec.Types())
	assert.Equal(t, 1, e.game().CurrentQuestionIndex)
}

func TestForceRoundSummaryAndReveal(t *testing.T) {
	e := newEnv(t).started("classic")

	g, err := e.app.RevealAllAnswers(e.ctx, e.code, hostSession)
	require.NoError(t, err)
	assert.True(t, g.CurrentQuestion().AllRevealed())
	assert.Equal(t, models.TeamOne, g.GameState.CurrentTurn)

	g, err = e.app.ForceRoundSummary(e.ctx, e.code, hostSession)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRoundSummary, g.Status)

	assert.Equal(t, []events.Type{events.TypeAnswersRevealed, events.TypeRoundComplete}, e.rec.Types())
}

func TestResetFromFinished(t *testing.T) {
	e := newEnv(t).started("classic")
	_, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Agni")
	require.NoError(t, err)
	_, err = e.store.Update(e.ctx, e.code, func(g *models.Game) error {
		for g.Status != models.StatusFinished {
			if g.Status == models.StatusRoundSummary {
				if _, err := engine.StartNewRound(g); err != nil {
					return err
				}
				continue
			}
			if _, err := engine.Advance(g); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	before := e.game()
	require.Equal(t, models.StatusFinished, before.Status)

	g, err := e.app.ResetGame(e.ctx, e.code, hostSession)
	require.NoError(t, err)

	assert.Equal(t, models.StatusWaiting, g.Status)
	for _, team := range g.Teams {
		assert.Equal(t, 0, team.Score)
		assert.Equal(t, [models.ScoredRounds]int{}, team.RoundScores)
	}
	for _, q := range g.Questions {
		for _, a := range q.Answers {
			assert.False(t, a.Revealed)
		}
	}
	require.Len(t, g.Players, len(before.Players))
	for i := range g.Players {
		assert.Equal(t, before.Players[i].TeamID, g.Players[i].TeamID)
	}
	assert.Equal(t, 0, e.seq.Pending(e.code))
}

func TestDisconnectAndRejoin(t *testing.T) {
	e := newEnv(t).seated("tossup")

	require.NoError(t, e.app.Disconnect(e.ctx, e.code, e.alice))
	assert.False(t, e.game().Player(e.alice).Connected)

	res, err := e.app.RejoinGame(e.ctx, e.code, e.alice)
	require.NoError(t, err)
	assert.True(t, res.Player.Connected)
	assert.Equal(t, models.TeamOne, res.Player.TeamID)

	_, err = e.app.RejoinGame(e.ctx, e.code, "ghost")
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
	assert.Equal(t, []events.Type{events.TypePlayerDisconnected, events.TypePlayerJoined}, e.rec.Types())
}

func TestDeleteGames(t *testing.T) {
	e := newEnv(t).started("classic")
	_, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Agni")
	require.NoError(t, err)

	e.app.DeleteGames(e.ctx, []string{e.code, "GONE22"})

	assert.False(t, e.store.Exists(e.ctx, e.code))
	assert.Equal(t, 0, e.seq.Pending(e.code))
}

func TestGetPlayers(t *testing.T) {
	e := newEnv(t).seated("tossup")

	players, err := e.app.GetPlayers(e.ctx, e.code)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, "Bob", players[1].Name)
}

// gate holds back the first event of one type until opened.
type gate struct {
	next     events.Sink
	typ      events.Type
	heldOnce sync.Once
	openOnce sync.Once
	held     chan struct{}
	release  chan struct{}
}

func newGate(typ events.Type) *gate {
	return &gate{typ: typ, held: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) Publish(ctx context.Context, env events.Envelope) error {
	if env.Type == g.typ {
		g.heldOnce.Do(func() {
			close(g.held)
			<-g.release
		})
	}
	return g.next.Publish(ctx, env)
}

func (g *gate) open() {
	g.openOnce.Do(func() { close(g.release) })
}

func TestResetDuringAdvance_LastBroadcastMatchesStore(t *testing.T) {
	g := newGate(events.TypeNextQuestion)
	e := newEnvWith(t, func(next events.Sink) events.Sink {
		g.next = next
		return g
	})
	t.Cleanup(g.open)
	e.started("classic")

	_, err := e.app.SubmitAnswer(e.ctx, e.code, e.alice, "Indra")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(e.ctx, waitFor)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))
	e.clock.Advance(sequencer.DefaultAdvanceDelay)

	select {
	case <-g.held:
	case <-time.After(waitFor):
		t.Fatal("advance never announced next-question")
	}

	reset := make(chan error, 1)
	go func() {
		_, err := e.app.ResetGame(e.ctx, e.code, hostSession)
		reset <- err
	}()
	select {
	case err := <-reset:
		t.Fatalf("reset finished while next-question was still being announced: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	g.open()
	select {
	case err := <-reset:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("reset never finished")
	}

	assert.Equal(t, []events.Type{
		events.TypeAnswerIncorrect,
		events.TypeNextQuestion,
		events.TypeGameReset,
	}, e.rec.Types())

	last, ok := e.rec.Last(events.TypeGameReset)
	require.True(t, ok)
	p, err := events.ParsePayload(&last)
	require.NoError(t, err)
	snap := p.(*events.GameResetPayload).Game
	assert.Equal(t, models.StatusWaiting, snap.Status)
	assert.Equal(t, e.game().Status, snap.Status)
}
