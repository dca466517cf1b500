// Package sequencer runs the delayed steps that follow a judged answer: the
// reveal of the remaining cards and the advance to the next question. Every
// step re-checks the game under the store lock and is dropped if the game has
// moved on since it was scheduled.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/game/store"
	"github.com/mcdev12/feud/go/internal/models"
)

const (
	DefaultRevealDelay  = 2 * time.Second
	DefaultAdvanceDelay = 3 * time.Second
)

var errStale = errors.New("stale continuation")

// Updater is the part of the store the sequencer mutates games through.
type Updater interface {
	UpdateAndAnnounce(ctx context.Context, code string, fn store.Mutator, announce store.Announcer) (*models.Game, error)
}

// Config holds the step delays.
type Config struct {
	RevealDelay  time.Duration
	AdvanceDelay time.Duration
}

// DefaultConfig returns the standard 2s reveal and 3s advance delays.
func DefaultConfig() Config {
	return Config{RevealDelay: DefaultRevealDelay, AdvanceDelay: DefaultAdvanceDelay}
}

// Checkpoint identifies the question a continuation was scheduled for.
type Checkpoint struct {
	Epoch         uint64
	QuestionIndex int
	Round         int
	Status        models.GameStatus
}

// CheckpointOf captures g's position.
func CheckpointOf(g *models.Game) Checkpoint {
	return Checkpoint{
		Epoch:         g.GameState.Epoch,
		QuestionIndex: g.CurrentQuestionIndex,
		Round:         g.CurrentRound,
		Status:        g.Status,
	}
}

// Matches reports whether g is still where the checkpoint was taken.
func (c Checkpoint) Matches(g *models.Game) bool {
	return c == CheckpointOf(g)
}

type task struct {
	timer clockwork.Timer
	done  chan struct{}
}

// Sequencer keeps one set of pending timers per game code.
type Sequencer struct {
	store Updater
	sink  events.Sink
	clock clockwork.Clock
	cfg   Config

	mu     sync.Mutex
	tasks  map[string]map[uint64]*task
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates a sequencer. Zero delays fall back to the defaults.
func New(updater Updater, sink events.Sink, clock clockwork.Clock, cfg Config) *Sequencer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = DefaultRevealDelay
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	return &Sequencer{
		store: updater,
		sink:  sink,
		clock: clock,
		cfg:   cfg,
		tasks: make(map[string]map[uint64]*task),
	}
}

// AnswerJudged schedules what follows a committed verdict. cp must be taken
// from the game as committed with the verdict.
func (s *Sequencer) AnswerJudged(code string, v judge.Verdict, cp Checkpoint) {
	switch {
	case v.TossUp && !v.TossUpComplete:
		// the other team still has to answer
	case v.Correct || v.TossUpComplete:
		s.schedule(code, s.cfg.RevealDelay, "reveal", func(ctx context.Context) error {
			return s.reveal(ctx, code, cp)
		})
	default:
		s.schedule(code, s.cfg.AdvanceDelay, "advance", func(ctx context.Context) error {
			return s.advance(ctx, code, cp)
		})
	}
}

func (s *Sequencer) reveal(ctx context.Context, code string, cp Checkpoint) error {
	var revealed int
	_, err := s.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if !cp.Matches(g) {
			return errStale
		}
		q := g.CurrentQuestion()
		if q == nil {
			return fmt.Errorf("%w: no current question", models.ErrInvalidGameState)
		}
		revealed = q.RevealAll()
		return nil
	}, func(g *models.Game) {
		_ = events.Emit(ctx, s.sink, code, events.TypeRemainingCardsRevealed, events.CardsRevealedPayload{
			QuestionIndex: g.CurrentQuestionIndex,
			Revealed:      revealed,
			Game:          g.Redacted(),
		}, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.schedule(code, s.cfg.AdvanceDelay, "advance", func(ctx context.Context) error {
		return s.advance(ctx, code, cp)
	})
	return nil
}

func (s *Sequencer) advance(ctx context.Context, code string, cp Checkpoint) error {
	var outcome engine.Outcome
	g, err := s.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if !cp.Matches(g) {
			return errStale
		}
		before := g.Clone()
		o, err := engine.Advance(g)
		if err != nil {
			return err
		}
		if seen := engine.Classify(before, g); seen != o {
			log.Warn().
				Str("game_code", code).
				Str("outcome", o.String()).
				Str("observed", seen.String()).
				Msg("advance outcome disagrees with the snapshots")
		}
		outcome = o
		return nil
	}, func(g *models.Game) {
		if typ, payload, ok := events.ForTransition(outcome, g); ok {
			_ = events.Emit(ctx, s.sink, code, typ, payload, s.clock.Now())
		}
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("game_code", code).
		Str("outcome", outcome.String()).
		Int("round", g.CurrentRound).
		Int("question_index", g.CurrentQuestionIndex).
		Msg("game advanced")
	return nil
}

// schedule runs fn after d unless the game's tasks are cancelled first.
func (s *Sequencer) schedule(code string, d time.Duration, step string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.nextID++
	id := s.nextID
	t := &task{timer: s.clock.NewTimer(d), done: make(chan struct{})}
	if s.tasks[code] == nil {
		s.tasks[code] = make(map[uint64]*task)
	}
	s.tasks[code][id] = t
	s.wg.Add(1)
	s.mu.Unlock()

	log.Debug().
		Str("game_code", code).
		Str("step", step).
		Dur("delay", d).
		Msg("scheduled continuation")

	go func() {
		defer s.wg.Done()
		select {
		case <-t.timer.Chan():
			if !s.remove(code, id) {
				return
			}
			err := fn(context.Background())
			switch {
			case err == nil:
			case errors.Is(err, errStale):
				log.Debug().Str("game_code", code).Str("step", step).Msg("dropping stale continuation")
			case errors.Is(err, models.ErrGameNotFound):
				log.Debug().Str("game_code", code).Str("step", step).Msg("game gone before continuation ran")
			default:
				log.Error().Err(err).Str("game_code", code).Str("step", step).Msg("continuation failed")
			}
		case <-t.done:
			stopAndDrainTimer(t.timer)
		}
	}()
}

// remove unregisters a fired task. It reports false when the task was
// cancelled concurrently with firing.
func (s *Sequencer) remove(code string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks[code]
	if _, ok := tasks[id]; !ok {
		return false
	}
	delete(tasks, id)
	if len(tasks) == 0 {
		delete(s.tasks, code)
	}
	return true
}

// Cancel stops every pending continuation of a game.
func (s *Sequencer) Cancel(code string) {
	s.mu.Lock()
	tasks := s.tasks[code]
	delete(s.tasks, code)
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.done)
	}
	if len(tasks) > 0 {
		log.Debug().Str("game_code", code).Int("tasks", len(tasks)).Msg("cancelled pending continuations")
	}
}

// Pending returns the number of scheduled continuations for a game.
func (s *Sequencer) Pending(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks[code])
}

// Shutdown cancels everything and waits for running steps to return. Later
// calls to AnswerJudged are ignored.
func (s *Sequencer) Shutdown() {
	s.mu.Lock()
	s.closed = true
	all := s.tasks
	s.tasks = make(map[string]map[uint64]*task)
	s.mu.Unlock()

	for _, tasks := range all {
		for _, t := range tasks {
			close(t.done)
		}
	}
	s.wg.Wait()
	log.Info().Msg("sequencer stopped")
}

// stopAndDrainTimer stops a timer and empties its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
