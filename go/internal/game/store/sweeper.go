package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Sweeper periodically deletes games older than the retention period.
type Sweeper struct {
	store     Store
	clock     clockwork.Clock
	retention time.Duration
	interval  time.Duration
	onRemoved func(codes []string)

	sched gocron.Scheduler
}

// NewSweeper wires a gocron scheduler on clock. onRemoved, if set, is called
// with the codes removed by each sweep that removed anything.
func NewSweeper(store Store, clock clockwork.Clock, retention, interval time.Duration, onRemoved func([]string)) (*Sweeper, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	s := &Sweeper{
		store:     store,
		clock:     clock,
		retention: retention,
		interval:  interval,
		onRemoved: onRemoved,
		sched:     sched,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.Sweep(context.Background())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("stale-game-sweep"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	return s, nil
}

// Start begins running sweeps on the interval.
func (s *Sweeper) Start() {
	s.sched.Start()
	log.Info().
		Dur("retention", s.retention).
		Dur("interval", s.interval).
		Msg("stale game sweeper started")
}

// Stop waits for a running sweep and stops the scheduler.
func (s *Sweeper) Stop() error {
	return s.sched.Shutdown()
}

// Sweep removes every game created more than the retention period ago.
func (s *Sweeper) Sweep(ctx context.Context) []string {
	cutoff := s.clock.Now().Add(-s.retention)
	removed := s.store.SweepOlderThan(ctx, cutoff)
	if len(removed) == 0 {
		return nil
	}

	log.Info().
		Strs("game_codes", removed).
		Time("cutoff", cutoff).
		Msg("swept stale games")

	if s.onRemoved != nil {
		s.onRemoved(removed)
	}
	return removed
}
