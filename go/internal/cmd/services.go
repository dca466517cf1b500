package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game"
	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/sequencer"
	"github.com/mcdev12/feud/go/internal/game/store"
	"github.com/mcdev12/feud/go/internal/gateway"
	"github.com/mcdev12/feud/go/internal/publisher"
	"github.com/mcdev12/feud/go/internal/questionbank"
)

type Services struct {
	Store     *store.MemoryStore
	Sequencer *sequencer.Sequencer
	App       *game.App
	Gateway   *gateway.Service
	Sweeper   *store.Sweeper
	Events    *publisher.MetricPublisher

	closers []func()
}

// Close releases everything setupServices opened, newest first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg *Config, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Question source → Store → Sequencer → App → Gateway
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	bank, err := setupQuestionSource(ctx, cfg, s)
	if err != nil {
		return nil, err
	}

	// The app and sequencer publish into the gateway's rooms, which only exist
	// once the gateway has been built around the app.
	sinks := events.Fanout{
		events.SinkFunc(func(ctx context.Context, env events.Envelope) error {
			return s.Gateway.Manager().Publish(ctx, env)
		}),
	}
	if cfg.natsURL != "" {
		js, err := publisher.NewJetStreamPublisher(ctx, cfg.jetStreamConfig())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := js.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to drain NATS connection")
			}
		})
		sinks = append(sinks, js)
	}
	if cfg.logEvents {
		sinks = append(sinks, publisher.NewLogPublisher(log.Logger, zerolog.DebugLevel, true))
	}
	s.Events = publisher.NewMetricPublisher(sinks, clock)

	s.Store = store.NewMemoryStore(clock)
	s.Sequencer = sequencer.New(s.Store, s.Events, clock, cfg.sequencerConfig())
	s.closers = append(s.closers, s.Sequencer.Shutdown)

	s.App = game.NewApp(s.Store, bank, s.Sequencer, s.Events, clock, game.Config{
		MatchPolicy:        cfg.policy,
		DefaultQuestionSet: cfg.questionSet,
	})

	gwConfig := gateway.DefaultConfig()
	gwConfig.Connection.CheckOrigin = newCORS(cfg).OriginAllowed
	gwConfig.PublicURL = cfg.publicURL
	gwConfig.Stats = func() any { return s.Events.Stats() }
	s.Gateway = gateway.NewService(s.App, gwConfig, clock)

	s.Sweeper, err = store.NewSweeper(s.Store, clock, cfg.retention, cfg.sweepInterval, func(codes []string) {
		s.App.DeleteGames(context.Background(), codes)
		for _, code := range codes {
			s.Gateway.Manager().CloseRoom(code)
		}
	})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() {
		if err := s.Sweeper.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop sweeper")
		}
	})

	ok = true
	return s, nil
}

// setupQuestionSource loads the configured bank and checks the default set
// can be served.
func setupQuestionSource(ctx context.Context, cfg *Config, s *Services) (game.QuestionSource, error) {
	var (
		src  game.QuestionSource
		sets []string
	)
	switch cfg.questionSource {
	case sourcePostgres:
		pool, err := setupDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		src = questionbank.NewPostgresSource(pool)
	default:
		var (
			bank *questionbank.Bank
			err  error
		)
		if cfg.questions != "" {
			bank, err = questionbank.LoadFile(cfg.questions)
		} else {
			bank, err = questionbank.Default()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load question bank: %w", err)
		}
		src, sets = bank, bank.Sets()
	}

	qs, err := src.Questions(ctx, cfg.questionSet)
	if err != nil {
		return nil, fmt.Errorf("default question set unavailable: %w", err)
	}
	log.Info().
		Str("source", cfg.questionSource).
		Str("question_set", cfg.questionSet).
		Int("questions", len(qs)).
		Strs("sets", sets).
		Msg("question bank ready")
	return src, nil
}
