package publisher

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mcdev12/feud/go/internal/game/events"
)

// LogPublisher writes every event to a zerolog logger. With payloads enabled
// the raw event data is attached as JSON.
type LogPublisher struct {
	logger   zerolog.Logger
	level    zerolog.Level
	payloads bool
}

func NewLogPublisher(logger zerolog.Logger, level zerolog.Level, payloads bool) *LogPublisher {
	return &LogPublisher{logger: logger, level: level, payloads: payloads}
}

func (p *LogPublisher) Publish(_ context.Context, env events.Envelope) error {
	e := p.logger.WithLevel(p.level).
		Str("event_id", env.ID).
		Str("event_type", string(env.Type)).
		Str("game_code", env.GameCode).
		Time("timestamp", env.Timestamp)
	if p.payloads && len(env.Data) > 0 {
		e = e.RawJSON("data", env.Data)
	}
	e.Msg("game event")
	return nil
}
