package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire form of every game event
type Envelope struct {
	ID        string          `json:"id"`        // Event UUID
	Type      Type            `json:"type"`      // Event type
	GameCode  string          `json:"game_code"` // Room the event belongs to
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// Type names an event kind.
type Type string

// Room broadcasts
const (
	TypePlayerJoined           Type = "player-joined"
	TypePlayerDisconnected     Type = "player-disconnected"
	TypeTeamUpdated            Type = "team-updated"
	TypeGameStarted            Type = "game-started"
	TypeAnswerCorrect          Type = "answer-correct"
	TypeAnswerIncorrect        Type = "answer-incorrect"
	TypeRemainingCardsRevealed Type = "remaining-cards-revealed"
	TypeTurnChanged            Type = "turn-changed"
	TypeNextQuestion           Type = "next-question"
	TypeRoundComplete          Type = "round-complete"
	TypeRoundStarted           Type = "round-started"
	TypeGameOver               Type = "game-over"
	TypeAnswersRevealed        Type = "answers-revealed"
	TypeGameReset              Type = "game-reset"
)

// Unicast replies to a single connection
const (
	TypeHostJoined     Type = "host-joined"
	TypeJoinedGame     Type = "joined-game"
	TypePlayersList    Type = "players-list"
	TypeAnswerRejected Type = "answer-rejected"
	TypeError          Type = "error"
)

// Broadcast reports whether events of this type go to the whole room.
func (t Type) Broadcast() bool {
	switch t {
	case TypeHostJoined, TypeJoinedGame, TypePlayersList, TypeAnswerRejected, TypeError:
		return false
	default:
		return true
	}
}

// New wraps payload in an envelope stamped with at.
func New(code string, typ Type, payload any, at time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		GameCode:  code,
		Timestamp: at,
		Data:      data,
	}, nil
}

// Sink receives room broadcasts. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, env Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, env Envelope) error

func (f SinkFunc) Publish(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Fanout publishes every envelope to each sink in order. A failing sink does
// not stop delivery to the rest.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit wraps payload and publishes it to sink. Delivery failures are logged
// and returned; the game state they describe is already committed.
func Emit(ctx context.Context, sink Sink, code string, typ Type, payload any, at time.Time) error {
	env, err := New(code, typ, payload, at)
	if err != nil {
		log.Error().Err(err).Str("game_code", code).Str("event_type", string(typ)).Msg("failed to build event")
		return err
	}
	if err := sink.Publish(ctx, env); err != nil {
		log.Warn().Err(err).Str("game_code", code).Str("event_type", string(typ)).Msg("failed to publish event")
		return err
	}
	log.Debug().Str("game_code", code).Str("event_type", string(typ)).Str("event_id", env.ID).Msg("event published")
	return nil
}
