package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game"
	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/models"
)

// App defines what the gateway needs from the game app
type App interface {
	CreateGame(ctx context.Context, set string) (*models.Game, error)
	GetGame(ctx context.Context, code string) (*models.Game, error)
	GetPlayers(ctx context.Context, code string) ([]models.Player, error)
	JoinGame(ctx context.Context, code, name string) (game.JoinResult, error)
	RejoinGame(ctx context.Context, code, playerID string) (game.JoinResult, error)
	Disconnect(ctx context.Context, code, playerID string) error
	HostJoin(ctx context.Context, code, session, gameID string, teams *game.TeamsConfig) (*models.Game, error)
	JoinTeam(ctx context.Context, code, playerID string, team models.TeamID) (*models.Game, error)
	StartGame(ctx context.Context, code, session string) (*models.Game, error)
	SubmitAnswer(ctx context.Context, code, playerID, text string) (judge.Verdict, error)
	ContinueToNextRound(ctx context.Context, code, session string) (*models.Game, error)
	ForceNextQuestion(ctx context.Context, code, session string) (*models.Game, error)
	ForceRoundSummary(ctx context.Context, code, session string) (*models.Game, error)
	ResetGame(ctx context.Context, code, session string) (*models.Game, error)
	RevealAllAnswers(ctx context.Context, code, session string) (*models.Game, error)
}

// Client message types
const (
	MsgHostJoin          = "host-join"
	MsgJoinGame          = "join-game"
	MsgRejoin            = "rejoin"
	MsgJoinTeam          = "join-team"
	MsgStartGame         = "start-game"
	MsgSubmitAnswer      = "submit-answer"
	MsgContinueRound     = "continue-round"
	MsgForceNextQuestion = "force-next-question"
	MsgForceRoundSummary = "force-round-summary"
	MsgResetGame         = "reset-game"
	MsgRevealAllAnswers  = "reveal-all-answers"
	MsgGetPlayers        = "get-players"
)

// ClientMessage is everything a client can send. Only the fields of the
// given type are read.
type ClientMessage struct {
	Type     string            `json:"type"`
	GameID   string            `json:"game_id,omitempty"`   // host-join
	Teams    *game.TeamsConfig `json:"teams,omitempty"`     // host-join
	Name     string            `json:"name,omitempty"`      // join-game
	PlayerID string            `json:"player_id,omitempty"` // rejoin
	TeamID   models.TeamID     `json:"team_id,omitempty"`   // join-team
	Text     string            `json:"text,omitempty"`      // submit-answer
}

// Dispatcher turns client messages into game intents. Host intents use the
// connection id as the host session.
type Dispatcher struct {
	app     App
	manager *ConnectionManager
	clock   clockwork.Clock
}

func NewDispatcher(app App, manager *ConnectionManager, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{app: app, manager: manager, clock: clock}
}

// HandleMessage decodes and runs one client message.
func (d *Dispatcher) HandleMessage(ctx context.Context, c *Connection, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.reply(c, events.TypeError, events.RejectionPayload{Reason: "bad-message", Message: "message is not valid JSON"})
		return
	}

	err := d.dispatch(ctx, c, msg)
	if err == nil {
		return
	}

	logger := log.With().
		Str("connection_id", c.ID).
		Str("game_code", c.GameCode).
		Str("message_type", msg.Type).
		Logger()
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		logger.Warn().Err(err).Msg("ignoring unauthorized intent")
	case msg.Type == MsgSubmitAnswer && game.IsRejection(err):
		logger.Debug().Err(err).Msg("answer rejected")
		d.reply(c, events.TypeAnswerRejected, events.RejectionPayload{Reason: game.RejectReason(err), Message: err.Error()})
	case game.IsRejection(err):
		logger.Debug().Err(err).Msg("intent rejected")
		d.reply(c, events.TypeError, events.RejectionPayload{Reason: game.RejectReason(err), Message: err.Error()})
	default:
		logger.Error().Err(err).Msg("failed to handle client message")
		d.reply(c, events.TypeError, events.RejectionPayload{Reason: game.ReasonInternal, Message: "internal error"})
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Connection, msg ClientMessage) error {
	code := c.GameCode
	switch msg.Type {
	case MsgHostJoin:
		g, err := d.app.HostJoin(ctx, code, c.ID, msg.GameID, msg.Teams)
		if err != nil {
			return err
		}
		d.reply(c, events.TypeHostJoined, events.HostJoinedPayload{Game: g})
		return nil

	case MsgJoinGame:
		res, err := d.app.JoinGame(ctx, code, msg.Name)
		if err != nil {
			return err
		}
		c.SetPlayerID(res.Player.ID)
		d.reply(c, events.TypeJoinedGame, events.JoinedGamePayload{PlayerID: res.Player.ID, Player: res.Player, Game: res.Game.Redacted()})
		return nil

	case MsgRejoin:
		res, err := d.app.RejoinGame(ctx, code, msg.PlayerID)
		if err != nil {
			return err
		}
		c.SetPlayerID(res.Player.ID)
		d.reply(c, events.TypeJoinedGame, events.JoinedGamePayload{PlayerID: res.Player.ID, Player: res.Player, Game: res.Game.Redacted()})
		return nil

	case MsgJoinTeam:
		_, err := d.app.JoinTeam(ctx, code, c.PlayerID(), msg.TeamID)
		return err

	case MsgSubmitAnswer:
		_, err := d.app.SubmitAnswer(ctx, code, c.PlayerID(), msg.Text)
		return err

	case MsgGetPlayers:
		players, err := d.app.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		d.reply(c, events.TypePlayersList, events.PlayersListPayload{Players: players})
		return nil

	case MsgStartGame:
		_, err := d.app.StartGame(ctx, code, c.ID)
		return err
	case MsgContinueRound:
		_, err := d.app.ContinueToNextRound(ctx, code, c.ID)
		return err
	case MsgForceNextQuestion:
		_, err := d.app.ForceNextQuestion(ctx, code, c.ID)
		return err
	case MsgForceRoundSummary:
		_, err := d.app.ForceRoundSummary(ctx, code, c.ID)
		return err
	case MsgResetGame:
		_, err := d.app.ResetGame(ctx, code, c.ID)
		return err
	case MsgRevealAllAnswers:
		_, err := d.app.RevealAllAnswers(ctx, code, c.ID)
		return err

	default:
		d.reply(c, events.TypeError, events.RejectionPayload{Reason: "unknown-message", Message: fmt.Sprintf("unknown message type %q", msg.Type)})
		return nil
	}
}

// HandleClose marks the connection's player as disconnected.
func (d *Dispatcher) HandleClose(ctx context.Context, c *Connection) {
	pid := c.PlayerID()
	if pid == "" {
		return
	}
	if err := d.app.Disconnect(ctx, c.GameCode, pid); err != nil && !errors.Is(err, models.ErrGameNotFound) {
		log.Warn().Err(err).Str("game_code", c.GameCode).Str("player_id", pid).Msg("failed to mark player disconnected")
	}
}

func (d *Dispatcher) reply(c *Connection, typ events.Type, payload any) {
	env, err := events.New(c.GameCode, typ, payload, d.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build reply")
		return
	}
	if err := d.manager.SendTo(c, env); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Str("event_type", string(typ)).Msg("failed to send reply")
	}
}
