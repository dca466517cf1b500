// Package events defines the game events pushed to clients and other
// subscribers, their payloads and the sinks that deliver them.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/models"
)

// Room broadcasts carry a redacted snapshot under "game" so clients can
// re-render without keeping their own state.

// PlayerJoinedPayload is the payload for a PlayerJoined event
type PlayerJoinedPayload struct {
	Player models.Player `json:"player"`
	Game   *models.Game  `json:"game"`
}

// PlayerDisconnectedPayload is the payload for a PlayerDisconnected event
type PlayerDisconnectedPayload struct {
	PlayerID string       `json:"player_id"`
	Game     *models.Game `json:"game"`
}

// TeamUpdatedPayload is the payload for a TeamUpdated event
type TeamUpdatedPayload struct {
	PlayerID string        `json:"player_id"`
	TeamID   models.TeamID `json:"team_id"`
	Game     *models.Game  `json:"game"`
}

// GameStartedPayload is the payload for a GameStarted event
type GameStartedPayload struct {
	Round       int           `json:"round"`
	CurrentTurn models.TeamID `json:"current_turn"`
	Game        *models.Game  `json:"game"`
}

// AnswerPayload is the payload for AnswerCorrect and AnswerIncorrect events
type AnswerPayload struct {
	Verdict judge.Verdict `json:"verdict"`
	Game    *models.Game  `json:"game"`
}

// CardsRevealedPayload is the payload for RemainingCardsRevealed and
// AnswersRevealed events
type CardsRevealedPayload struct {
	QuestionIndex int          `json:"question_index"`
	Revealed      int          `json:"revealed"`
	Game          *models.Game `json:"game"`
}

// TurnPayload is the payload for TurnChanged and NextQuestion events
type TurnPayload struct {
	Round         int           `json:"round"`
	QuestionIndex int           `json:"question_index"`
	CurrentTurn   models.TeamID `json:"current_turn"`
	Game          *models.Game  `json:"game"`
}

// RoundCompletePayload is the payload for a RoundComplete event
type RoundCompletePayload struct {
	Summary engine.RoundSummary `json:"summary"`
	Game    *models.Game        `json:"game"`
}

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	Round       int           `json:"round"`
	CurrentTurn models.TeamID `json:"current_turn"`
	Game        *models.Game  `json:"game"`
}

// GameOverPayload is the payload for a GameOver event
type GameOverPayload struct {
	Winner  models.TeamID       `json:"winner,omitempty"`
	Tie     bool                `json:"tie"`
	Summary engine.RoundSummary `json:"summary"`
	Game    *models.Game        `json:"game"`
}

// GameResetPayload is the payload for a GameReset event
type GameResetPayload struct {
	Game *models.Game `json:"game"`
}

// HostJoinedPayload carries the unredacted game to the host only.
type HostJoinedPayload struct {
	Game *models.Game `json:"game"`
}

// JoinedGamePayload tells a player which id to use for rejoining.
type JoinedGamePayload struct {
	PlayerID string        `json:"player_id"`
	Player   models.Player `json:"player"`
	Game     *models.Game  `json:"game"`
}

// PlayersListPayload is the reply to get-players.
type PlayersListPayload struct {
	Players []models.Player `json:"players"`
}

// RejectionPayload is the payload for AnswerRejected and Error events
type RejectionPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ForTransition returns the event announcing an engine outcome on g, the game
// as committed after the transition.
func ForTransition(o engine.Outcome, g *models.Game) (Type, any, bool) {
	snap := g.Redacted()
	switch o {
	case engine.OutcomeNextQuestion:
		return TypeNextQuestion, TurnPayload{
			Round:         g.CurrentRound,
			QuestionIndex: g.CurrentQuestionIndex,
			CurrentTurn:   g.GameState.CurrentTurn,
			Game:          snap,
		}, true
	case engine.OutcomeTurnChanged:
		return TypeTurnChanged, TurnPayload{
			Round:         g.CurrentRound,
			QuestionIndex: g.CurrentQuestionIndex,
			CurrentTurn:   g.GameState.CurrentTurn,
			Game:          snap,
		}, true
	case engine.OutcomeRoundComplete:
		return TypeRoundComplete, RoundCompletePayload{
			Summary: engine.Summarize(g),
			Game:    snap,
		}, true
	case engine.OutcomeRoundStarted:
		return TypeRoundStarted, RoundStartedPayload{
			Round:       g.CurrentRound,
			CurrentTurn: g.GameState.CurrentTurn,
			Game:        snap,
		}, true
	case engine.OutcomeGameOver:
		winner, ok := engine.Winner(g)
		return TypeGameOver, GameOverPayload{
			Winner:  winner,
			Tie:     !ok,
			Summary: engine.Summarize(g),
			Game:    snap,
		}, true
	default:
		return "", nil, false
	}
}

// ParsePayload decodes env.Data into the payload struct for its type.
func ParsePayload(env *Envelope) (any, error) {
	var v any
	switch env.Type {
	case TypePlayerJoined:
		v = &PlayerJoinedPayload{}
	case TypePlayerDisconnected:
		v = &PlayerDisconnectedPayload{}
	case TypeTeamUpdated:
		v = &TeamUpdatedPayload{}
	case TypeGameStarted:
		v = &GameStartedPayload{}
	case TypeAnswerCorrect, TypeAnswerIncorrect:
		v = &AnswerPayload{}
	case TypeRemainingCardsRevealed, TypeAnswersRevealed:
		v = &CardsRevealedPayload{}
	case TypeTurnChanged, TypeNextQuestion:
		v = &TurnPayload{}
	case TypeRoundComplete:
		v = &RoundCompletePayload{}
	case TypeRoundStarted:
		v = &RoundStartedPayload{}
	case TypeGameOver:
		v = &GameOverPayload{}
	case TypeGameReset:
		v = &GameResetPayload{}
	case TypeHostJoined:
		v = &HostJoinedPayload{}
	case TypeJoinedGame:
		v = &JoinedGamePayload{}
	case TypePlayersList:
		v = &PlayersListPayload{}
	case TypeAnswerRejected, TypeError:
		v = &RejectionPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}
	return v, nil
}
