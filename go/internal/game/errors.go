package game

import (
	"errors"

	"github.com/mcdev12/feud/go/internal/models"
)

// Reason strings sent to clients with answer-rejected and error events.
const (
	ReasonGameNotFound     = "game-not-found"
	ReasonPlayerNotFound   = "player-not-found"
	ReasonInvalidTeam      = "invalid-team"
	ReasonNotYourTurn      = "not-your-turn"
	ReasonAlreadyAnswered  = "already-answered"
	ReasonUnauthorized     = "unauthorized"
	ReasonInvalidGameState = "invalid-game-state"
	ReasonEmptyAnswer      = "empty-answer"
	ReasonInvalidName      = "invalid-player-name"
	ReasonInvalidBank      = "invalid-question-bank"
	ReasonInternal         = "internal"
)

// RejectReason maps an intent error to its stable reason string.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrGameNotFound):
		return ReasonGameNotFound
	case errors.Is(err, models.ErrPlayerNotFound):
		return ReasonPlayerNotFound
	case errors.Is(err, models.ErrInvalidTeam):
		return ReasonInvalidTeam
	case errors.Is(err, models.ErrNotYourTurn):
		return ReasonNotYourTurn
	case errors.Is(err, models.ErrAlreadyAnswered):
		return ReasonAlreadyAnswered
	case errors.Is(err, models.ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, models.ErrInvalidGameState):
		return ReasonInvalidGameState
	case errors.Is(err, models.ErrEmptyAnswer):
		return ReasonEmptyAnswer
	case errors.Is(err, models.ErrInvalidPlayerName):
		return ReasonInvalidName
	case errors.Is(err, models.ErrInvalidQuestionBank):
		return ReasonInvalidBank
	default:
		return ReasonInternal
	}
}

// IsRejection reports whether err is an expected intent rejection rather than
// an internal failure.
func IsRejection(err error) bool {
	return err != nil && RejectReason(err) != ReasonInternal
}
