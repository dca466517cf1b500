package models

import "errors"

// Intent errors. None of them is fatal; a rejected intent leaves the game as it
// was before the attempt.
var (
	ErrGameNotFound        = errors.New("game not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInvalidTeam         = errors.New("invalid team")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrAlreadyAnswered     = errors.New("already answered")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidGameState    = errors.New("invalid game state")
	ErrEmptyAnswer         = errors.New("empty answer")
	ErrInvalidPlayerName   = errors.New("invalid player name")
	ErrInvalidQuestionBank = errors.New("invalid question bank")
)
