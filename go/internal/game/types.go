package game

import (
	"context"

	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/game/sequencer"
	"github.com/mcdev12/feud/go/internal/models"
)

// QuestionSource defines what the game app needs from the question bank
type QuestionSource interface {
	Questions(ctx context.Context, set string) ([]models.Question, error)
}

// Scheduler defines what the game app needs from the sequencer
type Scheduler interface {
	AnswerJudged(code string, v judge.Verdict, cp sequencer.Checkpoint)
	Cancel(code string)
}

// Config holds the app's tunables.
type Config struct {
	MatchPolicy        judge.Policy
	DefaultQuestionSet string
	// CodeAttempts bounds retries when a generated code is already taken.
	CodeAttempts int
	// MaxNameLength caps player display names in runes.
	MaxNameLength int
}

// TeamConfig overrides one team's name and, when Members is non-nil, its roster.
type TeamConfig struct {
	ID      models.TeamID `json:"id"`
	Name    string        `json:"name,omitempty"`
	Members []string      `json:"members,omitempty"`
}

// TeamsConfig is the optional team setup sent by the host on join.
type TeamsConfig struct {
	Teams []TeamConfig `json:"teams"`
}

// JoinResult is returned to a player who joined or rejoined a game.
type JoinResult struct {
	Player models.Player
	Game   *models.Game
}
