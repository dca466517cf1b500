// Package store owns every game record. All mutation goes through Update,
// which serializes per game and commits only successful mutations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/feud/go/internal/models"
)

// ErrCodeTaken is returned by Create when the game code is already in use.
var ErrCodeTaken = errors.New("game code already taken")

// Mutator changes a working copy of a game. Returning an error discards the copy.
type Mutator func(g *models.Game) error

// Announcer is handed the committed game while the game is still locked.
// Whatever it publishes for one game is therefore seen in commit order. It
// must not call back into the store for the same game.
type Announcer func(g *models.Game)

// PlayerMutator changes a player and its game on a working copy.
type PlayerMutator func(g *models.Game, p *models.Player) error

// Store is the authoritative game state holder. Every returned game is a
// snapshot the caller may keep or modify freely.
type Store interface {
	Create(ctx context.Context, g *models.Game) error
	Get(ctx context.Context, code string) (*models.Game, error)
	GetPlayer(ctx context.Context, playerID string) (*models.Player, string, error)
	Update(ctx context.Context, code string, fn Mutator) (*models.Game, error)
	UpdateAndAnnounce(ctx context.Context, code string, fn Mutator, announce Announcer) (*models.Game, error)
	UpdatePlayer(ctx context.Context, playerID string, fn PlayerMutator) (*models.Game, error)
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) bool
	Codes(ctx context.Context) []string
	SweepOlderThan(ctx context.Context, cutoff time.Time) []string
}
