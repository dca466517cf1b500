package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/models"
)

type entry struct {
	mu        sync.Mutex
	game      *models.Game
	createdAt time.Time
	deleted   bool
}

// MemoryStore keeps games in process memory. Each game has its own lock; the
// store-wide lock only guards the code and player indexes and is never held
// while a game lock is.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	games   map[string]*entry
	players map[string]string // player id -> game code
}

// NewMemoryStore creates an empty store stamping updates with clock.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:   clock,
		games:   make(map[string]*entry),
		players: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, g *models.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := engine.CheckInvariants(g); err != nil {
		return fmt.Errorf("refusing to store game %s: %w", g.Code, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[g.Code]; exists {
		return fmt.Errorf("%w: %s", ErrCodeTaken, g.Code)
	}
	s.games[g.Code] = &entry{game: g.Clone(), createdAt: g.CreatedAt}
	for _, p := range g.Players {
		s.players[p.ID] = g.Code
	}

	log.Debug().Str("game_code", g.Code).Msg("game stored")
	return nil
}

func (s *MemoryStore) lookup(code string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.games[code]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, code)
	}
	return e, nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*models.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := s.lookup(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, code)
	}
	return e.game.Clone(), nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, playerID string) (*models.Player, string, error) {
	code, err := s.codeForPlayer(playerID)
	if err != nil {
		return nil, "", err
	}
	g, err := s.Get(ctx, code)
	if err != nil {
		return nil, "", err
	}
	p := g.Player(playerID)
	if p == nil {
		return nil, "", fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
	}
	return p, code, nil
}

func (s *MemoryStore) codeForPlayer(playerID string) (string, error) {
	s.mu.RLock()
	code, ok := s.players[playerID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
	}
	return code, nil
}

// Update runs fn on a working copy under the game's lock. The copy replaces
// the stored game only when fn succeeds and the result is consistent.
func (s *MemoryStore) Update(ctx context.Context, code string, fn Mutator) (*models.Game, error) {
	return s.UpdateAndAnnounce(ctx, code, fn, nil)
}

// UpdateAndAnnounce is Update that also runs announce on the committed game
// before the game's lock is released. A failed mutation announces nothing.
func (s *MemoryStore) UpdateAndAnnounce(ctx context.Context, code string, fn Mutator, announce Announcer) (*models.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := s.lookup(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, code)
	}

	work := e.game.Clone()
	if err := fn(work); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := engine.CheckInvariants(work); err != nil {
		e.mu.Unlock()
		log.Error().Err(err).Str("game_code", code).Msg("discarding update that breaks game invariants")
		return nil, err
	}
	work.Code = code
	work.UpdatedAt = s.clock.Now()
	e.game = work
	out := work.Clone()
	if announce != nil {
		announce(out.Clone())
	}
	e.mu.Unlock()

	s.indexPlayers(code, out.Players)
	return out, nil
}

func (s *MemoryStore) indexPlayers(code string, players []models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[code]; !ok {
		return
	}
	for _, p := range players {
		s.players[p.ID] = code
	}
}

func (s *MemoryStore) UpdatePlayer(ctx context.Context, playerID string, fn PlayerMutator) (*models.Game, error) {
	code, err := s.codeForPlayer(playerID)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, code, func(g *models.Game) error {
		p := g.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		return fn(g, p)
	})
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	e, ok := s.removeLocked(code)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrGameNotFound, code)
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// removeLocked drops code from both indexes. s.mu must be held.
func (s *MemoryStore) removeLocked(code string) (*entry, bool) {
	e, ok := s.games[code]
	if !ok {
		return nil, false
	}
	delete(s.games, code)
	for pid, c := range s.players {
		if c == code {
			delete(s.players, pid)
		}
	}
	return e, true
}

func (s *MemoryStore) Exists(_ context.Context, code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.games[code]
	return ok
}

func (s *MemoryStore) Codes(_ context.Context) []string {
	s.mu.RLock()
	codes := make([]string, 0, len(s.games))
	for code := range s.games {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	slices.Sort(codes)
	return codes
}

// SweepOlderThan deletes every game created before cutoff and returns their codes.
func (s *MemoryStore) SweepOlderThan(_ context.Context, cutoff time.Time) []string {
	var (
		removed []string
		entries []*entry
	)

	s.mu.Lock()
	for code, e := range s.games {
		if e.createdAt.Before(cutoff) {
			removed = append(removed, code)
		}
	}
	for _, code := range removed {
		if e, ok := s.removeLocked(code); ok {
			entries = append(entries, e)
		}
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.deleted = true
		e.mu.Unlock()
	}
	slices.Sort(removed)
	return removed
}
