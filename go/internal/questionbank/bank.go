// Package questionbank loads the question sets games are built from. Sets
// come from YAML files, the embedded default bank, or Postgres.
package questionbank

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/models"
)

// ErrSetNotFound is returned when no question set has the requested name.
var ErrSetNotFound = errors.New("question set not found")

// Source hands out private copies of a named question set.
type Source interface {
	Questions(ctx context.Context, set string) ([]models.Question, error)
}

// Bank is an in-memory collection of validated question sets.
type Bank struct {
	mu   sync.RWMutex
	sets map[string][]models.Question
}

// NewBank creates an empty bank
func NewBank() *Bank {
	return &Bank{sets: make(map[string][]models.Question)}
}

// Add validates qs and stores it under name, replacing any previous set.
// Every card is stored hidden.
func (b *Bank) Add(name string, qs []models.Question) error {
	if name == "" {
		return fmt.Errorf("%w: empty set name", models.ErrInvalidQuestionBank)
	}
	if err := engine.ValidateQuestions(qs); err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}

	stored := models.CloneQuestions(qs)
	for i := range stored {
		stored[i].HideAll()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets[name] = stored
	return nil
}

// Questions returns a copy of the named set.
func (b *Bank) Questions(_ context.Context, set string) ([]models.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	qs, ok := b.sets[set]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSetNotFound, set)
	}
	return models.CloneQuestions(qs), nil
}

// Sets lists the stored set names in sorted order.
func (b *Bank) Sets() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.sets))
	for name := range b.sets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of stored sets
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sets)
}
