// Package eventstest provides an in-memory event sink for tests.
package eventstest

import (
	"context"
	"sync"

	"github.com/mcdev12/feud/go/internal/game/events"
)

// Recorder keeps every published envelope in order.
type Recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *Recorder) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

// Envelopes returns a copy of everything recorded so far.
func (r *Recorder) Envelopes() []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Envelope(nil), r.envs...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.envs))
	for i, e := range r.envs {
		out[i] = e.Type
	}
	return out
}

// Last returns the most recent envelope of typ.
func (r *Recorder) Last(typ events.Type) (events.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.envs) - 1; i >= 0; i-- {
		if r.envs[i].Type == typ {
			return r.envs[i], true
		}
	}
	return events.Envelope{}, false
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = nil
}
