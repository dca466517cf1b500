package publisher

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/feud/go/internal/game/events"
)

// Stats is a point-in-time view of what a MetricPublisher has seen.
type Stats struct {
	Published     uint64                 `json:"published"`
	Failed        uint64                 `json:"failed"`
	ByType        map[events.Type]uint64 `json:"by_type"`
	LastEventTime time.Time              `json:"last_event_time"`
	LastError     string                 `json:"last_error,omitempty"`
}

// MetricPublisher wraps a sink and counts deliveries per event type.
type MetricPublisher struct {
	sink  events.Sink
	clock clockwork.Clock

	mu    sync.Mutex
	stats Stats
}

func NewMetricPublisher(sink events.Sink, clock clockwork.Clock) *MetricPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricPublisher{
		sink:  sink,
		clock: clock,
		stats: Stats{ByType: make(map[events.Type]uint64)},
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, env events.Envelope) error {
	err := p.sink.Publish(ctx, env)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.LastEventTime = p.clock.Now()
	if err != nil {
		p.stats.Failed++
		p.stats.LastError = err.Error()
		return err
	}
	p.stats.Published++
	p.stats.ByType[env.Type]++
	return nil
}

// Stats returns a copy of the counters.
func (p *MetricPublisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.ByType = maps.Clone(p.stats.ByType)
	return s
}
