package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/events/eventstest"
)

var at = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func envelope(t *testing.T, typ events.Type) events.Envelope {
	t.Helper()
	env, err := events.New("ABC234", typ, map[string]int{"round": 1}, at)
	require.NoError(t, err)
	return env
}

type fakeJetStream struct {
	msgs []*nats.Msg
	opts [][]jetstream.PublishOpt
	err  error
}

func (f *fakeJetStream) PublishMsg(_ context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	f.opts = append(f.opts, opts)
	return &jetstream.PubAck{Stream: "FEUD_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

func TestSubject(t *testing.T) {
	env := envelope(t, events.TypeTurnChanged)
	assert.Equal(t, "feud.events.ABC234.turn-changed", Subject("feud.events", env))
	assert.Equal(t, "feud.events.>", GameFilter("feud.events", ""))
	assert.Equal(t, "feud.events.XYZ789.>", GameFilter("feud.events", "xyz789"))
}

func TestJetStreamPublisher_Publish(t *testing.T) {
	js := &fakeJetStream{}
	p := &JetStreamPublisher{js: js, config: DefaultJetStreamConfig()}
	env := envelope(t, events.TypeAnswerCorrect)

	require.NoError(t, p.Publish(context.Background(), env))

	require.Len(t, js.msgs, 1)
	msg := js.msgs[0]
	assert.Equal(t, "feud.events.ABC234.answer-correct", msg.Subject)
	assert.Equal(t, "answer-correct", msg.Header.Get(HeaderEventType))
	assert.Equal(t, "ABC234", msg.Header.Get(HeaderGameCode))
	assert.Equal(t, env.ID, msg.Header.Get(HeaderEventID))
	assert.Len(t, js.opts[0], 2)

	var got events.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, env.ID, got.ID)
	assert.JSONEq(t, `{"round":1}`, string(got.Data))
}

func TestJetStreamPublisher_SkipsUnicast(t *testing.T) {
	js := &fakeJetStream{}
	p := &JetStreamPublisher{js: js, config: DefaultJetStreamConfig()}

	require.NoError(t, p.Publish(context.Background(), envelope(t, events.TypeHostJoined)))
	require.NoError(t, p.Publish(context.Background(), envelope(t, events.TypeAnswerRejected)))

	assert.Empty(t, js.msgs)
	assert.False(t, p.Connected())
	assert.NoError(t, p.Close())
}

func TestJetStreamPublisher_Error(t *testing.T) {
	boom := errors.New("no responders")
	p := &JetStreamPublisher{js: &fakeJetStream{err: boom}, config: DefaultJetStreamConfig()}

	err := p.Publish(context.Background(), envelope(t, events.TypeGameOver))

	assert.ErrorIs(t, err, boom)
}

func TestStreamConfig(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := streamConfig(cfg)

	assert.Equal(t, []string{"feud.events.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, streamConfig(cfg)))

	cfg.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(sc, streamConfig(cfg)))
}

func TestDeliver(t *testing.T) {
	rec := &eventstest.Recorder{}
	env := envelope(t, events.TypeRoundStarted)
	data, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, Deliver(context.Background(), rec, data))

	got, ok := rec.Last(events.TypeRoundStarted)
	require.True(t, ok)
	assert.Equal(t, env.ID, got.ID)
	assert.True(t, env.Timestamp.Equal(got.Timestamp))

	assert.Error(t, Deliver(context.Background(), rec, []byte("{")))
	assert.Error(t, Deliver(context.Background(), rec, []byte(`{"id":"x"}`)))
	assert.Len(t, rec.Envelopes(), 1)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf), zerolog.InfoLevel, true)

	require.NoError(t, p.Publish(context.Background(), envelope(t, events.TypeGameStarted)))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "game-started", line["event_type"])
	assert.Equal(t, "ABC234", line["game_code"])
	assert.Equal(t, map[string]any{"round": float64(1)}, line["data"])
}

func TestMetricPublisher(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at)
	failing := true
	inner := events.SinkFunc(func(context.Context, events.Envelope) error {
		if failing {
			return errors.New("socket closed")
		}
		return nil
	})
	p := NewMetricPublisher(inner, clock)

	assert.Error(t, p.Publish(context.Background(), envelope(t, events.TypeNextQuestion)))
	failing = false
	clock.Advance(time.Second)
	require.NoError(t, p.Publish(context.Background(), envelope(t, events.TypeNextQuestion)))
	require.NoError(t, p.Publish(context.Background(), envelope(t, events.TypeGameOver)))

	s := p.Stats()
	assert.Equal(t, uint64(2), s.Published)
	assert.Equal(t, uint64(1), s.Failed)
	assert.Equal(t, "socket closed", s.LastError)
	assert.Equal(t, uint64(1), s.ByType[events.TypeNextQuestion])
	assert.Equal(t, at.Add(time.Second), s.LastEventTime)

	s.ByType[events.TypeGameOver] = 99
	assert.Equal(t, uint64(1), p.Stats().ByType[events.TypeGameOver])
}
