package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game/events"
)

// ConsumerConfig holds configuration for following the event stream
type ConsumerConfig struct {
	JetStream     JetStreamConfig
	GameCode      string // empty follows every game
	DeliverAll    bool   // replay retained events before new ones
	MaxAckPending int
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		JetStream:     DefaultJetStreamConfig(),
		MaxAckPending: 100,
	}
}

// Consumer reads game events from JetStream and hands them to a sink. It uses
// an ordered consumer, so nothing is left behind on the server when it stops.
type Consumer struct {
	sink     events.Sink
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   ConsumerConfig
}

// NewConsumer connects to NATS and creates the ordered consumer.
func NewConsumer(ctx context.Context, sink events.Sink, cfg ConsumerConfig) (*Consumer, error) {
	nc, js, err := Connect(cfg.JetStream)
	if err != nil {
		return nil, err
	}

	policy := jetstream.DeliverNewPolicy
	if cfg.DeliverAll {
		policy = jetstream.DeliverAllPolicy
	}
	consumer, err := js.OrderedConsumer(ctx, cfg.JetStream.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{GameFilter(cfg.JetStream.SubjectPrefix, cfg.GameCode)},
		DeliverPolicy:  policy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	return &Consumer{sink: sink, nc: nc, consumer: consumer, config: cfg}, nil
}

// Run delivers events until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().
		Str("stream", c.config.JetStream.StreamName).
		Str("game_code", c.config.GameCode).
		Msg("following game events")

	messageCh := make(chan jetstream.Msg, c.config.MaxAckPending)
	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messageCh:
			if err := Deliver(ctx, c.sink, msg.Data()); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
			}
		}
	}
}

// Deliver decodes one published message and passes it to sink.
func Deliver(ctx context.Context, sink events.Sink, data []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.ID == "" || env.Type == "" || env.GameCode == "" {
		return fmt.Errorf("incomplete event envelope %q", env.ID)
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return sink.Publish(ctx, env)
}

func (c *Consumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
