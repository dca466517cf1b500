package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcdev12/feud/go/internal/game"
	"github.com/mcdev12/feud/go/internal/publisher"
)

type tailConfig struct {
	natsURL    string
	natsStream string
	game       string
	all        bool
	payloads   bool
}

func (c *tailConfig) consumerConfig() (publisher.ConsumerConfig, error) {
	cc := publisher.DefaultConsumerConfig()
	cc.JetStream.URL = c.natsURL
	cc.JetStream.StreamName = c.natsStream
	cc.DeliverAll = c.all
	if c.game != "" {
		code := game.NormalizeCode(c.game)
		if !game.ValidCode(code) {
			return cc, fmt.Errorf("invalid game code %q", c.game)
		}
		cc.GameCode = code
	}
	if cc.JetStream.URL == "" {
		return cc, errors.New("--nats-url must not be empty")
	}
	return cc, nil
}

// newTailCmd follows game events from JetStream and prints them, one line per
// event.
func newTailCmd(v *viper.Viper) *cobra.Command {
	cfg := &tailConfig{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print game events published to JetStream.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := cfg.consumerConfig()
			if err != nil {
				return err
			}

			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
			printer := publisher.NewLogPublisher(log.Logger, zerolog.InfoLevel, cfg.payloads)

			consumer, err := publisher.NewConsumer(cmd.Context(), printer, cc)
			if err != nil {
				return err
			}
			defer consumer.Close()

			return consumer.Run(cmd.Context())
		},
	}

	fs := cmd.Flags()
	addNATSFlags(fs, &cfg.natsURL, &cfg.natsStream, nats.DefaultURL)
	fs.StringVarP(&cfg.game, "game", "g", "", "only follow this game code")
	fs.BoolVar(&cfg.all, "all", false, "replay retained events before following new ones")
	fs.BoolVar(&cfg.payloads, "payloads", false, "print event payloads")
	bindFlags(v, fs)

	return cmd
}
