package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/game/sequencer"
	"github.com/mcdev12/feud/go/internal/game/store"
	"github.com/mcdev12/feud/go/internal/publisher"
	"github.com/mcdev12/feud/go/internal/questionbank"
)

const envPrefix = "FEUD"

// Question sources
const (
	sourceFile     = "file"
	sourcePostgres = "postgres"
)

type Config struct {
	bind           string
	port           int
	publicURL      string
	allowedOrigins []string
	profile        bool
	logLevel       string
	logEvents      bool

	questions      string
	questionSource string
	questionSet    string
	databaseURL    string

	natsURL    string
	natsStream string

	matchPolicy   string
	revealDelay   time.Duration
	advanceDelay  time.Duration
	retention     time.Duration
	sweepInterval time.Duration

	// resolved by validate
	level  zerolog.Level
	policy judge.Policy
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	switch c.questionSource {
	case sourceFile:
	case sourcePostgres:
		if c.questions != "" {
			return errors.New("--questions only applies to --question-source=file")
		}
	default:
		return fmt.Errorf("invalid question source %q (must be %s or %s)", c.questionSource, sourceFile, sourcePostgres)
	}
	if strings.TrimSpace(c.questionSet) == "" {
		return errors.New("--question-set must not be empty")
	}

	if c.revealDelay < 0 || c.advanceDelay < 0 {
		return errors.New("--reveal-delay and --advance-delay must not be negative")
	}
	if c.retention <= 0 || c.sweepInterval <= 0 {
		return errors.New("--retention and --sweep-interval must be positive")
	}

	policy, err := judge.ParsePolicy(c.matchPolicy)
	if err != nil {
		return err
	}
	c.policy = policy

	level, err := zerolog.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	c.level = level
	return nil
}

func (c *Config) sequencerConfig() sequencer.Config {
	return sequencer.Config{RevealDelay: c.revealDelay, AdvanceDelay: c.advanceDelay}
}

func (c *Config) jetStreamConfig() publisher.JetStreamConfig {
	js := publisher.DefaultJetStreamConfig()
	js.URL = c.natsURL
	js.StreamName = c.natsStream
	return js
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "feud",
		Short:         "Multiplayer Sanskrit Family Feud game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			setupLogging(cfg.level)
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FEUD_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FEUD_PORT)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "base URL players join from, encoded in join QR codes (env: FEUD_PUBLIC_URL)")
	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{"*"}, "origins allowed for CORS and WebSocket upgrades (env: FEUD_ALLOWED_ORIGINS)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FEUD_PROFILE)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: FEUD_LOG_LEVEL)")
	fs.BoolVar(&cfg.logEvents, "log-events", false, "log every game event with its payload at debug level (env: FEUD_LOG_EVENTS)")

	fs.StringVarP(&cfg.questions, "questions", "q", "", "YAML question bank file, defaults to the built-in bank (env: FEUD_QUESTIONS)")
	fs.StringVar(&cfg.questionSource, "question-source", sourceFile, "where question sets are loaded from: file or postgres (env: FEUD_QUESTION_SOURCE)")
	fs.StringVar(&cfg.questionSet, "question-set", questionbank.DefaultSet, "question set used when a game does not name one (env: FEUD_QUESTION_SET)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "Postgres URL, defaults to the DB_* variables (env: FEUD_DATABASE_URL)")

	addNATSFlags(fs, &cfg.natsURL, &cfg.natsStream, "")

	fs.StringVar(&cfg.matchPolicy, "match-policy", judge.Lenient.Name, "answer matching: lenient, strict or exact (env: FEUD_MATCH_POLICY)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", sequencer.DefaultRevealDelay, "pause before remaining cards are revealed (env: FEUD_REVEAL_DELAY)")
	fs.DurationVar(&cfg.advanceDelay, "advance-delay", sequencer.DefaultAdvanceDelay, "pause before moving to the next question (env: FEUD_ADVANCE_DELAY)")
	fs.DurationVar(&cfg.retention, "retention", store.DefaultRetention, "time before games are swept (env: FEUD_RETENTION)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", store.DefaultSweepInterval, "how often stale games are swept (env: FEUD_SWEEP_INTERVAL)")

	bindFlags(v, fs)

	cmd.AddCommand(newTailCmd(v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("feud v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// addNATSFlags registers the flags shared by the server and tail.
func addNATSFlags(fs *pflag.FlagSet, url, stream *string, defaultURL string) {
	fs.StringVar(url, "nats-url", defaultURL, "NATS server URL; events are also published to JetStream when set (env: FEUD_NATS_URL)")
	fs.StringVar(stream, "nats-stream", publisher.DefaultJetStreamConfig().StreamName, "JetStream stream holding game events (env: FEUD_NATS_STREAM)")
}

// bindFlags lets FEUD_* environment variables fill in flags that were not
// given on the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
