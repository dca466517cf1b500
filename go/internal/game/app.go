// Package game turns player and host intents into atomic game mutations and
// the events that announce them.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game/engine"
	"github.com/mcdev12/feud/go/internal/game/events"
	"github.com/mcdev12/feud/go/internal/game/judge"
	"github.com/mcdev12/feud/go/internal/game/sequencer"
	"github.com/mcdev12/feud/go/internal/game/store"
	"github.com/mcdev12/feud/go/internal/models"
)

const (
	defaultCodeAttempts  = 10
	defaultMaxNameLength = 32
)

// App handles game intents
type App struct {
	store store.Store
	bank  QuestionSource
	seq   Scheduler
	sink  events.Sink
	clock clockwork.Clock
	cfg   Config
}

// NewApp creates a new game App
func NewApp(st store.Store, bank QuestionSource, seq Scheduler, sink events.Sink, clock clockwork.Clock, cfg Config) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MatchPolicy.Name == "" {
		cfg.MatchPolicy = judge.Lenient
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = defaultCodeAttempts
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = defaultMaxNameLength
	}
	return &App{
		store: st,
		bank:  bank,
		seq:   seq,
		sink:  sink,
		clock: clock,
		cfg:   cfg,
	}
}

// emit is called from store announcers, so events for one game leave in
// commit order.
func (a *App) emit(ctx context.Context, code string, typ events.Type, payload any) {
	_ = events.Emit(ctx, a.sink, code, typ, payload, a.clock.Now())
}

// authorize checks that session is the bound host of g.
func authorize(g *models.Game, session string) error {
	if session == "" || g.HostSession == "" || session != g.HostSession {
		return fmt.Errorf("%w: host-only action on game %s", models.ErrUnauthorized, g.Code)
	}
	return nil
}

// CreateGame builds a waiting game over a question set. The returned game
// carries the id the host must present to claim it.
func (a *App) CreateGame(ctx context.Context, set string) (*models.Game, error) {
	if set == "" {
		set = a.cfg.DefaultQuestionSet
	}
	qs, err := a.bank.Questions(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("failed to load question set %q: %w", set, err)
	}
	if err := engine.ValidateQuestions(qs); err != nil {
		return nil, fmt.Errorf("question set %q: %w", set, err)
	}

	for attempt := 0; attempt < a.cfg.CodeAttempts; attempt++ {
		code, err := NewCode()
		if err != nil {
			return nil, err
		}
		g := models.NewGame(uuid.New(), code, qs, a.clock.Now())
		err = a.store.Create(ctx, g)
		if errors.Is(err, store.ErrCodeTaken) {
			log.Debug().Str("game_code", code).Msg("game code collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create game: %w", err)
		}

		log.Info().
			Str("game_code", code).
			Str("game_id", g.ID.String()).
			Str("question_set", set).
			Int("questions", len(qs)).
			Msg("game created")
		return g, nil
	}
	return nil, fmt.Errorf("failed to find a free game code after %d attempts", a.cfg.CodeAttempts)
}

// GetGame returns a full snapshot of a game.
func (a *App) GetGame(ctx context.Context, code string) (*models.Game, error) {
	return a.store.Get(ctx, code)
}

// GetPlayers returns the players of a game in join order.
func (a *App) GetPlayers(ctx context.Context, code string) ([]models.Player, error) {
	g, err := a.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return g.Players, nil
}

// JoinGame adds a new player to a game. Players may join at any status.
func (a *App) JoinGame(ctx context.Context, code, name string) (JoinResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > a.cfg.MaxNameLength {
		return JoinResult{}, fmt.Errorf("%w: %q", models.ErrInvalidPlayerName, name)
	}

	player := models.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  a.clock.Now(),
	}
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		g.Players = append(g.Players, player)
		return nil
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypePlayerJoined, events.PlayerJoinedPayload{Player: player, Game: g.Redacted()})
	})
	if err != nil {
		return JoinResult{}, err
	}

	log.Info().Str("game_code", code).Str("player_id", player.ID).Str("player_name", name).Msg("player joined")
	return JoinResult{Player: player, Game: g}, nil
}

// RejoinGame reconnects an existing player, keeping its team and history.
func (a *App) RejoinGame(ctx context.Context, code, playerID string) (JoinResult, error) {
	var player models.Player
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		p := g.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		p.Connected = true
		player = *p
		return nil
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypePlayerJoined, events.PlayerJoinedPayload{Player: player, Game: g.Redacted()})
	})
	if err != nil {
		return JoinResult{}, err
	}

	log.Info().Str("game_code", code).Str("player_id", playerID).Msg("player rejoined")
	return JoinResult{Player: player, Game: g}, nil
}

// Disconnect marks a player as gone. The player keeps its seat.
func (a *App) Disconnect(ctx context.Context, code, playerID string) error {
	_, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		p := g.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		p.Connected = false
		return nil
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{PlayerID: playerID, Game: g.Redacted()})
	})
	return err
}

// HostJoin binds session as the game's host. gameID is the id returned by
// CreateGame. A later HostJoin with the same id moves the host to the new
// session. The full, unredacted game is returned for the host only.
func (a *App) HostJoin(ctx context.Context, code, session, gameID string, teams *TeamsConfig) (*models.Game, error) {
	if session == "" {
		return nil, fmt.Errorf("%w: empty host session", models.ErrUnauthorized)
	}
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if gameID == "" || gameID != g.ID.String() {
			return fmt.Errorf("%w: game id does not match %s", models.ErrUnauthorized, code)
		}
		g.HostSession = session
		if teams != nil {
			return applyTeamsConfig(g, *teams)
		}
		return nil
	}, func(g *models.Game) {
		if teams != nil {
			a.emit(ctx, code, events.TypeTeamUpdated, events.TeamUpdatedPayload{Game: g.Redacted()})
		}
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_code", code).Str("session", session).Msg("host joined")
	return g, nil
}

func applyTeamsConfig(g *models.Game, cfg TeamsConfig) error {
	for _, tc := range cfg.Teams {
		t := g.Team(tc.ID)
		if t == nil {
			return fmt.Errorf("%w: %q", models.ErrInvalidTeam, tc.ID)
		}
		if name := strings.TrimSpace(tc.Name); name != "" {
			t.Name = name
		}
		if tc.Members == nil {
			continue
		}
		for _, pid := range t.Members {
			if p := g.Player(pid); p != nil {
				p.TeamID = ""
			}
		}
		t.Members = []string{}
		for _, pid := range tc.Members {
			p := g.Player(pid)
			if p == nil {
				return fmt.Errorf("%w: %s", models.ErrPlayerNotFound, pid)
			}
			assignTeam(g, p, t.ID)
		}
	}
	return nil
}

// assignTeam moves p onto team, leaving the game unchanged if it is already there.
func assignTeam(g *models.Game, p *models.Player, team models.TeamID) {
	if old := g.Team(p.TeamID); old != nil && old.ID != team {
		old.RemoveMember(p.ID)
	}
	p.TeamID = team
	if t := g.Team(team); !t.HasMember(p.ID) {
		t.Members = append(t.Members, p.ID)
	}
}

// JoinTeam puts a player on a team. Repeating the same call changes nothing.
func (a *App) JoinTeam(ctx context.Context, code, playerID string, team models.TeamID) (*models.Game, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidTeam, team)
	}
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		p := g.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		assignTeam(g, p, team)
		return nil
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeTeamUpdated, events.TeamUpdatedPayload{PlayerID: playerID, TeamID: team, Game: g.Redacted()})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_code", code).Str("player_id", playerID).Str("team_id", string(team)).Msg("player joined team")
	return g, nil
}

// StartGame moves a waiting game to its first question. Host only.
func (a *App) StartGame(ctx context.Context, code, session string) (*models.Game, error) {
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		return engine.StartGame(g)
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeGameStarted, events.GameStartedPayload{
			Round:       g.CurrentRound,
			CurrentTurn: g.GameState.CurrentTurn,
			Game:        g.Redacted(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_code", code).Int("round", g.CurrentRound).Msg("game started")
	return g, nil
}

// SubmitAnswer judges one attempt and hands the committed verdict to the
// sequencer. Rejections leave the game untouched and are returned to the caller.
func (a *App) SubmitAnswer(ctx context.Context, code, playerID, text string) (judge.Verdict, error) {
	var v judge.Verdict
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		var err error
		v, err = judge.Judge(g, playerID, text, a.cfg.MatchPolicy, a.clock.Now())
		return err
	}, func(g *models.Game) {
		typ := events.TypeAnswerIncorrect
		if v.Correct {
			typ = events.TypeAnswerCorrect
		}
		a.emit(ctx, code, typ, events.AnswerPayload{Verdict: v, Game: g.Redacted()})
	})
	if err != nil {
		return judge.Verdict{}, err
	}

	log.Info().
		Str("game_code", code).
		Str("player_id", playerID).
		Str("team_id", string(v.TeamID)).
		Int("round", v.Round).
		Bool("correct", v.Correct).
		Int("points", v.Points).
		Msg("answer judged")

	a.seq.AnswerJudged(code, v, sequencer.CheckpointOf(g))
	return v, nil
}

// ContinueToNextRound leaves a round summary. Host only.
func (a *App) ContinueToNextRound(ctx context.Context, code, session string) (*models.Game, error) {
	var outcome engine.Outcome
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		o, err := engine.StartNewRound(g)
		outcome = o
		return err
	}, func(g *models.Game) {
		if typ, payload, ok := events.ForTransition(outcome, g); ok {
			a.emit(ctx, code, typ, payload)
		}
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_code", code).Str("outcome", outcome.String()).Int("round", g.CurrentRound).Msg("round continued")
	return g, nil
}

// ForceNextQuestion skips to the next question in bank order. Host only.
// Pending reveal and advance steps are cancelled.
func (a *App) ForceNextQuestion(ctx context.Context, code, session string) (*models.Game, error) {
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		return engine.ForceNextQuestion(g)
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeNextQuestion, events.TurnPayload{
			Round:         g.CurrentRound,
			QuestionIndex: g.CurrentQuestionIndex,
			CurrentTurn:   g.GameState.CurrentTurn,
			Game:          g.Redacted(),
		})
	})
	if err != nil {
		return nil, err
	}
	a.seq.Cancel(code)

	log.Info().Str("game_code", code).Int("question_index", g.CurrentQuestionIndex).Msg("host forced next question")
	return g, nil
}

// ForceRoundSummary ends the current round immediately. Host only.
func (a *App) ForceRoundSummary(ctx context.Context, code, session string) (*models.Game, error) {
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		return engine.ForceRoundSummary(g)
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeRoundComplete, events.RoundCompletePayload{
			Summary: engine.Summarize(g),
			Game:    g.Redacted(),
		})
	})
	if err != nil {
		return nil, err
	}
	a.seq.Cancel(code)

	log.Info().Str("game_code", code).Int("round", g.CurrentRound).Msg("host forced round summary")
	return g, nil
}

// ResetGame returns the game to waiting from any status. Host only.
func (a *App) ResetGame(ctx context.Context, code, session string) (*models.Game, error) {
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		engine.Reset(g)
		return nil
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeGameReset, events.GameResetPayload{Game: g.Redacted()})
	})
	if err != nil {
		return nil, err
	}
	a.seq.Cancel(code)

	log.Info().Str("game_code", code).Msg("host reset game")
	return g, nil
}

// RevealAllAnswers shows the whole current board. Host only.
func (a *App) RevealAllAnswers(ctx context.Context, code, session string) (*models.Game, error) {
	var revealed int
	g, err := a.store.UpdateAndAnnounce(ctx, code, func(g *models.Game) error {
		if err := authorize(g, session); err != nil {
			return err
		}
		n, err := engine.RevealAll(g)
		revealed = n
		return err
	}, func(g *models.Game) {
		a.emit(ctx, code, events.TypeAnswersRevealed, events.CardsRevealedPayload{
			QuestionIndex: g.CurrentQuestionIndex,
			Revealed:      revealed,
			Game:          g.Redacted(),
		})
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGames drops games and their pending continuations. It is the sweep
// callback, so games already removed from the store are skipped quietly.
func (a *App) DeleteGames(ctx context.Context, codes []string) {
	for _, code := range codes {
		a.seq.Cancel(code)
		if err := a.store.Delete(ctx, code); err != nil && !errors.Is(err, models.ErrGameNotFound) {
			log.Warn().Err(err).Str("game_code", code).Msg("failed to delete game")
		}
	}
}
