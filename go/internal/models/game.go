package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the lifecycle stage of a game.
type GameStatus string

const (
	StatusWaiting      GameStatus = "waiting"
	StatusActive       GameStatus = "active"
	StatusRoundSummary GameStatus = "round-summary"
	StatusFinished     GameStatus = "finished"
)

const (
	// ScoredRounds is the number of rounds after the toss-up
	ScoredRounds = 3
	// QuestionsPerTurn is the number of slots each team plays per round
	QuestionsPerTurn = 3
)

// SlotResult records how one question slot played out. FirstAttemptCorrect is
// written once; PointsEarned keeps the latest value.
type SlotResult struct {
	FirstAttemptCorrect *bool `json:"first_attempt_correct"`
	PointsEarned        int   `json:"points_earned"`
}

// Answered reports whether the slot has been judged at least once.
func (s SlotResult) Answered() bool {
	return s.FirstAttemptCorrect != nil
}

// RoundSlots holds per-round, per-slot results for one team.
type RoundSlots [ScoredRounds][QuestionsPerTurn]SlotResult

// TossUpSubmission is one team's single toss-up attempt.
type TossUpSubmission struct {
	TeamID      TeamID    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	Text        string    `json:"text"`
	AnswerIndex int       `json:"answer_index"` // -1 when nothing matched
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// GameState is the turn-tracking part of a game.
type GameState struct {
	CurrentTurn          TeamID                `json:"current_turn,omitempty"`
	RoundStarter         TeamID                `json:"round_starter,omitempty"`
	QuestionsAnswered    map[TeamID]int        `json:"questions_answered"`
	QuestionData         map[TeamID]RoundSlots `json:"question_data"`
	TossUpAnswers        []TossUpSubmission    `json:"toss_up_answers"`
	TossUpSubmittedTeams map[TeamID]bool       `json:"toss_up_submitted_teams"`
	TossUpWinner         TeamID                `json:"toss_up_winner,omitempty"`

	// AwaitingAdvance locks the current question between a judged attempt and
	// the delayed advance.
	AwaitingAdvance bool `json:"awaiting_advance"`
	// Epoch changes whenever pending continuations must be invalidated.
	Epoch uint64 `json:"epoch"`
}

// NewGameState returns the all-unanswered state for two teams.
func NewGameState() GameState {
	gs := GameState{
		QuestionsAnswered:    make(map[TeamID]int, len(TeamIDs)),
		QuestionData:         make(map[TeamID]RoundSlots, len(TeamIDs)),
		TossUpAnswers:        []TossUpSubmission{},
		TossUpSubmittedTeams: make(map[TeamID]bool, len(TeamIDs)),
	}
	for _, id := range TeamIDs {
		gs.QuestionsAnswered[id] = 0
		gs.QuestionData[id] = RoundSlots{}
	}
	return gs
}

// Game is the authoritative record of one match.
type Game struct {
	ID                   uuid.UUID  `json:"id"`
	Code                 string     `json:"code"`
	Status               GameStatus `json:"status"`
	CurrentRound         int        `json:"current_round"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	Questions            []Question `json:"questions"`
	Teams                [2]Team    `json:"teams"`
	Players              []Player   `json:"players"`
	GameState            GameState  `json:"game_state"`
	HostSession          string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewGame builds a waiting game around a private copy of questions.
func NewGame(id uuid.UUID, code string, questions []Question, now time.Time) *Game {
	g := &Game{
		ID:        id,
		Code:      code,
		Status:    StatusWaiting,
		Questions: CloneQuestions(questions),
		Players:   []Player{},
		GameState: NewGameState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, tid := range TeamIDs {
		g.Teams[i] = Team{ID: tid, Name: DefaultTeamName(tid), Members: []string{}}
	}
	return g
}

// DefaultTeamName is the display name before the host renames a team.
func DefaultTeamName(id TeamID) string {
	switch id {
	case TeamOne:
		return "Team 1"
	case TeamTwo:
		return "Team 2"
	default:
		return string(id)
	}
}

// Team returns the team with the given id or nil.
func (g *Game) Team(id TeamID) *Team {
	i := id.Index()
	if i < 0 {
		return nil
	}
	return &g.Teams[i]
}

// ActiveTeam returns the team whose turn it is, or nil.
func (g *Game) ActiveTeam() *Team {
	for i := range g.Teams {
		if g.Teams[i].Active {
			return &g.Teams[i]
		}
	}
	return nil
}

// SetTurn makes id the only active team. The empty id clears the turn.
func (g *Game) SetTurn(id TeamID) {
	g.GameState.CurrentTurn = id
	for i := range g.Teams {
		g.Teams[i].Active = g.Teams[i].ID == id && id != ""
	}
}

// CurrentQuestion returns the question under CurrentQuestionIndex or nil.
func (g *Game) CurrentQuestion() *Question {
	if g.CurrentQuestionIndex < 0 || g.CurrentQuestionIndex >= len(g.Questions) {
		return nil
	}
	return &g.Questions[g.CurrentQuestionIndex]
}

// TossUpIndex returns the index of the toss-up question, if the bank has one.
func (g *Game) TossUpIndex() (int, bool) {
	for i := range g.Questions {
		if g.Questions[i].IsTossUp() {
			return i, true
		}
	}
	return -1, false
}

// Player returns the player with the given id or nil.
func (g *Game) Player(id string) *Player {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy that can be handed out as a snapshot.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Questions = CloneQuestions(g.Questions)
	c.Players = slices.Clone(g.Players)
	for i := range g.Teams {
		c.Teams[i].Members = slices.Clone(g.Teams[i].Members)
	}
	c.GameState = g.GameState.clone()
	return &c
}

// Redacted returns a snapshot safe for players: hidden cards lose their text
// and score.
func (g *Game) Redacted() *Game {
	c := g.Clone()
	for qi := range c.Questions {
		for ai := range c.Questions[qi].Answers {
			a := &c.Questions[qi].Answers[ai]
			if !a.Revealed {
				a.Text = ""
				a.Score = 0
			}
		}
	}
	return c
}

func (gs GameState) clone() GameState {
	c := gs
	c.QuestionsAnswered = make(map[TeamID]int, len(gs.QuestionsAnswered))
	for k, v := range gs.QuestionsAnswered {
		c.QuestionsAnswered[k] = v
	}
	c.QuestionData = make(map[TeamID]RoundSlots, len(gs.QuestionData))
	for k, slots := range gs.QuestionData {
		for r := range slots {
			for s := range slots[r] {
				if p := slots[r][s].FirstAttemptCorrect; p != nil {
					v := *p
					slots[r][s].FirstAttemptCorrect = &v
				}
			}
		}
		c.QuestionData[k] = slots
	}
	c.TossUpAnswers = slices.Clone(gs.TossUpAnswers)
	c.TossUpSubmittedTeams = make(map[TeamID]bool, len(gs.TossUpSubmittedTeams))
	for k, v := range gs.TossUpSubmittedTeams {
		c.TossUpSubmittedTeams[k] = v
	}
	return c
}
