package judge

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/feud/go/internal/models"
)

// Verdict is the result of one judged attempt.
type Verdict struct {
	TeamID        models.TeamID `json:"team_id"`
	PlayerID      string        `json:"player_id"`
	PlayerName    string        `json:"player_name"`
	Text          string        `json:"text"`
	Round         int           `json:"round"`
	QuestionIndex int           `json:"question_index"`
	Slot          int           `json:"slot"`
	Correct       bool          `json:"correct"`
	AnswerIndex   int           `json:"answer_index"`
	Answer        string        `json:"answer,omitempty"`
	Points        int           `json:"points"`

	TossUp         bool          `json:"toss_up"`
	TossUpComplete bool          `json:"toss_up_complete"`
	TossUpWinner   models.TeamID `json:"toss_up_winner,omitempty"`
}

// Judge admits and applies one answer attempt by playerID. It mutates g only
// when it returns a nil error, and is meant to run inside a store update.
func Judge(g *models.Game, playerID, text string, policy Policy, now time.Time) (Verdict, error) {
	if g.Status != models.StatusActive {
		return Verdict{}, fmt.Errorf("%w: answers are closed while %s", models.ErrInvalidGameState, g.Status)
	}
	p := g.Player(playerID)
	if p == nil {
		return Verdict{}, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
	}
	team := g.Team(p.TeamID)
	if team == nil {
		return Verdict{}, fmt.Errorf("%w: player %s has not joined a team", models.ErrInvalidTeam, playerID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Verdict{}, models.ErrEmptyAnswer
	}
	q := g.CurrentQuestion()
	if q == nil {
		return Verdict{}, fmt.Errorf("%w: no current question", models.ErrInvalidGameState)
	}

	v := Verdict{
		TeamID:        team.ID,
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		Text:          text,
		Round:         g.CurrentRound,
		QuestionIndex: g.CurrentQuestionIndex,
		Slot:          q.QuestionNumber,
		AnswerIndex:   -1,
	}

	if q.IsTossUp() {
		return judgeTossUp(g, q, team, v, policy, now)
	}
	return judgeScored(g, q, team, v, policy)
}

func judgeTossUp(g *models.Game, q *models.Question, team *models.Team, v Verdict, policy Policy, now time.Time) (Verdict, error) {
	gs := &g.GameState
	if gs.AwaitingAdvance || gs.TossUpSubmittedTeams[team.ID] {
		return Verdict{}, fmt.Errorf("%w: %s already answered the toss-up", models.ErrAlreadyAnswered, team.ID)
	}

	v.TossUp = true
	if idx, ok := policy.Match(v.Text, q.Answers); ok {
		a := &q.Answers[idx]
		a.Revealed = true
		v.Correct = true
		v.AnswerIndex = idx
		v.Answer = a.Text
		v.Points = a.Score
		team.Score += a.Score
		team.CurrentRoundScore += a.Score
	}

	gs.TossUpSubmittedTeams[team.ID] = true
	gs.TossUpAnswers = append(gs.TossUpAnswers, models.TossUpSubmission{
		TeamID:      team.ID,
		PlayerID:    v.PlayerID,
		Text:        v.Text,
		AnswerIndex: v.AnswerIndex,
		Points:      v.Points,
		SubmittedAt: now,
	})

	if len(gs.TossUpSubmittedTeams) >= len(models.TeamIDs) {
		gs.TossUpWinner = TossUpWinner(gs.TossUpAnswers)
		gs.AwaitingAdvance = true
		v.TossUpComplete = true
		v.TossUpWinner = gs.TossUpWinner
	}
	return v, nil
}

// TossUpWinner picks the team with the most toss-up points. Equal non-zero
// scores go to the earlier submission; when nobody scored there is no winner.
func TossUpWinner(subs []models.TossUpSubmission) models.TeamID {
	var best *models.TossUpSubmission
	for i := range subs {
		s := &subs[i]
		if s.Points <= 0 {
			continue
		}
		if best == nil || s.Points > best.Points ||
			(s.Points == best.Points && s.SubmittedAt.Before(best.SubmittedAt)) {
			best = s
		}
	}
	if best == nil {
		return ""
	}
	return best.TeamID
}

func judgeScored(g *models.Game, q *models.Question, team *models.Team, v Verdict, policy Policy) (Verdict, error) {
	gs := &g.GameState
	if !team.Active || gs.CurrentTurn != team.ID {
		return Verdict{}, fmt.Errorf("%w: %s is not on turn", models.ErrNotYourTurn, team.ID)
	}
	if gs.AwaitingAdvance {
		return Verdict{}, fmt.Errorf("%w: question %d is locked", models.ErrAlreadyAnswered, g.CurrentQuestionIndex)
	}

	if idx, ok := policy.Match(v.Text, q.Answers); ok {
		a := &q.Answers[idx]
		a.Revealed = true
		v.Correct = true
		v.AnswerIndex = idx
		v.Answer = a.Text
		v.Points = a.Score * g.CurrentRound
		team.Score += v.Points
		team.CurrentRoundScore += v.Points
	} else {
		q.RevealAll()
	}

	recordSlot(g, team.ID, v)
	gs.AwaitingAdvance = true
	return v, nil
}

func recordSlot(g *models.Game, team models.TeamID, v Verdict) {
	r, s := v.Round-1, v.Slot-1
	if r < 0 || r >= models.ScoredRounds || s < 0 || s >= models.QuestionsPerTurn {
		return
	}
	slots := g.GameState.QuestionData[team]
	res := &slots[r][s]
	if res.FirstAttemptCorrect == nil {
		correct := v.Correct
		res.FirstAttemptCorrect = &correct
	}
	res.PointsEarned = v.Points
	g.GameState.QuestionData[team] = slots
}
