// Package engine holds the turn and round rules of a game. Every function works
// on a *models.Game in place and never blocks; callers run them inside the
// store's per-game critical section.
package engine

import (
	"fmt"

	"github.com/mcdev12/feud/go/internal/models"
)

// Outcome describes what a single advance did to the game.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeNextQuestion
	OutcomeTurnChanged
	OutcomeRoundComplete
	OutcomeRoundStarted
	OutcomeGameOver
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNextQuestion:
		return "next-question"
	case OutcomeTurnChanged:
		return "turn-changed"
	case OutcomeRoundComplete:
		return "round-complete"
	case OutcomeRoundStarted:
		return "round-started"
	case OutcomeGameOver:
		return "game-over"
	default:
		return "none"
	}
}

// SlotIndex returns the index of the question a team plays in the given round
// and 1-based slot.
func SlotIndex(g *models.Game, team models.TeamID, round, slot int) (int, bool) {
	for i := range g.Questions {
		q := &g.Questions[i]
		if q.Round == round && q.TeamAssignment == team && q.QuestionNumber == slot {
			return i, true
		}
	}
	return -1, false
}

// StartGame moves a waiting game to active. With a toss-up question in the bank
// the game opens on it (round 0), otherwise on team1's first question of round 1.
func StartGame(g *models.Game) error {
	if g.Status != models.StatusWaiting {
		return fmt.Errorf("%w: cannot start a game that is %s", models.ErrInvalidGameState, g.Status)
	}

	if idx, ok := g.TossUpIndex(); ok {
		g.Status = models.StatusActive
		g.CurrentRound = models.TossUpRound
		g.CurrentQuestionIndex = idx
		g.GameState.RoundStarter = models.TeamOne
		g.GameState.AwaitingAdvance = false
		g.SetTurn(models.TeamOne)
		return nil
	}
	return beginRound(g, 1, models.TeamOne)
}

// beginRound puts the game on the starter's first question of round.
func beginRound(g *models.Game, round int, starter models.TeamID) error {
	idx, ok := SlotIndex(g, starter, round, 1)
	if !ok {
		return fmt.Errorf("%w: no slot 1 for %s in round %d", models.ErrInvalidQuestionBank, starter, round)
	}

	g.Status = models.StatusActive
	g.CurrentRound = round
	g.CurrentQuestionIndex = idx
	for _, id := range models.TeamIDs {
		g.GameState.QuestionsAnswered[id] = 0
		g.Team(id).CurrentRoundScore = 0
	}
	g.GameState.RoundStarter = starter
	g.GameState.AwaitingAdvance = false
	g.SetTurn(starter)
	return nil
}

// NextQuestionIndex returns the index of the next unanswered question in the
// current round: the live team's next slot, or the other team's once the live
// team has played all of its slots. ok is false when the round is complete.
func NextQuestionIndex(g *models.Game) (int, bool) {
	turn := g.GameState.CurrentTurn
	if !turn.Valid() || g.CurrentRound == models.TossUpRound {
		return len(g.Questions), false
	}

	if g.GameState.QuestionsAnswered[turn] < models.QuestionsPerTurn {
		return NextQuestionIndexFor(g, turn)
	}
	return NextQuestionIndexFor(g, turn.Other())
}

// Advance moves past the question that was just judged. It is the only place
// where questionsAnswered grows, and reaching QuestionsPerTurn always results in
// a turn or round transition within the same call.
func Advance(g *models.Game) (Outcome, error) {
	if g.Status != models.StatusActive {
		return OutcomeNone, fmt.Errorf("%w: cannot advance a game that is %s", models.ErrInvalidGameState, g.Status)
	}

	g.GameState.AwaitingAdvance = false
	g.GameState.Epoch++

	if g.CurrentRound == models.TossUpRound {
		return finishRound(g), nil
	}

	turn := g.GameState.CurrentTurn
	if !turn.Valid() {
		return OutcomeNone, fmt.Errorf("%w: no team holds the turn", models.ErrInvalidGameState)
	}

	g.GameState.QuestionsAnswered[turn]++
	answered := g.GameState.QuestionsAnswered[turn]
	other := turn.Other()

	// the second team finishing its slots always closes the round
	if answered >= models.QuestionsPerTurn && turn != g.GameState.RoundStarter {
		return finishRound(g), nil
	}

	idx, ok := NextQuestionIndex(g)
	if !ok {
		if answered < models.QuestionsPerTurn || g.GameState.QuestionsAnswered[other] < models.QuestionsPerTurn {
			return OutcomeNone, fmt.Errorf("%w: no question left in round %d",
				models.ErrInvalidQuestionBank, g.CurrentRound)
		}
		return finishRound(g), nil
	}

	g.CurrentQuestionIndex = idx
	if answered < models.QuestionsPerTurn {
		return OutcomeNextQuestion, nil
	}
	g.SetTurn(other)
	return OutcomeTurnChanged, nil
}

// NextQuestionIndexFor returns team's next unplayed slot in the current round.
func NextQuestionIndexFor(g *models.Game, team models.TeamID) (int, bool) {
	n := g.GameState.QuestionsAnswered[team]
	if n >= models.QuestionsPerTurn {
		return len(g.Questions), false
	}
	return SlotIndex(g, team, g.CurrentRound, n+1)
}

func finishRound(g *models.Game) Outcome {
	snapshotRoundScores(g)
	g.SetTurn("")
	g.GameState.AwaitingAdvance = false

	if g.CurrentRound < models.ScoredRounds {
		g.Status = models.StatusRoundSummary
		return OutcomeRoundComplete
	}
	g.Status = models.StatusFinished
	return OutcomeGameOver
}

func snapshotRoundScores(g *models.Game) {
	if g.CurrentRound < 1 || g.CurrentRound > models.ScoredRounds {
		return
	}
	for i := range g.Teams {
		g.Teams[i].RoundScores[g.CurrentRound-1] = g.Teams[i].CurrentRoundScore
	}
}

// StartNewRound is the host's "continue" from a round summary. The toss-up
// winner opens every round; without one team1 does. Continuing past the last
// round finishes the game.
func StartNewRound(g *models.Game) (Outcome, error) {
	if g.Status != models.StatusRoundSummary {
		return OutcomeNone, fmt.Errorf("%w: no round summary to continue from (status %s)",
			models.ErrInvalidGameState, g.Status)
	}

	g.GameState.Epoch++

	next := g.CurrentRound + 1
	if next > models.ScoredRounds {
		g.Status = models.StatusFinished
		g.SetTurn("")
		return OutcomeGameOver, nil
	}

	if err := beginRound(g, next, StartingTeam(g)); err != nil {
		return OutcomeNone, err
	}
	return OutcomeRoundStarted, nil
}

// StartingTeam returns the team that opens scored rounds.
func StartingTeam(g *models.Game) models.TeamID {
	if w := g.GameState.TossUpWinner; w.Valid() {
		return w
	}
	return models.TeamOne
}

// ForceNextQuestion moves to the next question in bank order regardless of
// turn bookkeeping. The landed question decides the live team, and the team's
// answered count is realigned with the landed slot.
func ForceNextQuestion(g *models.Game) error {
	if g.Status != models.StatusActive {
		return fmt.Errorf("%w: cannot force a question while %s", models.ErrInvalidGameState, g.Status)
	}
	next := g.CurrentQuestionIndex + 1
	if next >= len(g.Questions) {
		return fmt.Errorf("%w: no question after index %d", models.ErrInvalidGameState, g.CurrentQuestionIndex)
	}

	q := &g.Questions[next]
	g.CurrentQuestionIndex = next
	g.GameState.AwaitingAdvance = false
	g.GameState.Epoch++

	if q.IsTossUp() {
		g.CurrentRound = models.TossUpRound
		g.GameState.RoundStarter = models.TeamOne
		g.SetTurn(models.TeamOne)
		return nil
	}

	team := q.TeamAssignment
	if q.Round != g.CurrentRound {
		snapshotRoundScores(g)
		g.CurrentRound = q.Round
		for _, id := range models.TeamIDs {
			g.GameState.QuestionsAnswered[id] = 0
			g.Team(id).CurrentRoundScore = 0
		}
		g.GameState.RoundStarter = team
	}
	if slot := q.QuestionNumber - 1; slot >= 0 && slot <= models.QuestionsPerTurn {
		g.GameState.QuestionsAnswered[team] = slot
	}
	if team != g.GameState.RoundStarter {
		g.GameState.QuestionsAnswered[g.GameState.RoundStarter] = models.QuestionsPerTurn
	}
	g.SetTurn(team)
	return nil
}

// ForceRoundSummary ends the current round immediately.
func ForceRoundSummary(g *models.Game) error {
	if g.Status != models.StatusActive {
		return fmt.Errorf("%w: cannot summarize a round while %s", models.ErrInvalidGameState, g.Status)
	}
	snapshotRoundScores(g)
	g.Status = models.StatusRoundSummary
	g.SetTurn("")
	g.GameState.AwaitingAdvance = false
	g.GameState.Epoch++
	return nil
}

// Reset returns a game of any status to waiting. Players and their team
// membership survive; scores, reveals and turn bookkeeping do not.
func Reset(g *models.Game) {
	epoch := g.GameState.Epoch
	g.Status = models.StatusWaiting
	g.CurrentRound = models.TossUpRound
	g.CurrentQuestionIndex = 0
	for i := range g.Teams {
		g.Teams[i].ResetScores()
		g.Teams[i].Active = false
	}
	for i := range g.Questions {
		g.Questions[i].HideAll()
	}
	g.GameState = models.NewGameState()
	g.GameState.Epoch = epoch + 1
}

// RevealAll shows every card of the current question without touching turns.
func RevealAll(g *models.Game) (int, error) {
	if g.Status != models.StatusActive {
		return 0, fmt.Errorf("%w: cannot reveal answers while %s", models.ErrInvalidGameState, g.Status)
	}
	q := g.CurrentQuestion()
	if q == nil {
		return 0, fmt.Errorf("%w: no current question", models.ErrInvalidGameState)
	}
	return q.RevealAll(), nil
}

// Classify names the transition between two snapshots taken around an
// advance. It matches what Advance and StartNewRound return.
func Classify(before, after *models.Game) Outcome {
	switch {
	case after.Status == models.StatusFinished && before.Status != models.StatusFinished:
		return OutcomeGameOver
	case after.Status == models.StatusRoundSummary && before.Status != models.StatusRoundSummary:
		return OutcomeRoundComplete
	case after.Status == models.StatusActive && before.Status != models.StatusActive:
		return OutcomeRoundStarted
	case after.Status == models.StatusActive && after.CurrentRound != before.CurrentRound:
		return OutcomeRoundStarted
	case after.GameState.CurrentTurn != before.GameState.CurrentTurn:
		return OutcomeTurnChanged
	case after.CurrentQuestionIndex != before.CurrentQuestionIndex:
		return OutcomeNextQuestion
	default:
		return OutcomeNone
	}
}
