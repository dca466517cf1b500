package engine

import (
	"errors"
	"fmt"

	"github.com/mcdev12/feud/go/internal/models"
)

// CheckInvariants reports every structural rule the game currently breaks.
// The store refuses to commit a mutation that fails it.
func CheckInvariants(g *models.Game) error {
	var errs []error

	active := 0
	for i := range g.Teams {
		t := &g.Teams[i]
		if t.ID != models.TeamIDs[i] {
			errs = append(errs, fmt.Errorf("team %d has id %q", i, t.ID))
		}
		if t.Active {
			active++
		}
	}

	switch g.Status {
	case models.StatusActive:
		if active > 1 {
			errs = append(errs, fmt.Errorf("%d teams active", active))
		}
		if active == 1 && g.ActiveTeam().ID != g.GameState.CurrentTurn {
			errs = append(errs, fmt.Errorf("active team %s does not hold the turn %s",
				g.ActiveTeam().ID, g.GameState.CurrentTurn))
		}
		if g.CurrentQuestion() == nil {
			errs = append(errs, fmt.Errorf("question index %d out of range", g.CurrentQuestionIndex))
		}
	default:
		if active != 0 {
			errs = append(errs, fmt.Errorf("%d teams active while %s", active, g.Status))
		}
	}

	for _, id := range models.TeamIDs {
		if n := g.GameState.QuestionsAnswered[id]; n < 0 || n > models.QuestionsPerTurn {
			errs = append(errs, fmt.Errorf("questions answered for %s is %d", id, n))
		}
	}

	if g.CurrentRound < models.TossUpRound || g.CurrentRound > models.ScoredRounds {
		errs = append(errs, fmt.Errorf("round %d out of range", g.CurrentRound))
	}

	for i := range g.Players {
		p := &g.Players[i]
		if p.TeamID == "" {
			continue
		}
		t := g.Team(p.TeamID)
		if t == nil {
			errs = append(errs, fmt.Errorf("player %s on unknown team %q", p.ID, p.TeamID))
			continue
		}
		if !t.HasMember(p.ID) {
			errs = append(errs, fmt.Errorf("player %s missing from %s members", p.ID, p.TeamID))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrInvalidGameState, errors.Join(errs...))
}

// ValidateQuestions checks that a bank can carry a full game: every team has
// slots 1..3 in each scored round, at most one toss-up exists, and every board
// has at least one answer.
func ValidateQuestions(qs []models.Question) error {
	var errs []error
	seen := make(map[[3]int]bool)
	tossUps := 0

	for i := range qs {
		q := &qs[i]
		if len(q.Answers) == 0 {
			errs = append(errs, fmt.Errorf("question %q has no answers", q.ID))
		}
		if q.IsTossUp() {
			tossUps++
			continue
		}
		ti := q.TeamAssignment.Index()
		if ti < 0 {
			errs = append(errs, fmt.Errorf("question %q has team assignment %q", q.ID, q.TeamAssignment))
			continue
		}
		if q.Round < 1 || q.Round > models.ScoredRounds {
			errs = append(errs, fmt.Errorf("question %q has round %d", q.ID, q.Round))
			continue
		}
		if q.QuestionNumber < 1 || q.QuestionNumber > models.QuestionsPerTurn {
			errs = append(errs, fmt.Errorf("question %q has question number %d", q.ID, q.QuestionNumber))
			continue
		}
		key := [3]int{q.Round, ti, q.QuestionNumber}
		if seen[key] {
			errs = append(errs, fmt.Errorf("question %q duplicates round %d %s slot %d",
				q.ID, q.Round, q.TeamAssignment, q.QuestionNumber))
		}
		seen[key] = true
	}

	if tossUps > 1 {
		errs = append(errs, fmt.Errorf("%d toss-up questions", tossUps))
	}
	for r := 1; r <= models.ScoredRounds; r++ {
		for ti, id := range models.TeamIDs {
			for s := 1; s <= models.QuestionsPerTurn; s++ {
				if !seen[[3]int{r, ti, s}] {
					errs = append(errs, fmt.Errorf("missing round %d %s slot %d", r, id, s))
				}
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrInvalidQuestionBank, errors.Join(errs...))
}
