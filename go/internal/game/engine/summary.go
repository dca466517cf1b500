package engine

import "github.com/mcdev12/feud/go/internal/models"

// TeamSummary is one team's line in a round summary.
type TeamSummary struct {
	TeamID      models.TeamID                              `json:"team_id"`
	Name        string                                     `json:"name"`
	RoundScore  int                                        `json:"round_score"`
	TotalScore  int                                        `json:"total_score"`
	RoundScores [models.ScoredRounds]int                   `json:"round_scores"`
	Slots       [models.QuestionsPerTurn]models.SlotResult `json:"slots"`
}

// RoundSummary describes the round that just ended.
type RoundSummary struct {
	Round        int            `json:"round"`
	Teams        [2]TeamSummary `json:"teams"`
	TossUpWinner models.TeamID  `json:"toss_up_winner,omitempty"`
	Leader       models.TeamID  `json:"leader,omitempty"`
}

// Summarize builds the summary of the current round. For the toss-up round the
// slot results are empty and RoundScore holds the toss-up points.
func Summarize(g *models.Game) RoundSummary {
	s := RoundSummary{
		Round:        g.CurrentRound,
		TossUpWinner: g.GameState.TossUpWinner,
	}
	for i := range g.Teams {
		t := &g.Teams[i]
		ts := TeamSummary{
			TeamID:      t.ID,
			Name:        t.Name,
			RoundScore:  t.CurrentRoundScore,
			TotalScore:  t.Score,
			RoundScores: t.RoundScores,
		}
		if r := g.CurrentRound; r >= 1 && r <= models.ScoredRounds {
			ts.Slots = g.GameState.QuestionData[t.ID][r-1]
		}
		s.Teams[i] = ts
	}
	if w, ok := Winner(g); ok {
		s.Leader = w
	}
	return s
}

// Winner returns the team with the higher total score. A tie has no winner.
func Winner(g *models.Game) (models.TeamID, bool) {
	a, b := &g.Teams[0], &g.Teams[1]
	switch {
	case a.Score > b.Score:
		return a.ID, true
	case b.Score > a.Score:
		return b.ID, true
	default:
		return "", false
	}
}
