// Package gametest provides question banks and games for tests.
package gametest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/feud/go/internal/models"
)

// Epoch is the creation time of games built by NewGame.
var Epoch = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

// Answers is the board used for every fixture question, strongest card first.
func Answers() []models.Answer {
	return []models.Answer{
		{Text: "Agni", Score: 40},
		{Text: "Vayu", Score: 30},
		{Text: "Surya", Score: 20},
		{Text: "Soma", Score: 10},
	}
}

// Questions returns a complete bank: an optional toss-up followed by rounds
// 1..3, each with slots 1..3 for team1 then team2.
func Questions(tossUp bool) []models.Question {
	var qs []models.Question
	if tossUp {
		qs = append(qs, models.Question{
			ID:      "tossup",
			Text:    "Name a Vedic deity",
			Round:   models.TossUpRound,
			Answers: Answers(),
		})
	}
	for r := 1; r <= models.ScoredRounds; r++ {
		for _, team := range models.TeamIDs {
			for s := 1; s <= models.QuestionsPerTurn; s++ {
				qs = append(qs, models.Question{
					ID:             QuestionID(r, team, s),
					Text:           fmt.Sprintf("Round %d question %d for %s", r, s, team),
					Round:          r,
					TeamAssignment: team,
					QuestionNumber: s,
					Answers:        Answers(),
				})
			}
		}
	}
	return qs
}

// QuestionID names the fixture question for a round, team and slot.
func QuestionID(round int, team models.TeamID, slot int) string {
	return fmt.Sprintf("r%d-%s-q%d", round, team, slot)
}

// NewGame returns a waiting game over the fixture bank.
func NewGame(tossUp bool) *models.Game {
	return models.NewGame(uuid.New(), "ABC234", Questions(tossUp), Epoch)
}

// AddPlayer appends a connected player on team and returns its id.
func AddPlayer(g *models.Game, name string, team models.TeamID) string {
	id := uuid.NewString()
	g.Players = append(g.Players, models.Player{
		ID:        id,
		Name:      name,
		TeamID:    team,
		Connected: true,
		JoinedAt:  Epoch,
	})
	if t := g.Team(team); t != nil {
		t.Members = append(t.Members, id)
	}
	return id
}
