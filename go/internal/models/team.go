package models

// TeamID identifies one of the two teams of a game. It is assigned once when the
// game is created and never derived from names.
type TeamID string

const (
	TeamOne TeamID = "team1"
	TeamTwo TeamID = "team2"
)

// TeamIDs lists both teams in iteration order.
var TeamIDs = [2]TeamID{TeamOne, TeamTwo}

// Valid reports whether id names one of the two teams.
func (id TeamID) Valid() bool {
	return id == TeamOne || id == TeamTwo
}

// Other returns the opposing team. The empty id maps to itself.
func (id TeamID) Other() TeamID {
	switch id {
	case TeamOne:
		return TeamTwo
	case TeamTwo:
		return TeamOne
	default:
		return id
	}
}

// Index returns the slot of the team inside Game.Teams, or -1.
func (id TeamID) Index() int {
	switch id {
	case TeamOne:
		return 0
	case TeamTwo:
		return 1
	default:
		return -1
	}
}

// Team represents one side of a match
type Team struct {
	ID                TeamID            `json:"id"`
	Name              string            `json:"name"`
	Score             int               `json:"score"`
	CurrentRoundScore int               `json:"current_round_score"`
	RoundScores       [ScoredRounds]int `json:"round_scores"`
	Active            bool              `json:"active"`
	Members           []string          `json:"members"`
}

// HasMember reports whether playerID is on the team
func (t *Team) HasMember(playerID string) bool {
	for _, m := range t.Members {
		if m == playerID {
			return true
		}
	}
	return false
}

// RemoveMember drops playerID from the member list if present.
func (t *Team) RemoveMember(playerID string) {
	dst := t.Members[:0]
	for _, m := range t.Members {
		if m != playerID {
			dst = append(dst, m)
		}
	}
	t.Members = dst
}

// ResetScores zeroes every score field
func (t *Team) ResetScores() {
	t.Score = 0
	t.CurrentRoundScore = 0
	t.RoundScores = [ScoredRounds]int{}
}
