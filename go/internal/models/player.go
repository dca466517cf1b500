package models

import "time"

// Player represents someone who joined a game with a code. Players are never
// removed; a dropped connection only clears Connected.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeamID    TeamID    `json:"team_id,omitempty"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joined_at"`
}
