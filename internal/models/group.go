package models

import (
	"time"

	"github.com/lib/pq"
)

// TeamChatName is the name of the canonical per-team group.
const TeamChatName = "Team Chat"

// ChatGroup is a named group chat inside a team.
type ChatGroup struct {
	ID        string         `db:"id" json:"id"`
	TeamID    string         `db:"team_id" json:"team_id"`
	Name      string         `db:"name" json:"name"`
	Members   pq.StringArray `db:"members" json:"members"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// HasMember reports whether userID belongs to the group.
func (g ChatGroup) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}
