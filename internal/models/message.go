package models

import (
	"time"

	"github.com/lib/pq"
)

// Message is a chat message addressed either to one recipient or to a group.
type Message struct {
	ID           string         `db:"id" json:"id"`
	TeamID       string         `db:"team_id" json:"team_id"`
	SenderID     string         `db:"sender_id" json:"sender_id"`
	SenderName   string         `db:"sender_name" json:"sender_name"`
	SenderAvatar string         `db:"sender_avatar" json:"sender_avatar,omitempty"`
	RecipientID  *string        `db:"recipient_id" json:"recipient_id,omitempty"`
	GroupID      *string        `db:"group_id" json:"group_id,omitempty"`
	Content      string         `db:"content" json:"content"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	EditedAt     *time.Time     `db:"edited_at" json:"edited_at,omitempty"`
	Deleted      bool           `db:"deleted" json:"deleted"`
	DeletedAt    *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	ReadBy       pq.StringArray `db:"read_by" json:"read_by"`
	Seq          int64          `db:"seq" json:"-"`
}

// Target returns the addressing of the message.
func (m Message) Target() Target {
	if m.GroupID != nil {
		return GroupTarget(*m.GroupID)
	}
	if m.RecipientID != nil {
		return DirectTarget(*m.RecipientID)
	}
	return Target{}
}

// Room returns the broadcast room the message belongs to.
func (m Message) Room() string {
	if m.GroupID != nil {
		return *m.GroupID
	}
	if m.RecipientID != nil {
		return DirectRoomID(m.SenderID, *m.RecipientID)
	}
	return ""
}

// ReadByUser reports whether userID acknowledged the message.
func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadCount is the number of unread messages in one chat for a user.
// ChatID is the other participant for direct chats and the group id for groups.
type UnreadCount struct {
	ChatID string     `db:"chat_id" json:"chat_id"`
	Kind   TargetKind `db:"kind" json:"kind"`
	Count  int        `db:"count" json:"count"`
}
