package models

import "time"

// TypingIndicator is an ephemeral "is typing" marker for one user in one chat.
type TypingIndicator struct {
	UserID     string     `json:"user_id"`
	ChatID     string     `json:"chat_id"`
	ChatType   TargetKind `json:"chat_type"`
	SenderName string     `json:"sender_name"`
	Timestamp  time.Time  `json:"timestamp"`
}
