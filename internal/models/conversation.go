package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationID is the canonical key for the 1:1 conversation between a and b.
// The two ids are sorted so the result does not depend on argument order.
func ConversationID(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + "_" + y
}

type ConversationSummary struct {
	ConversationID    string    `json:"conversation_id"`
	FriendID          uuid.UUID `json:"friend_id"`
	FriendDisplayName string    `json:"friend_display_name"`
	LastMessage       Message   `json:"last_message"`
	UnreadCount       int       `json:"unread_count"`
}

// PollResult is what one poll of a conversation returns.
type PollResult struct {
	Messages  []Message `json:"messages"`
	IsTyping  bool      `json:"is_typing"`
	Watermark time.Time `json:"watermark"`
}
