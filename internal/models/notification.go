package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeFriendRequestReceived NotificationType = "friend_request_received"
	NotificationTypeFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationTypeMessageReceived       NotificationType = "message_received"
)

type Notification struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Type             NotificationType `json:"type"`
	ActorUserID      *uuid.UUID       `json:"actor_user_id,omitempty"`
	ActorDisplayName *string          `json:"actor_display_name,omitempty"`
	FriendRequestID  *uuid.UUID       `json:"friend_request_id,omitempty"`
	MessageID        *uuid.UUID       `json:"message_id,omitempty"`
	EmailSentAt      *time.Time       `json:"email_sent_at,omitempty"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RelayEvent is the wake-up hint published to a user's live channel. Clients
// treat it as a signal to poll and never as message content.
type RelayEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	FromUserID     uuid.UUID `json:"from_user_id"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	Count          int       `json:"count,omitempty"`
	At             time.Time `json:"at"`
}

const (
	RelayEventNewMessage  = "new_message"
	RelayEventReadReceipt = "read_receipt"
)
