package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeImage   MessageType = "image"
	MessageTypeWorkout MessageType = "workout"
	MessageTypeSystem  MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeWorkout, MessageTypeSystem:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusPending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward step.
// Skipping steps is allowed; staying put or going back is not.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return s.rank() >= 0 && next.rank() > s.rank()
}

type Message struct {
	ID                  uuid.UUID     `json:"id"`
	ConversationID      string        `json:"conversation_id"`
	SenderID            uuid.UUID     `json:"sender_id"`
	ReceiverID          uuid.UUID     `json:"receiver_id"`
	Content             string        `json:"content"`
	MessageType         MessageType   `json:"message_type"`
	Status              MessageStatus `json:"status"`
	ClientMessageID     *string       `json:"client_message_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	DeliveredAt         *time.Time    `json:"delivered_at,omitempty"`
	ReadAt              *time.Time    `json:"read_at,omitempty"`
	SenderDisplayName   string        `json:"sender_display_name,omitempty"`
	ReceiverDisplayName string        `json:"receiver_display_name,omitempty"`
}
