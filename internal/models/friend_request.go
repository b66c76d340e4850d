package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s FriendRequestStatus) IsTerminal() bool {
	return s == FriendRequestAccepted || s == FriendRequestRejected
}

type FriendRequest struct {
	ID          uuid.UUID           `json:"id"`
	SenderID    uuid.UUID           `json:"sender_id"`
	ReceiverID  uuid.UUID           `json:"receiver_id"`
	Message     string              `json:"message"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`

	Sender   *UserSearchResult `json:"sender,omitempty"`
	Receiver *UserSearchResult `json:"receiver,omitempty"`
}

type FriendRequestLists struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

type Friend struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Since       time.Time `json:"since"`
}

type FriendshipStatus string

const (
	FriendshipNone            FriendshipStatus = "none"
	FriendshipPendingOutgoing FriendshipStatus = "pending-outgoing"
	FriendshipPendingIncoming FriendshipStatus = "pending-incoming"
	FriendshipFriends         FriendshipStatus = "friends"
)
