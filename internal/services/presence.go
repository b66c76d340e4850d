package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
)

const (
	// PollOverlap re-reads a short window before the caller's watermark so a
	// message committed slightly out of timestamp order is not skipped.
	// Clients drop the duplicates by message id.
	PollOverlap    = 2 * time.Second
	PollBatchLimit = 200
)

type PresenceService struct {
	db      DB
	friends FriendChecker
	typing  *TypingService
}

func NewPresenceService(db DB, friends FriendChecker, typing *TypingService) *PresenceService {
	return &PresenceService{db: db, friends: friends, typing: typing}
}

// CheckForNewMessages returns the conversation's messages created after
// since (less the overlap), oldest first, together with the friend's typing
// flag. A zero since is a fresh open and gets the newest PollBatchLimit
// messages instead of the start of the history. Messages sent to the caller
// that were not yet delivered become "delivered", which is the only write a
// poll performs.
func (s *PresenceService) CheckForNewMessages(ctx context.Context, userID, friendID uuid.UUID, since time.Time) (*models.PollResult, error) {
	messages, err := s.pollMessages(ctx, models.ConversationID(userID, friendID), since)
	if err != nil {
		return nil, err
	}

	result := &models.PollResult{Messages: messages, Watermark: since}
	if n := len(messages); n > 0 {
		result.Watermark = messages[n-1].CreatedAt
	}

	if err := s.markDelivered(ctx, userID, result); err != nil {
		logging.Warn("Failed to mark messages delivered", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
	}

	if s.typing != nil {
		typing, err := s.typing.IsTyping(ctx, friendID, userID)
		if err != nil {
			logging.Warn("Failed to read typing state", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID.String(),
			})
		}
		result.IsTyping = typing
	}

	return result, nil
}

func (s *PresenceService) pollMessages(ctx context.Context, conversationID string, since time.Time) ([]models.Message, error) {
	var (
		rows Rows
		err  error
	)
	if since.IsZero() {
		rows, err = s.db.Query(ctx,
			messageSelect+`
			 WHERE m.conversation_id = $1
			 ORDER BY m.created_at DESC, m.id DESC
			 LIMIT $2`,
			conversationID, PollBatchLimit,
		)
	} else {
		rows, err = s.db.Query(ctx,
			messageSelect+`
			 WHERE m.conversation_id = $1 AND m.created_at > $2
			 ORDER BY m.created_at ASC, m.id ASC
			 LIMIT $3`,
			conversationID, since.Add(-PollOverlap), PollBatchLimit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("polling messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		slices.Reverse(messages)
	}
	return messages, nil
}

func (s *PresenceService) markDelivered(ctx context.Context, userID uuid.UUID, result *models.PollResult) error {
	pending := false
	for _, m := range result.Messages {
		if m.ReceiverID == userID && m.Status.CanAdvanceTo(models.MessageStatusDelivered) {
			pending = true
			break
		}
	}
	if !pending {
		return nil
	}

	_, err := s.db.Exec(ctx,
		`UPDATE messages SET status = 'delivered', delivered_at = COALESCE(delivered_at, NOW())
		 WHERE conversation_id = $1 AND receiver_id = $2 AND status IN ('pending', 'sent') AND created_at <= $3`,
		result.Messages[0].ConversationID, userID, result.Watermark,
	)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range result.Messages {
		m := &result.Messages[i]
		if m.ReceiverID == userID && m.Status.CanAdvanceTo(models.MessageStatusDelivered) {
			m.Status = models.MessageStatusDelivered
			if m.DeliveredAt == nil {
				m.DeliveredAt = &now
			}
		}
	}
	return nil
}

// SetTyping records the caller's typing state for a friend.
func (s *PresenceService) SetTyping(ctx context.Context, userID, friendID uuid.UUID, isTyping bool) error {
	ok, err := s.friends.IsFriend(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFriends
	}
	return s.typing.Set(ctx, userID, friendID, isTyping)
}

// IsTyping reports whether friendID is typing to userID.
func (s *PresenceService) IsTyping(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	return s.typing.IsTyping(ctx, friendID, userID)
}
