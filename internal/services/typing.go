package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

const DefaultTypingTTL = 5 * time.Second

// TypingService keeps per-conversation typing flags in redis. A flag lives for
// ttl unless refreshed, so a client that disappears mid-keystroke clears itself.
type TypingService struct {
	redis RedisClient
	ttl   time.Duration
}

func NewTypingService(redis RedisClient, ttl time.Duration) *TypingService {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingService{redis: redis, ttl: ttl}
}

func typingKey(conversationID string, userID uuid.UUID) string {
	return fmt.Sprintf("typing:%s:%s", conversationID, userID)
}

// Set records whether userID is typing to friendID.
func (s *TypingService) Set(ctx context.Context, userID, friendID uuid.UUID, isTyping bool) error {
	key := typingKey(models.ConversationID(userID, friendID), userID)
	if !isTyping {
		if err := s.redis.Del(ctx, key); err != nil {
			return fmt.Errorf("clearing typing state: %w", err)
		}
		return nil
	}
	if err := s.redis.Set(ctx, key, "1", s.ttl); err != nil {
		return fmt.Errorf("setting typing state: %w", err)
	}
	return nil
}

// IsTyping reports whether userID is currently typing to friendID.
func (s *TypingService) IsTyping(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	ok, err := s.redis.Exists(ctx, typingKey(models.ConversationID(userID, friendID), userID))
	if err != nil {
		return false, fmt.Errorf("reading typing state: %w", err)
	}
	return ok, nil
}
