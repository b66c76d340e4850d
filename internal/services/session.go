package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

// SessionTTL is the sliding lifetime of a session key. Tokens are issued by
// the account service; this service only resolves them.
const SessionTTL = 30 * 24 * time.Hour

type SessionService struct {
	redis RedisClient
	users UserDirectory
	ttl   time.Duration
}

func NewSessionService(redis RedisClient, users UserDirectory) *SessionService {
	return &SessionService{redis: redis, users: users, ttl: SessionTTL}
}

func sessionKey(token string) string {
	return "session:" + token
}

// ValidateSession resolves token to its user and extends the session.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	raw, err := s.redis.Get(ctx, sessionKey(token))
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.redis.Del(ctx, sessionKey(token))
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	// Sliding expiry; a failed refresh does not invalidate the request.
	_ = s.redis.Expire(ctx, sessionKey(token), s.ttl)
	return user, nil
}

// CreateSession stores a session for userID. Used by tooling and tests that
// need a token without going through the account service.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString()
	if err := s.redis.Set(ctx, sessionKey(token), userID.String(), s.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}
