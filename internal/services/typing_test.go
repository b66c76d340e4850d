package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

func TestTypingService_SetAndExpire(t *testing.T) {
	rdb := newFakeRedis()
	svc := NewTypingService(rdb, 0)
	alice, bob := uuid.New(), uuid.New()
	ctx := context.Background()

	if err := svc.Set(ctx, alice, bob, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := typingKey(models.ConversationID(alice, bob), alice)
	if rdb.expires[key] != DefaultTypingTTL {
		t.Fatalf("expected %v ttl, got %v", DefaultTypingTTL, rdb.expires[key])
	}

	typing, err := svc.IsTyping(ctx, alice, bob)
	if err != nil || !typing {
		t.Fatalf("expected alice typing, got %v (%v)", typing, err)
	}
	if typing, _ := svc.IsTyping(ctx, bob, alice); typing {
		t.Fatal("expected bob not typing")
	}

	rdb.expire(key)
	if typing, _ := svc.IsTyping(ctx, alice, bob); typing {
		t.Fatal("expected typing flag to lapse with its ttl")
	}
}

func TestTypingService_ClearDeletesKey(t *testing.T) {
	rdb := newFakeRedis()
	svc := NewTypingService(rdb, 3*time.Second)
	alice, bob := uuid.New(), uuid.New()
	ctx := context.Background()

	_ = svc.Set(ctx, alice, bob, true)
	if err := svc.Set(ctx, alice, bob, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rdb.values) != 0 {
		t.Fatalf("expected key removed, got %v", rdb.values)
	}
}

func TestTypingService_RedisError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	svc := NewTypingService(rdb, time.Second)

	if err := svc.Set(context.Background(), uuid.New(), uuid.New(), true); err == nil {
		t.Fatal("expected error")
	}
	if _, err := svc.IsTyping(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}
