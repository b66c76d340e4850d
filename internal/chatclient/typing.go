package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTypingIdle = 2 * time.Second

	// DefaultTypingRefresh re-sends "typing" during a long burst. It is half
	// the server's 5s typing TTL so the flag never lapses mid-burst.
	DefaultTypingRefresh = 2500 * time.Millisecond
)

type TypingSender interface {
	SetTyping(ctx context.Context, friendID uuid.UUID, isTyping bool) error
}

type stopper interface {
	Stop() bool
}

// TypingIndicator turns keystrokes into one "typing" call per burst, repeated
// every refresh period while the burst lasts, and one "stopped" call at the
// end.
type TypingIndicator struct {
	ctx      context.Context
	sender   TypingSender
	friendID uuid.UUID
	idle     time.Duration
	refresh  time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper

	mu       sync.Mutex
	typing   bool
	lastSent time.Time
	timer    stopper
	burst    uint64
}

func NewTypingIndicator(ctx context.Context, sender TypingSender, friendID uuid.UUID) *TypingIndicator {
	return &TypingIndicator{
		ctx:      ctx,
		sender:   sender,
		friendID: friendID,
		idle:     DefaultTypingIdle,
		refresh:  DefaultTypingRefresh,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Keystroke reports typing on the first key of a burst and again once the
// last report is a refresh period old. Every key re-arms the idle timer.
func (t *TypingIndicator) Keystroke() {
	t.mu.Lock()
	now := t.now()
	send := !t.typing || now.Sub(t.lastSent) >= t.refresh
	if send {
		t.lastSent = now
	}
	t.typing = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.burst++
	burst := t.burst
	t.timer = t.afterFunc(t.idle, func() { t.expire(burst) })
	t.mu.Unlock()

	if send {
		_ = t.sender.SetTyping(t.ctx, t.friendID, true)
	}
}

// Sent clears the indicator immediately after a message goes out.
func (t *TypingIndicator) Sent() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.burst++
	was := t.typing
	t.typing = false
	t.mu.Unlock()

	if was {
		_ = t.sender.SetTyping(t.ctx, t.friendID, false)
	}
}

func (t *TypingIndicator) expire(burst uint64) {
	t.mu.Lock()
	if burst != t.burst || !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.timer = nil
	t.mu.Unlock()

	_ = t.sender.SetTyping(t.ctx, t.friendID, false)
}
