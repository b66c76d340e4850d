package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

const (
	DefaultPollInterval = 3 * time.Second

	// seenRetention keeps ids long enough to drop the server's overlap
	// re-reads without growing forever.
	seenRetention = 30 * time.Second
)

type Poller interface {
	Poll(ctx context.Context, friendID uuid.UUID, since time.Time) (*models.PollResult, error)
}

// Handler receives each batch of new messages and every change of the
// friend's typing flag. Returning an error leaves the
// watermark where it was so the same messages are offered again.
type Handler func(ctx context.Context, messages []models.Message, isTyping bool) error

// Syncer polls the open conversation while the view is visible. Each Syncer
// keeps its own watermark, so two tabs never steal each other's messages.
type Syncer struct {
	api      Poller
	handler  Handler
	interval time.Duration

	mu         sync.Mutex
	visible    bool
	friendID   uuid.UUID
	generation uint64
	watermark  time.Time
	seen       map[uuid.UUID]time.Time
	typing     bool

	pollMu sync.Mutex
	wake   chan struct{}
}

func NewSyncer(api Poller, handler Handler) *Syncer {
	return &Syncer{
		api:      api,
		handler:  handler,
		interval: DefaultPollInterval,
		visible:  true,
		seen:     map[uuid.UUID]time.Time{},
		wake:     make(chan struct{}, 1),
	}
}

func (s *Syncer) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Open switches to the conversation with friendID and starts it from
// scratch.
func (s *Syncer) Open(friendID uuid.UUID) {
	s.mu.Lock()
	s.friendID = friendID
	s.generation++
	s.watermark = time.Time{}
	s.seen = map[uuid.UUID]time.Time{}
	s.typing = false
	s.mu.Unlock()
	s.Wake()
}

// CloseConversation stops polling until another conversation is opened.
func (s *Syncer) CloseConversation() {
	s.mu.Lock()
	s.friendID = uuid.Nil
	s.generation++
	s.mu.Unlock()
}

// SetVisible suspends polling while hidden. Becoming visible triggers an
// immediate catch-up poll.
func (s *Syncer) SetVisible(visible bool) {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	s.mu.Unlock()
	if visible && !was {
		s.Wake()
	}
}

// Wake asks for an out-of-cycle poll, typically after a push hint. The hint
// itself is never trusted as data.
func (s *Syncer) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Syncer) Watermark() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Run polls on every tick and wake-up until ctx is done. Poll errors are
// dropped; the next tick retries.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}
		_, _ = s.PollOnce(ctx)
	}
}

// PollOnce runs a single poll if a conversation is open and visible. It
// reports whether a poll was made.
func (s *Syncer) PollOnce(ctx context.Context) (bool, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	s.mu.Lock()
	if !s.visible || s.friendID == uuid.Nil {
		s.mu.Unlock()
		return false, nil
	}
	friendID, generation, since := s.friendID, s.generation, s.watermark
	s.mu.Unlock()

	result, err := s.api.Poll(ctx, friendID, since)
	if err != nil {
		return true, err
	}

	s.mu.Lock()
	if generation != s.generation {
		// Conversation changed mid-flight; this batch belongs to the old one.
		s.mu.Unlock()
		return true, nil
	}
	fresh := make([]models.Message, 0, len(result.Messages))
	for _, m := range result.Messages {
		if _, ok := s.seen[m.ID]; !ok {
			fresh = append(fresh, m)
		}
	}
	typingChanged := result.IsTyping != s.typing
	s.mu.Unlock()

	if len(fresh) > 0 || typingChanged {
		if err := s.handler(ctx, fresh, result.IsTyping); err != nil {
			return true, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return true, nil
	}
	s.typing = result.IsTyping
	for _, m := range fresh {
		s.seen[m.ID] = m.CreatedAt
	}
	if result.Watermark.After(s.watermark) {
		s.watermark = result.Watermark
	}
	cutoff := s.watermark.Add(-seenRetention)
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return true, nil
}
