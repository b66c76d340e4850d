package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypePushNewMessage = "push:new_message"

	PushTaskTimeout  = 10 * time.Second
	PushTaskMaxRetry = 3
)

// PushPayload is the body of a push:new_message task. It carries no message
// content beyond a preview; the client polls for the real data.
type PushPayload struct {
	UserID    uuid.UUID         `json:"user_id"`
	MessageID uuid.UUID         `json:"message_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

func NewPushTask(p PushPayload) (Task, EnqueueOption, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return Task{}, EnqueueOption{}, fmt.Errorf("marshal push payload: %w", err)
	}
	opt := EnqueueOption{
		Queue:    QueuePush,
		MaxRetry: PushTaskMaxRetry,
		Timeout:  PushTaskTimeout,
	}
	return Task{Type: TypePushNewMessage, Payload: payload}, opt, nil
}

func ParsePushPayload(t Task) (PushPayload, error) {
	var p PushPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return PushPayload{}, fmt.Errorf("unmarshal push payload: %w", err)
	}
	if p.UserID == uuid.Nil {
		return PushPayload{}, fmt.Errorf("push payload missing user id")
	}
	return p, nil
}
