// Package queue runs background jobs on asynq. Services depend on the small
// Client and Server interfaces here rather than on asynq directly.
package queue

import (
	"context"
	"time"
)

// Task is a job type plus an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry, so
// handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes a single enqueue. Zero values mean "backend default".
type EnqueueOption struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Unique   time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
