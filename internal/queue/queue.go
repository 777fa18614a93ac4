// Package queue is the background-job port used for best-effort side
// effects that must not block or fail the request that triggered them.
package queue

import (
	"context"
)

// Task is a background job with a stable type name and opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes one task. A non-nil error signals retry per the
// adapter's policy, so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, task Task) (id string, err error)
	Close() error
}

// Server runs the workers. Run blocks until the context is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
