package port

import (
	"context"
	"errors"
	"time"
)

// Task is a background job with a stable type name and opaque payload bytes.
// Payload encoding is owned by the task's producer and handler.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. Returning a non-nil error schedules a retry per
// adapter policy unless the error wraps ErrSkipRetry. Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// ErrSkipRetry marks failures that will not succeed on retry, such as
// malformed payloads or rejected domain input.
var ErrSkipRetry = errors.New("queue: skip retry")

type finalAttemptKey struct{}

// WithFinalAttempt marks ctx as carrying the last attempt a task will get.
// Adapters set it before invoking a Handler.
func WithFinalAttempt(ctx context.Context, final bool) context.Context {
	return context.WithValue(ctx, finalAttemptKey{}, final)
}

// IsFinalAttempt reports whether a failure now exhausts the task's retries.
func IsFinalAttempt(ctx context.Context) bool {
	final, _ := ctx.Value(finalAttemptKey{}).(bool)
	return final
}

// EnqueueOption controls enqueue behavior. Zero values mean "unspecified".
type EnqueueOption struct {
	Queue     string        // logical queue name
	ProcessIn time.Duration // delay before processing
	ProcessAt time.Time     // absolute schedule time, wins over ProcessIn
	MaxRetry  int
	UniqueTTL time.Duration // reject duplicates within this window
	Retention time.Duration // keep completed task metadata
	Deadline  time.Time
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs background workers. Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
