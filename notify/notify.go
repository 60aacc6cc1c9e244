// Package notify carries user-facing notifications out of the request path.
//
// The client never renders anything itself: each resolved call may produce at
// most one [Notification], handed to whatever [Sink] the embedding application
// wires in (a toast system, a TUI status line, a log). Delivery is
// asynchronous through [Dispatcher] so a slow sink cannot stall HTTP calls.
//
// # What this package must NOT do
//
//   - Decide whether a call warrants a notification (the orchestration layer
//     owns suppression and message precedence).
//   - Block the caller when the buffer is full and drop mode is enabled.
package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification for presentation.
type Level string

const (
	// LevelSuccess marks a completed operation.
	LevelSuccess Level = "success"
	// LevelError marks a failed operation.
	LevelError Level = "error"
)

// Notification is a single user-visible message produced by a resolved call.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns a notification stamped with a fresh ID and the current time.
func New(level Level, operation, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// Sink receives notifications. Implementations must be safe for concurrent
// use; Emit should return promptly or honor ctx cancellation.
type Sink interface {
	Emit(ctx context.Context, n Notification)
}

// NoOpSink discards everything. Used when the embedder wires no sink.
type NoOpSink struct{}

// Emit discards the notification.
func (NoOpSink) Emit(context.Context, Notification) {}

// ChannelSink exposes notifications on a channel, mostly for tests and for
// embedders that already run their own fan-out loop.
type ChannelSink struct {
	notifications chan Notification
}

// NewChannelSink returns a sink buffering up to buffer notifications.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{notifications: make(chan Notification, buffer)}
}

// Emit queues the notification, giving up when ctx is done.
func (s *ChannelSink) Emit(ctx context.Context, n Notification) {
	select {
	case s.notifications <- n:
	case <-ctx.Done():
	}
}

// Notifications returns the receive side of the sink.
func (s *ChannelSink) Notifications() <-chan Notification {
	return s.notifications
}

// JSONWriterSink writes one JSON object per line, handy for logging sinks.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit writes the notification as a single JSON line.
func (s *JSONWriterSink) Emit(_ context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
