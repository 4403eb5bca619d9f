package goRBAC

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Audit event types.
const (
	AuditTypePermissionCheck = "permission_check"
	AuditTypeAuthorization   = "authorization"
)

// AuditEvent records one authorization decision. Events are values; sinks
// must not retain references to Context beyond Log.
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	Permission string            `json:"permission"`
	Allowed    bool              `json:"allowed"`
	Reason     string            `json:"reason,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TimestampMs returns the event time in Unix milliseconds.
func (e AuditEvent) TimestampMs() int64 {
	return e.Timestamp.UnixMilli()
}

// AuditSink receives audit events. Returned errors and panics are reported
// to the engine's logger and never affect the decision that produced the
// event.
type AuditSink interface {
	Log(ctx context.Context, event AuditEvent) error
}

// AuditFlusher is implemented by sinks that hold events in memory.
type AuditFlusher interface {
	Flush(ctx context.Context) error
}

// AuditBatchSink is implemented by sinks that accept a batch in one call.
// [BufferedSink] prefers it over per-event Log.
type AuditBatchSink interface {
	LogBatch(ctx context.Context, events []AuditEvent) error
}

var (
	// ErrAuditSinkFull is returned when a non-blocking sink has no room.
	ErrAuditSinkFull = errors.New("audit sink full")
	// ErrAuditSinkClosed is returned by sinks after Close.
	ErrAuditSinkClosed = errors.New("audit sink closed")
)

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Log calls f.
func (f AuditSinkFunc) Log(ctx context.Context, event AuditEvent) error {
	return f(ctx, event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Log does nothing.
func (NoOpSink) Log(context.Context, AuditEvent) error { return nil }

// ChannelSink delivers events to a buffered channel without blocking. When
// the channel is full the event is rejected with [ErrAuditSinkFull].
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a sink with room for buffer events (at least one).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Log queues event, or fails with [ErrAuditSinkFull] when no slot is free.
func (s *ChannelSink) Log(ctx context.Context, event AuditEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrAuditSinkFull
	}
}

// Events returns the receive side of the channel.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink writes to w. A nil writer discards events.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Log encodes event as one line.
func (s *JSONWriterSink) Log(ctx context.Context, event AuditEvent) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}

// ConsoleSink writes a single human-readable line per event, synchronously.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewConsoleSink writes to w, or to standard output when w is nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{writer: w}
}

// Log writes one line for event.
func (s *ConsoleSink) Log(ctx context.Context, event AuditEvent) error {
	decision := "DENY"
	if event.Allowed {
		decision = "ALLOW"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.writer, "%s [%s] %s user=%s permission=%s reason=%q\n",
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Type,
		decision,
		event.UserID,
		event.Permission,
		event.Reason,
	)
	return err
}

// MultiSink fans each event out to every sink. A failing or panicking sink
// does not stop delivery to the others; their errors are joined.
type MultiSink struct {
	sinks []AuditSink
}

// NewMultiSink fans out to sinks, skipping nil entries.
func NewMultiSink(sinks ...AuditSink) *MultiSink {
	out := make([]AuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Log(ctx context.Context, event AuditEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := logSafely(ctx, s, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every member that implements [AuditFlusher].
func (m *MultiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if f, ok := s.(AuditFlusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of member sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func logSafely(ctx context.Context, sink AuditSink, event AuditEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panic: %v", r)
		}
	}()
	return sink.Log(ctx, event)
}

func logBatchSafely(ctx context.Context, sink AuditBatchSink, events []AuditEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panic: %v", r)
		}
	}()
	return sink.LogBatch(ctx, events)
}
