package auditstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	goRBAC "github.com/MrEthical07/goRBAC"
)

// ErrRedisUnavailable wraps every Redis error returned by the sink.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrMalformedEntry is returned by Range for stream entries it cannot decode.
var ErrMalformedEntry = errors.New("malformed audit stream entry")

// DefaultStream is the stream key used when Options.Stream is empty.
const DefaultStream = "gorbac:audit"

// DefaultMaxLen bounds the stream when Options.MaxLen is zero.
const DefaultMaxLen = 100000

const (
	fieldID         = "id"
	fieldType       = "type"
	fieldUser       = "user_id"
	fieldPermission = "permission"
	fieldAllowed    = "allowed"
	fieldReason     = "reason"
	fieldTimestamp  = "ts"
	fieldContext    = "context"
)

// Options configure a [Sink].
type Options struct {
	Stream string
	// MaxLen caps the stream with approximate trimming. Negative disables trimming.
	MaxLen int64
}

// Sink writes audit events to a Redis stream.
type Sink struct {
	redis  redis.Cmdable
	stream string
	maxLen int64
}

var (
	_ goRBAC.AuditSink      = (*Sink)(nil)
	_ goRBAC.AuditBatchSink = (*Sink)(nil)
)

// NewSink creates a sink writing through client.
func NewSink(client redis.Cmdable, opts Options) *Sink {
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.MaxLen == 0 {
		opts.MaxLen = DefaultMaxLen
	}
	return &Sink{redis: client, stream: opts.Stream, maxLen: opts.MaxLen}
}

// Stream returns the stream key.
func (s *Sink) Stream() string {
	return s.stream
}

// Log appends one event.
func (s *Sink) Log(ctx context.Context, event goRBAC.AuditEvent) error {
	args, err := s.addArgs(event)
	if err != nil {
		return err
	}
	if err := s.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LogBatch appends events with a single pipelined round trip.
func (s *Sink) LogBatch(ctx context.Context, events []goRBAC.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for _, event := range events {
		args, err := s.addArgs(event)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for _, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
	}
	return nil
}

func (s *Sink) addArgs(event goRBAC.AuditEvent) (*redis.XAddArgs, error) {
	values := []any{
		fieldID, event.ID,
		fieldType, event.Type,
		fieldUser, event.UserID,
		fieldPermission, event.Permission,
		fieldAllowed, strconv.FormatBool(event.Allowed),
		fieldReason, event.Reason,
		fieldTimestamp, strconv.FormatInt(event.TimestampMs(), 10),
	}
	if len(event.Context) > 0 {
		raw, err := json.Marshal(event.Context)
		if err != nil {
			return nil, fmt.Errorf("encode audit context: %w", err)
		}
		values = append(values, fieldContext, string(raw))
	}

	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args, nil
}

// Len returns the number of entries in the stream.
func (s *Sink) Len(ctx context.Context) (int64, error) {
	n, err := s.redis.XLen(ctx, s.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Range reads up to count events starting at stream id start ("-" for the
// oldest). It returns the events and the stream id of the last one read.
func (s *Sink) Range(ctx context.Context, start string, count int64) ([]goRBAC.AuditEvent, string, error) {
	if start == "" {
		start = "-"
	}
	msgs, err := s.redis.XRangeN(ctx, s.stream, start, "+", count).Result()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]goRBAC.AuditEvent, 0, len(msgs))
	var last string
	for _, msg := range msgs {
		event, err := decode(msg.Values)
		if err != nil {
			return out, last, fmt.Errorf("%w %s: %v", ErrMalformedEntry, msg.ID, err)
		}
		out = append(out, event)
		last = msg.ID
	}
	return out, last, nil
}

func decode(values map[string]interface{}) (goRBAC.AuditEvent, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	allowed, err := strconv.ParseBool(str(fieldAllowed))
	if err != nil {
		return goRBAC.AuditEvent{}, fmt.Errorf("allowed: %w", err)
	}
	ms, err := strconv.ParseInt(str(fieldTimestamp), 10, 64)
	if err != nil {
		return goRBAC.AuditEvent{}, fmt.Errorf("ts: %w", err)
	}

	event := goRBAC.AuditEvent{
		ID:         str(fieldID),
		Type:       str(fieldType),
		UserID:     str(fieldUser),
		Permission: str(fieldPermission),
		Allowed:    allowed,
		Reason:     str(fieldReason),
		Timestamp:  time.UnixMilli(ms).UTC(),
	}
	if raw := str(fieldContext); raw != "" {
		if err := json.Unmarshal([]byte(raw), &event.Context); err != nil {
			return goRBAC.AuditEvent{}, fmt.Errorf("context: %w", err)
		}
	}
	return event, nil
}
