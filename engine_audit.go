package goRBAC

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// auditEmitter turns decisions into events and hands them to the sink
// chain. It is the only place where sink errors are observed.
type auditEmitter struct {
	sink     AuditSink
	buffered *BufferedSink
	logger   logr.Logger
	metrics  *Metrics
	now      func() time.Time
	stopped  atomic.Bool
}

func newAuditEmitter(cfg AuditConfig, sinks []AuditSink, logger logr.Logger, metrics *Metrics, now func() time.Time) *auditEmitter {
	if !cfg.Enabled || len(sinks) == 0 {
		return nil
	}

	var sink AuditSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = NewMultiSink(sinks...)
	}

	a := &auditEmitter{
		logger:  logger,
		metrics: metrics,
		now:     now,
	}

	if cfg.BufferSize > 0 {
		a.buffered = NewBufferedSink(sink, BufferedSinkOptions{
			BufferSize:    cfg.BufferSize,
			FlushInterval: cfg.FlushInterval,
			MaxPending:    cfg.MaxPending,
			DropIfFull:    cfg.DropIfFull,
			OnError:       a.sinkFailed,
		})
		sink = a.buffered
	}
	a.sink = sink
	return a
}

func (a *auditEmitter) emit(ctx context.Context, eventType string, userID, perm string, res AuthorizationResult) {
	if a == nil || a.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Permission: perm,
		Allowed:    res.Allowed,
		Reason:     res.Reason,
		Timestamp:  a.now().UTC(),
	}
	if md := auditMetadataFromContext(ctx); len(md) > 0 {
		event.Context = make(map[string]string, len(md))
		for k, v := range md {
			event.Context[k] = v
		}
	}

	err := logSafely(ctx, a.sink, event)
	switch {
	case err == nil:
	case errors.Is(err, ErrAuditSinkFull):
		a.logger.V(1).Info("audit event dropped", "user", userID, "permission", perm)
	default:
		a.sinkFailed(err)
	}
}

func (a *auditEmitter) sinkFailed(err error) {
	a.metrics.Inc(MetricAuditSinkFailure)
	a.logger.Error(err, "audit sink failed")
}

func (a *auditEmitter) flush(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if f, ok := a.sink.(AuditFlusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (a *auditEmitter) close() error {
	if a == nil {
		return nil
	}
	a.stopped.Store(true)
	if a.buffered != nil {
		return a.buffered.Close()
	}
	if f, ok := a.sink.(AuditFlusher); ok {
		return f.Flush(context.Background())
	}
	return nil
}

func (a *auditEmitter) dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.buffered.Dropped()
}
