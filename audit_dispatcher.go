package goRBAC

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// BufferedSinkOptions configures a [BufferedSink].
type BufferedSinkOptions struct {
	// BufferSize is the batch size that triggers a flush.
	BufferSize int
	// FlushInterval flushes a partial batch on a timer.
	FlushInterval time.Duration
	// MaxPending bounds the queue between Log and the flush goroutine.
	MaxPending int
	// DropIfFull makes Log fail fast with ErrAuditSinkFull instead of
	// waiting for queue space.
	DropIfFull bool
	// OnError receives delivery errors from the background goroutine.
	OnError func(error)
}

// BufferedSink queues events and delivers them to the next sink in batches,
// on a size threshold or a timer, from its own goroutine. Log never performs
// I/O on the caller's goroutine.
type BufferedSink struct {
	opts BufferedSinkOptions
	next AuditSink

	ch        chan AuditEvent
	flushReq  chan chan error
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	// sendMu is held shared by every send and exclusively while closed is
	// set, so no event can enter ch after the final drain starts.
	sendMu    sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewBufferedSink starts the flush goroutine. Close must be called to stop
// it and deliver what is still queued.
func NewBufferedSink(next AuditSink, opts BufferedSinkOptions) *BufferedSink {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.MaxPending < opts.BufferSize {
		opts.MaxPending = opts.BufferSize
	}
	if next == nil {
		next = NoOpSink{}
	}

	b := &BufferedSink{
		opts:     opts,
		next:     next,
		ch:       make(chan AuditEvent, opts.MaxPending),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

func (b *BufferedSink) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]AuditEvent, 0, b.opts.BufferSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := b.deliver(batch)
		batch = batch[:0]
		return err
	}
	add := func(event AuditEvent) error {
		batch = append(batch, event)
		if len(batch) >= b.opts.BufferSize {
			return flush()
		}
		return nil
	}
	drain := func() error {
		var errs []error
		for {
			select {
			case event := <-b.ch:
				if err := add(event); err != nil {
					errs = append(errs, err)
				}
			default:
				if err := flush(); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			}
		}
	}

	for {
		select {
		case event := <-b.ch:
			b.report(add(event))
		case <-ticker.C:
			b.report(flush())
		case reply := <-b.flushReq:
			reply <- drain()
		case <-b.done:
			b.closeErr = drain()
			return
		}
	}
}

func (b *BufferedSink) deliver(batch []AuditEvent) error {
	ctx := context.Background()

	var err error
	if bs, ok := b.next.(AuditBatchSink); ok {
		out := make([]AuditEvent, len(batch))
		copy(out, batch)
		err = logBatchSafely(ctx, bs, out)
	} else {
		var errs []error
		for _, event := range batch {
			if e := logSafely(ctx, b.next, event); e != nil {
				errs = append(errs, e)
			}
		}
		err = errors.Join(errs...)
	}

	if f, ok := b.next.(AuditFlusher); ok {
		err = errors.Join(err, f.Flush(ctx))
	}
	return err
}

func (b *BufferedSink) report(err error) {
	if err != nil && b.opts.OnError != nil {
		b.opts.OnError(err)
	}
}

// Log queues event. With DropIfFull a full queue returns ErrAuditSinkFull
// and counts the event as dropped; otherwise Log waits for space or ctx.
func (b *BufferedSink) Log(ctx context.Context, event AuditEvent) error {
	if b == nil {
		return ErrAuditSinkClosed
	}
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed.Load() {
		return ErrAuditSinkClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if b.opts.DropIfFull {
		select {
		case b.ch <- event:
			return nil
		case <-b.done:
			return ErrAuditSinkClosed
		default:
			b.dropped.Add(1)
			return ErrAuditSinkFull
		}
	}

	select {
	case b.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrAuditSinkClosed
	}
}

// Flush delivers every queued event and waits for the delivery to finish.
func (b *BufferedSink) Flush(ctx context.Context) error {
	if b == nil || b.closed.Load() {
		return ErrAuditSinkClosed
	}

	reply := make(chan error, 1)
	select {
	case b.flushReq <- reply:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrAuditSinkClosed
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the flush goroutine after a final flush. It is idempotent and
// returns the final flush error on every call.
func (b *BufferedSink) Close() error {
	if b == nil {
		return nil
	}
	b.closeOnce.Do(func() {
		b.sendMu.Lock()
		b.closed.Store(true)
		b.sendMu.Unlock()
		close(b.done)
		b.wg.Wait()
	})
	return b.closeErr
}

// Dropped returns the number of events rejected because the queue was full.
func (b *BufferedSink) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
