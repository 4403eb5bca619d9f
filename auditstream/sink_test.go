package auditstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goRBAC "github.com/MrEthical07/goRBAC"
)

func newSinkTest(t *testing.T, opts Options) (*Sink, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewSink(rdb, opts), mr
}

func testEvent(id string, allowed bool) goRBAC.AuditEvent {
	return goRBAC.AuditEvent{
		ID:         id,
		Type:       goRBAC.AuditTypeAuthorization,
		UserID:     "u1",
		Permission: "posts:read",
		Allowed:    allowed,
		Reason:     goRBAC.ReasonRole,
		Context:    map[string]string{"path": "/posts"},
		Timestamp:  time.UnixMilli(1700000000123).UTC(),
	}
}

func TestLogAndRangeRoundTrip(t *testing.T) {
	sink, _ := newSinkTest(t, Options{})
	ctx := context.Background()

	want := testEvent("e1", true)
	if err := sink.Log(ctx, want); err != nil {
		t.Fatalf("log: %v", err)
	}

	got, last, err := sink.Range(ctx, "-", 10)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 1 || last == "" {
		t.Fatalf("expected 1 event with id, got %d (%q)", len(got), last)
	}
	ev := got[0]
	if ev.ID != want.ID || ev.Type != want.Type || ev.UserID != want.UserID || ev.Permission != want.Permission {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.Allowed || ev.Reason != want.Reason || !ev.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("unexpected decision fields %+v", ev)
	}
	if ev.Context["path"] != "/posts" {
		t.Fatalf("context not carried: %v", ev.Context)
	}
}

func TestLogBatchPipelines(t *testing.T) {
	sink, _ := newSinkTest(t, Options{Stream: "audit:test"})
	ctx := context.Background()

	batch := []goRBAC.AuditEvent{testEvent("a", true), testEvent("b", false), testEvent("c", true)}
	if err := sink.LogBatch(ctx, batch); err != nil {
		t.Fatalf("log batch: %v", err)
	}
	if err := sink.LogBatch(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	n, err := sink.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}

	got, _, err := sink.Range(ctx, "", 10)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID != id {
			t.Fatalf("entry %d: expected %q, got %q", i, id, got[i].ID)
		}
	}
	if got[1].Allowed {
		t.Fatal("expected second entry to be a denial")
	}
}

func TestRangeRejectsForeignEntries(t *testing.T) {
	sink, _ := newSinkTest(t, Options{})
	seed := &redis.XAddArgs{Stream: sink.Stream(), Values: []any{"allowed", "maybe", "ts", "1"}}
	if err := sink.redis.XAdd(context.Background(), seed).Err(); err != nil {
		t.Fatalf("seed stream: %v", err)
	}
	if _, _, err := sink.Range(context.Background(), "-", 10); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("expected ErrMalformedEntry, got %v", err)
	}
}

func TestAddArgsTrimming(t *testing.T) {
	trimmed := NewSink(nil, Options{MaxLen: 50})
	args, err := trimmed.addArgs(testEvent("x", true))
	if err != nil {
		t.Fatalf("add args: %v", err)
	}
	if args.MaxLen != 50 || !args.Approx || args.Stream != DefaultStream {
		t.Fatalf("unexpected args %+v", args)
	}

	untrimmed := NewSink(nil, Options{MaxLen: -1})
	args, _ = untrimmed.addArgs(testEvent("x", true))
	if args.MaxLen != 0 || args.Approx {
		t.Fatalf("expected no trimming, got %+v", args)
	}
}

func TestRedisDownReturnsUnavailable(t *testing.T) {
	sink, mr := newSinkTest(t, Options{})
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Log(ctx, testEvent("x", true)); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from Log, got %v", err)
	}
	if err := sink.LogBatch(ctx, []goRBAC.AuditEvent{testEvent("x", true)}); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from LogBatch, got %v", err)
	}
}

func TestEngineBufferedAuditReachesStream(t *testing.T) {
	sink, _ := newSinkTest(t, Options{})

	cfg := goRBAC.DefaultConfig()
	cfg.Cache.CleanupInterval = -1
	cfg.Audit.BufferSize = 16
	cfg.Audit.FlushInterval = time.Hour
	engine, err := goRBAC.NewEngine(cfg, goRBAC.WithAuditSinks(sink))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.CreateRole("viewer", []string{"posts:read"}); err != nil {
		t.Fatalf("create role: %v", err)
	}

	user := goRBAC.User{ID: "u1", Roles: []string{"viewer"}}
	for i := 0; i < 5; i++ {
		engine.Authorize(user, "posts:read")
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err := sink.Len(context.Background())
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 events after close, got %d", n)
	}
}
