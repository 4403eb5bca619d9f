package goRBAC

import (
	"errors"
	"testing"
	"time"
)

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithPermissions("a:b")
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuilderExplicitBitsWinOverAutoAssignment(t *testing.T) {
	engine, err := New().
		WithConfig(testConfig()).
		WithPermissions("auto:one", "auto:two").
		WithPermissionBits(map[string]int{"pinned:zero": 0}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if bit, _ := engine.PermissionBit("pinned:zero"); bit != 0 {
		t.Fatalf("pinned permission lost its bit, got %d", bit)
	}
	if bit, _ := engine.PermissionBit("auto:one"); bit != 1 {
		t.Fatalf("expected auto:one at bit 1, got %d", bit)
	}
}

func TestBuilderRejectsConflicts(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
		want error
	}{
		{
			"duplicate bit",
			New().WithPermissionBits(map[string]int{"a:a": 3, "a:b": 3}),
			ErrDuplicateBit,
		},
		{
			"bit out of range",
			New().WithPermissionBits(map[string]int{"a:a": 31}),
			ErrInvalidBit,
		},
		{
			"malformed role permission",
			New().WithRoles(map[string][]string{"r": {"a::b"}}),
			ErrMalformedPermission,
		},
		{
			"level for unknown role",
			New().WithRoleLevels(map[string]int{"ghost": 1}),
			ErrUnknownRole,
		},
		{
			"invalid config",
			New().WithConfig(Config{Mode: Mode(7)}),
			ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuilderTogglesAndSinks(t *testing.T) {
	sink := &countingSink{}
	engine, err := New().
		WithConfig(testConfig()).
		WithStrictMode(true).
		WithLazyRoles(true).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		WithClock(func() time.Time { return time.Unix(0, 0) }).
		WithRoles(map[string][]string{"reader": {"doc:read"}}).
		WithRoleLevels(map[string]int{"reader": 4}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg := engine.Config()
	if !cfg.StrictMode || !cfg.LazyRoles.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("toggles not applied: %+v", cfg)
	}
	if !engine.IsRolePending("reader") || engine.GetRoleLevel("reader") != 4 {
		t.Fatalf("lazy role with level expected")
	}

	engine.HasPermission(User{ID: "u1", Roles: []string{"reader"}}, "doc:read")
	if sink.Count() != 1 {
		t.Fatalf("expected one audit event, got %d", sink.Count())
	}
	snap := engine.MetricsSnapshot()
	var observed uint64
	for _, n := range snap.Histograms[MetricCheckLatency] {
		observed += n
	}
	if observed != 1 {
		t.Fatalf("expected one latency observation, got %d", observed)
	}
}
