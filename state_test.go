package goRBAC

import (
	"errors"
	"testing"

	"github.com/MrEthical07/goRBAC/permission"
)

func buildStateFixture(t *testing.T, cfg Config) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithPermissionBits(map[string]int{"user:read": 1, "user:write": 2}).
		WithPermissions("post:read", "post:write").
		WithRoles(map[string][]string{
			"viewer": {"user:read", "post:read"},
			"editor": {"user:read", "user:write", "post:*"},
			"admin":  {"*"},
		}).
		WithRoleLevels(map[string]int{"viewer": 1, "editor": 2, "admin": 3}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	if err := engine.DenyPermission("u2", "post:write"); err != nil {
		t.Fatalf("DenyPermission failed: %v", err)
	}
	if err := engine.DenyPermission("u3", "user:*"); err != nil {
		t.Fatalf("DenyPermission failed: %v", err)
	}
	return engine
}

func sampleUsers() []User {
	return []User{
		{ID: "u1", Roles: []string{"viewer"}},
		{ID: "u2", Roles: []string{"editor"}},
		{ID: "u3", Roles: []string{"admin"}},
		{ID: "u4", Permissions: []string{"post:*"}},
		{ID: "u5", PermissionMask: 1 << 2},
		{ID: "u6"},
	}
}

var samplePermissions = []string{"user:read", "user:write", "post:read", "post:write", "post:delete", "billing:view"}

func assertSameDecisions(t *testing.T, a, b *Engine) {
	t.Helper()
	for _, u := range sampleUsers() {
		for _, p := range samplePermissions {
			if got, want := b.HasPermission(u, p), a.HasPermission(u, p); got != want {
				t.Fatalf("user %s permission %s: restored=%v original=%v", u.ID, p, got, want)
			}
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false
	original := buildStateFixture(t, cfg)

	state := original.Serialize()
	if !state.BitmaskMode || !state.WildcardsEnabled || state.Version != StateVersion {
		t.Fatalf("unexpected flags %+v", state)
	}
	if len(state.Roles) != 3 || state.Levels["admin"] != 3 || len(state.Denied["u2"]) != 1 {
		t.Fatalf("snapshot incomplete: %+v", state)
	}

	restored := newTestEngine(t, cfg)
	if err := restored.Deserialize(state); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	assertSameDecisions(t, original, restored)

	if bit, _ := restored.PermissionBit("user:write"); bit != 2 {
		t.Fatalf("explicit bit not preserved, got %d", bit)
	}
	if !restored.CanActAsRole("admin", "editor") || restored.CanActAsRole("viewer", "editor") {
		t.Fatalf("hierarchy not restored")
	}
}

func TestStateJSONRoundTripWithPendingRoles(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false
	cfg.LazyRoles.Enabled = true
	original := buildStateFixture(t, cfg)

	original.HasPermission(User{ID: "u1", Roles: []string{"viewer"}}, "user:read")

	data, err := original.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState failed: %v", err)
	}

	restored := newTestEngine(t, cfg)
	if err := restored.UnmarshalState(data); err != nil {
		t.Fatalf("UnmarshalState failed: %v", err)
	}

	if restored.IsRolePending("viewer") {
		t.Fatalf("evaluated role must stay evaluated")
	}
	if !restored.IsRolePending("editor") || !restored.IsRolePending("admin") {
		t.Fatalf("pending roles must stay pending")
	}

	assertSameDecisions(t, original, restored)
}

func TestStateStringMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeString
	cfg.Cache.Enabled = false
	original := buildStateFixture(t, cfg)

	state := original.Serialize()
	if state.BitmaskMode {
		t.Fatalf("expected string mode snapshot")
	}

	restored := newTestEngine(t, testConfig())
	if err := restored.Deserialize(state); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if restored.Mode() != ModeString {
		t.Fatalf("snapshot mode must override engine config")
	}
	assertSameDecisions(t, original, restored)
}

func TestDeserializeRejectsInconsistentMask(t *testing.T) {
	cfg := testConfig()
	original := buildStateFixture(t, cfg)
	state := original.Serialize()

	for i := range state.Roles {
		if state.Roles[i].Name == "viewer" {
			state.Roles[i].Mask ^= 1 << 10
		}
	}

	target := newTestEngine(t, cfg)
	_ = target.CreateRole("keep", []string{"keep:me"})

	if err := target.Deserialize(state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if !target.RoleExists("keep") || target.RoleExists("viewer") {
		t.Fatalf("failed Deserialize must leave the engine unchanged")
	}
}

func TestDeserializeRejectsBadInput(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	tests := []struct {
		name  string
		state State
	}{
		{"future version", State{Version: StateVersion + 1, BitmaskMode: true}},
		{"bit out of range", State{BitmaskMode: true, Permissions: []permission.Permission{{Name: "a:b", Bit: 31}}}},
		{"duplicate bit", State{BitmaskMode: true, Permissions: []permission.Permission{{Name: "a:b", Bit: 3}, {Name: "a:c", Bit: 3}}}},
		{"malformed deny", State{BitmaskMode: true, Denied: map[string][]string{"u1": {"a::b"}}}},
		{"empty deny user", State{BitmaskMode: true, Denied: map[string][]string{"": {"a:b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := engine.Deserialize(tt.state); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
		})
	}

	if err := engine.UnmarshalState([]byte("{not json")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for bad JSON, got %v", err)
	}
}

func TestDeserializeClearsCache(t *testing.T) {
	engine := buildStateFixture(t, testConfig())
	u := User{ID: "u1", Roles: []string{"viewer"}}
	engine.HasPermission(u, "user:read")
	if engine.GetCacheStats().Size == 0 {
		t.Fatalf("expected a cached decision")
	}

	if err := engine.Deserialize(engine.Serialize()); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if engine.GetCacheStats().Size != 0 {
		t.Fatalf("Deserialize must clear cached decisions")
	}
}
