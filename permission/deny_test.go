package permission

import (
	"errors"
	"testing"
)

func TestDenyLedgerExactAndWildcard(t *testing.T) {
	d := NewDenyLedger(true)
	if err := d.Deny("u1", "user:delete"); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	if err := d.Deny("u1", "billing:*"); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}

	cases := map[string]bool{
		"user:delete":        true,
		"user:read":          false,
		"billing:refund":     true,
		"billing:invoice:vo": true,
		"billing":            false,
	}
	for perm, want := range cases {
		if got := d.IsDenied("u1", perm); got != want {
			t.Fatalf("IsDenied(u1, %s) = %v, want %v", perm, got, want)
		}
	}
	if d.IsDenied("u2", "user:delete") {
		t.Fatal("denies must be per user")
	}
}

func TestDenyLedgerAllowRemovesExactPatternOnly(t *testing.T) {
	d := NewDenyLedger(true)
	_ = d.Deny("u1", "admin:*")
	_ = d.Deny("u1", "admin:delete")

	if !d.Allow("u1", "admin:*") {
		t.Fatal("Allow should report the removed pattern")
	}
	if !d.IsDenied("u1", "admin:delete") {
		t.Fatal("separate exact deny must survive removal of admin:*")
	}
	if d.IsDenied("u1", "admin:create") {
		t.Fatal("admin:create should no longer be denied")
	}
	if d.Allow("u1", "admin:create") {
		t.Fatal("Allow of an absent pattern must report false")
	}
}

func TestDenyLedgerWildcardsDisabled(t *testing.T) {
	d := NewDenyLedger(false)
	_ = d.Deny("u1", "admin:*")
	if d.IsDenied("u1", "admin:delete") {
		t.Fatal("wildcards disabled: admin:* must only match itself")
	}
	if !d.IsDenied("u1", "admin:*") {
		t.Fatal("exact entry must still match")
	}
}

func TestDenyLedgerClearAndSnapshot(t *testing.T) {
	d := NewDenyLedger(true)
	_ = d.Deny("u1", "b")
	_ = d.Deny("u1", "a")
	_ = d.Deny("u2", "c")

	got := d.Denied("u1")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Denied(u1) = %v", got)
	}

	d.Clear("u1")
	snap := d.Snapshot()
	if _, ok := snap["u1"]; ok {
		t.Fatal("u1 should be cleared")
	}
	if len(snap["u2"]) != 1 {
		t.Fatalf("u2 should be untouched, got %v", snap["u2"])
	}

	if err := d.Deny("u1", ""); !errors.Is(err, ErrMalformedPermission) {
		t.Fatalf("expected ErrMalformedPermission, got %v", err)
	}
}
