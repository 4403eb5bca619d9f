package permission

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newBitmaskStore(t *testing.T, perms ...string) *RoleStore {
	t.Helper()
	r := NewRegistry(ModeBitmask)
	for _, p := range perms {
		if _, err := r.Register(p); err != nil {
			t.Fatalf("Register(%s) failed: %v", p, err)
		}
	}
	return NewRoleStore(r, true)
}

func TestRoleStoreExactAndWildcard(t *testing.T) {
	for _, mode := range []Mode{ModeBitmask, ModeString} {
		t.Run(mode.String(), func(t *testing.T) {
			s := NewRoleStore(NewRegistry(mode), true)
			if err := s.CreateRole("editor", []string{"user:read"}); err != nil {
				t.Fatalf("CreateRole failed: %v", err)
			}
			if err := s.CreateRole("admin", []string{"user:*"}); err != nil {
				t.Fatalf("CreateRole failed: %v", err)
			}

			if found, ok := s.Allows("editor", "user:read"); !found || !ok {
				t.Fatalf("editor should allow user:read (found=%v ok=%v)", found, ok)
			}
			if _, ok := s.Allows("editor", "user:write"); ok {
				t.Fatal("editor must not allow user:write")
			}
			if _, ok := s.Allows("admin", "user:delete"); !ok {
				t.Fatal("admin should allow user:delete via user:*")
			}
			if found, _ := s.Allows("ghost", "user:read"); found {
				t.Fatal("unknown role must report found=false")
			}
		})
	}
}

func TestRoleStoreWildcardsDisabled(t *testing.T) {
	s := NewRoleStore(NewRegistry(ModeString), false)
	if err := s.CreateRole("admin", []string{"user:*"}); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if _, ok := s.Allows("admin", "user:delete"); ok {
		t.Fatal("wildcards disabled: user:* must not cover user:delete")
	}
}

func TestRoleStoreGrantRevoke(t *testing.T) {
	s := newBitmaskStore(t, "post:read", "post:write")
	if err := s.CreateRole("author", []string{"post:read"}); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if err := s.Grant("author", []string{"post:write", "post:publish"}); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, ok := s.Allows("author", "post:publish"); !ok {
		t.Fatal("granted permission should be allowed")
	}
	if !s.Registry().Has("post:publish") {
		t.Fatal("Grant should register new concrete permissions in bitmask mode")
	}

	if err := s.Revoke("author", []string{"post:read", "never:held"}); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, ok := s.Allows("author", "post:read"); ok {
		t.Fatal("revoked permission still allowed")
	}

	role, _ := s.Get("author")
	want := s.Registry().MaskOf([]string{"post:write", "post:publish"})
	if role.Mask != want {
		t.Fatalf("mask = %b, want %b", role.Mask, want)
	}

	if err := s.Grant("ghost", []string{"x"}); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRoleStoreCreateReplaces(t *testing.T) {
	s := newBitmaskStore(t)
	_ = s.CreateRole("r", []string{"a", "b"})
	if err := s.CreateRole("r", []string{"c"}); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	role, _ := s.Get("r")
	if len(role.Permissions) != 1 || role.Permissions[0] != "c" {
		t.Fatalf("expected [c], got %v", role.Permissions)
	}
}

func TestRoleStoreCapacityLeavesRoleUnchanged(t *testing.T) {
	s := newBitmaskStore(t)
	perms := make([]string, MaxBits)
	for i := range perms {
		perms[i] = fmt.Sprintf("p:%d", i)
	}
	if err := s.CreateRole("full", perms); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if err := s.Grant("full", []string{"p:extra"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	role, _ := s.Get("full")
	if len(role.Permissions) != MaxBits {
		t.Fatalf("role changed after failed grant: %d permissions", len(role.Permissions))
	}
	if err := s.CreateRole("", nil); !errors.Is(err, ErrEmptyRoleName) {
		t.Fatalf("expected ErrEmptyRoleName, got %v", err)
	}
}

func TestRoleStoreReadsDuringMutation(t *testing.T) {
	s := newBitmaskStore(t, "a:read", "a:write")
	_ = s.CreateRole("r", []string{"a:read", "a:write"})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = s.Revoke("r", []string{"a:write"})
			} else {
				_ = s.Grant("r", []string{"a:write"})
			}
		}
	}()

	for i := 0; i < 5000; i++ {
		if _, ok := s.Allows("r", "a:read"); !ok {
			t.Fatal("a:read must stay allowed across concurrent grant/revoke of a:write")
		}
	}
	close(stop)
	wg.Wait()
}
