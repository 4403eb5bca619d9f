package permission

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistryAssignsDistinctBitsUpToCapacity(t *testing.T) {
	r := NewRegistry(ModeBitmask)

	seen := make(map[int]string, MaxBits)
	for i := 0; i < MaxBits; i++ {
		name := fmt.Sprintf("perm:%d", i)
		bit, err := r.Register(name)
		if err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
		if bit < 0 || bit >= MaxBits {
			t.Fatalf("bit %d out of range", bit)
		}
		if prev, dup := seen[bit]; dup {
			t.Fatalf("bit %d assigned to both %s and %s", bit, prev, name)
		}
		seen[bit] = name
	}

	if _, err := r.Register("perm:overflow"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.Has("perm:overflow") {
		t.Fatal("failed registration must not leave the name behind")
	}
	if r.Count() != MaxBits {
		t.Fatalf("expected %d permissions, got %d", MaxBits, r.Count())
	}
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(ModeBitmask)
	first, err := r.Register("user:read")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	again, err := r.Register("user:read")
	if err != nil || again != first {
		t.Fatalf("expected (%d, nil), got (%d, %v)", first, again, err)
	}
}

func TestRegistryExplicitBits(t *testing.T) {
	r := NewRegistry(ModeBitmask)

	if bit, err := r.RegisterBit("user:read", 1); err != nil || bit != 1 {
		t.Fatalf("RegisterBit(user:read, 1) = (%d, %v)", bit, err)
	}
	if _, err := r.RegisterBit("user:write", 1); !errors.Is(err, ErrDuplicateBit) {
		t.Fatalf("expected ErrDuplicateBit, got %v", err)
	}
	if _, err := r.RegisterBit("user:read", 2); !errors.Is(err, ErrBitReassignment) {
		t.Fatalf("expected ErrBitReassignment, got %v", err)
	}
	if _, err := r.RegisterBit("user:write", 31); !errors.Is(err, ErrInvalidBit) {
		t.Fatalf("expected ErrInvalidBit for bit 31, got %v", err)
	}

	// Auto-assignment fills the lowest free bit around explicit ones.
	if bit, err := r.Register("user:list"); err != nil || bit != 0 {
		t.Fatalf("Register(user:list) = (%d, %v), want bit 0", bit, err)
	}
	if bit, err := r.Register("user:delete"); err != nil || bit != 2 {
		t.Fatalf("Register(user:delete) = (%d, %v), want bit 2", bit, err)
	}

	if name, ok := r.Name(1); !ok || name != "user:read" {
		t.Fatalf("Name(1) = (%q, %v)", name, ok)
	}
}

func TestRegistryRejectsMalformedNames(t *testing.T) {
	r := NewRegistry(ModeBitmask)
	for _, name := range []string{"", "a::b", "user:*", "with space"} {
		if _, err := r.Register(name); !errors.Is(err, ErrMalformedPermission) {
			t.Fatalf("Register(%q) = %v, want ErrMalformedPermission", name, err)
		}
	}
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestRegistryEnsureIsAllOrNothing(t *testing.T) {
	r := NewRegistry(ModeBitmask)
	for i := 0; i < MaxBits-1; i++ {
		if _, err := r.Register(fmt.Sprintf("p:%d", i)); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	if err := r.Ensure([]string{"x:one", "x:two"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.Has("x:one") || r.Has("x:two") {
		t.Fatal("Ensure registered a subset before failing")
	}
	if err := r.Ensure([]string{"x:one", "x:one", "p:0"}); err != nil {
		t.Fatalf("Ensure with one new name failed: %v", err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected 0 remaining bits, got %d", r.Remaining())
	}
}

func TestRegistryStringModeHasNoCapacity(t *testing.T) {
	r := NewRegistry(ModeString)
	for i := 0; i < 100; i++ {
		bit, err := r.Register(fmt.Sprintf("perm:%d", i))
		if err != nil {
			t.Fatalf("Register failed at %d: %v", i, err)
		}
		if bit != NoBit {
			t.Fatalf("string mode returned bit %d", bit)
		}
	}
	if _, ok := r.Bit("perm:1"); ok {
		t.Fatal("string mode must not report bits")
	}
	if r.Remaining() != -1 {
		t.Fatalf("expected -1 remaining in string mode, got %d", r.Remaining())
	}
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry(ModeBitmask)
	if _, err := r.Register("a"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Freeze()
	if _, err := r.Register("b"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if bit, err := r.Register("a"); err != nil || bit != 0 {
		t.Fatalf("re-registering a known name after Freeze = (%d, %v)", bit, err)
	}
}

func TestRegistryConcurrentRegisterNeverCollides(t *testing.T) {
	r := NewRegistry(ModeBitmask)

	var wg sync.WaitGroup
	for i := 0; i < MaxBits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Register(fmt.Sprintf("perm:%d", i))
		}(i)
	}
	wg.Wait()

	var union Mask32
	for _, p := range r.Permissions() {
		if union.Has(p.Bit) {
			t.Fatalf("bit %d assigned twice", p.Bit)
		}
		union.Set(p.Bit)
	}
	if !union.Valid() {
		t.Fatal("sign bit must stay clear")
	}
}
