package permission

import (
	"sort"
	"sync"
)

// Mode selects how permissions are represented.
type Mode uint8

const (
	// ModeBitmask assigns each permission one bit of a [Mask32].
	ModeBitmask Mode = iota
	// ModeString keeps permissions as plain names with no capacity limit.
	ModeString
)

// String returns the mode name used in configuration files.
func (m Mode) String() string {
	switch m {
	case ModeBitmask:
		return "bitmask"
	case ModeString:
		return "string"
	default:
		return "unknown"
	}
}

// NoBit is the bit reported for permissions registered in string mode.
const NoBit = -1

// Permission is a registered permission name and, in bitmask mode, its bit.
type Permission struct {
	Name string `json:"name" yaml:"name"`
	Bit  int    `json:"bit" yaml:"bit"`
}

// Registry maps permission names to bit positions (bitmask mode) or keeps
// the set of known names (string mode).
type Registry struct {
	mode Mode

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName [MaxBits]string
	used      Mask32
	frozen    bool
}

// NewRegistry creates an empty registry in the given mode.
func NewRegistry(mode Mode) *Registry {
	return &Registry{
		mode:      mode,
		nameToBit: make(map[string]int),
	}
}

// Mode returns the registry's representation mode.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Register adds name, assigning the lowest unused bit in bitmask mode.
// Registering a name twice returns the bit it already owns. In string mode
// the returned bit is [NoBit].
func (r *Registry) Register(name string) (int, error) {
	if err := ValidateName(name); err != nil {
		return NoBit, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}
	if r.frozen {
		return NoBit, ErrRegistryFrozen
	}

	return r.assignLocked(name, r.lowestFreeLocked())
}

// RegisterBit adds name at an explicit bit index (0..30). The bit must be
// unused, and an already registered name may only be re-registered at the
// bit it owns. In string mode the bit is ignored.
func (r *Registry) RegisterBit(name string, bit int) (int, error) {
	if err := ValidateName(name); err != nil {
		return NoBit, err
	}
	if r.mode == ModeString {
		return r.Register(name)
	}
	if bit < 0 || bit >= MaxBits {
		return NoBit, ErrInvalidBit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.nameToBit[name]; ok {
		if existing != bit {
			return existing, ErrBitReassignment
		}
		return existing, nil
	}
	if r.frozen {
		return NoBit, ErrRegistryFrozen
	}
	if r.used.Has(bit) {
		return NoBit, ErrDuplicateBit
	}

	return r.assignLocked(name, bit)
}

// Ensure registers every concrete name in names that is not yet known.
// Either all of them are registered or, on error, none are.
func (r *Registry) Ensure(names []string) error {
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	missing := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := r.nameToBit[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return nil
	}
	if r.frozen {
		return ErrRegistryFrozen
	}
	if r.mode == ModeBitmask && len(r.nameToBit)+len(missing) > MaxBits {
		return ErrCapacityExceeded
	}

	for _, name := range missing {
		if _, err := r.assignLocked(name, r.lowestFreeLocked()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) lowestFreeLocked() int {
	if r.mode == ModeString {
		return NoBit
	}
	for bit := 0; bit < MaxBits; bit++ {
		if !r.used.Has(bit) {
			return bit
		}
	}
	return MaxBits
}

func (r *Registry) assignLocked(name string, bit int) (int, error) {
	if r.mode == ModeString {
		r.nameToBit[name] = NoBit
		return NoBit, nil
	}
	if bit >= MaxBits {
		return NoBit, ErrCapacityExceeded
	}

	r.nameToBit[name] = bit
	r.bitToName[bit] = name
	r.used.Set(bit)
	return bit, nil
}

// Bit returns the bit index for the named permission. It reports false for
// unknown names and for every name in string mode.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	bit, ok := r.nameToBit[name]
	r.mu.RUnlock()
	if !ok || bit == NoBit {
		return NoBit, false
	}
	return bit, true
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	if bit < 0 || bit >= MaxBits {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.used.Has(bit) {
		return "", false
	}
	return r.bitToName[bit], true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.nameToBit[name]
	r.mu.RUnlock()
	return ok
}

// MaskOf builds the mask of the given names, skipping unknown names and
// patterns. It is always zero in string mode.
func (r *Registry) MaskOf(names []string) Mask32 {
	var m Mask32
	if r.mode == ModeString {
		return m
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if bit, ok := r.nameToBit[name]; ok {
			m.Set(bit)
		}
	}
	return m
}

// NamesOf returns the permission names of every set bit in mask, ordered by bit.
func (r *Registry) NamesOf(mask Mask32) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for bit := 0; bit < MaxBits; bit++ {
		if mask.Has(bit) && r.used.Has(bit) {
			out = append(out, r.bitToName[bit])
		}
	}
	return out
}

// Permissions returns every registered permission, ordered by bit in
// bitmask mode and by name in string mode.
func (r *Registry) Permissions() []Permission {
	r.mu.RLock()
	out := make([]Permission, 0, len(r.nameToBit))
	for name, bit := range r.nameToBit {
		out = append(out, Permission{Name: name, Bit: bit})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Bit != out[j].Bit {
			return out[i].Bit < out[j].Bit
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Remaining returns the number of free bits, or -1 in string mode.
func (r *Registry) Remaining() int {
	if r.mode == ModeString {
		return -1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return MaxBits - len(r.nameToBit)
}
