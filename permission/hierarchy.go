package permission

import "sync"

// DefaultRoleLevel is the level of a role that never had one assigned.
const DefaultRoleLevel = 0

// Hierarchy ranks roles by integer level. It is a total order, so there is
// nothing to detect cycles in.
type Hierarchy struct {
	mu     sync.RWMutex
	levels map[string]int
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{levels: make(map[string]int)}
}

// SetLevel assigns a level to role.
func (h *Hierarchy) SetLevel(role string, level int) error {
	if role == "" {
		return ErrEmptyRoleName
	}
	h.mu.Lock()
	h.levels[role] = level
	h.mu.Unlock()
	return nil
}

// Level returns the role's level, or [DefaultRoleLevel] if unset.
func (h *Hierarchy) Level(role string) int {
	level, _ := h.Lookup(role)
	return level
}

// Lookup returns the role's level and whether one was explicitly set.
func (h *Hierarchy) Lookup(role string) (int, bool) {
	h.mu.RLock()
	level, ok := h.levels[role]
	h.mu.RUnlock()
	if !ok {
		return DefaultRoleLevel, false
	}
	return level, true
}

// CanActAs reports whether role a may act with the authority of role b,
// i.e. level(a) >= level(b).
func (h *Hierarchy) CanActAs(a, b string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.levelLocked(a) >= h.levelLocked(b)
}

func (h *Hierarchy) levelLocked(role string) int {
	if level, ok := h.levels[role]; ok {
		return level
	}
	return DefaultRoleLevel
}

// Remove forgets the role's level.
func (h *Hierarchy) Remove(role string) {
	h.mu.Lock()
	delete(h.levels, role)
	h.mu.Unlock()
}

// Levels returns a copy of every explicitly set level.
func (h *Hierarchy) Levels() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.levels))
	for k, v := range h.levels {
		out[k] = v
	}
	return out
}
