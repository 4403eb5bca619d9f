package permission

import (
	"fmt"
	"sort"
	"sync"
)

// Role is a read-only view of a stored role.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Mask        Mask32   `json:"mask"`
}

// roleEntry is immutable once published in RoleStore.roles. Mutations build
// a new entry and swap the pointer, so a reader holding an entry always sees
// a complete pre- or post-mutation state.
type roleEntry struct {
	mask     Mask32
	perms    map[string]struct{}
	patterns []string
}

func (e *roleEntry) names() []string {
	out := make([]string, 0, len(e.perms))
	for p := range e.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RoleStore maps role names to their permission sets and combined masks.
type RoleStore struct {
	registry  *Registry
	wildcards bool

	mu    sync.RWMutex
	roles map[string]*roleEntry
}

// NewRoleStore creates a role store backed by registry. When wildcards is
// false, stored patterns only ever match exactly.
func NewRoleStore(registry *Registry, wildcards bool) *RoleStore {
	return &RoleStore{
		registry:  registry,
		wildcards: wildcards,
		roles:     make(map[string]*roleEntry),
	}
}

// Registry returns the registry the store resolves bits from.
func (s *RoleStore) Registry() *Registry {
	return s.registry
}

// CreateRole creates or replaces roleName with exactly the given permissions.
// Concrete names are registered on demand in bitmask mode; wildcard patterns
// are stored as-is. On error the store and registry are unchanged.
func (s *RoleStore) CreateRole(roleName string, permissions []string) error {
	if roleName == "" {
		return ErrEmptyRoleName
	}

	entry, err := s.build(nil, permissions)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, err)
	}

	s.mu.Lock()
	s.roles[roleName] = entry
	s.mu.Unlock()
	return nil
}

// Grant adds permissions to an existing role.
func (s *RoleStore) Grant(roleName string, permissions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[roleName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	next, err := s.build(current, permissions)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, err)
	}
	s.roles[roleName] = next
	return nil
}

// Revoke removes the exact given permissions from an existing role. Names the
// role does not hold are ignored.
func (s *RoleStore) Revoke(roleName string, permissions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[roleName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	drop := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		drop[p] = struct{}{}
	}

	kept := make([]string, 0, len(current.perms))
	for p := range current.perms {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}

	next, err := s.build(nil, kept)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, err)
	}
	s.roles[roleName] = next
	return nil
}

func (s *RoleStore) build(base *roleEntry, permissions []string) (*roleEntry, error) {
	concrete := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if err := ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("%w: %q", err, p)
		}
		if !IsPattern(p) {
			concrete = append(concrete, p)
		}
	}
	if s.registry.Mode() == ModeBitmask {
		if err := s.registry.Ensure(concrete); err != nil {
			return nil, err
		}
	}

	entry := &roleEntry{perms: make(map[string]struct{}, len(permissions))}
	if base != nil {
		for p := range base.perms {
			entry.perms[p] = struct{}{}
		}
	}
	for _, p := range permissions {
		entry.perms[p] = struct{}{}
	}

	all := entry.names()
	entry.mask = s.registry.MaskOf(all)
	for _, p := range all {
		if IsPattern(p) {
			entry.patterns = append(entry.patterns, p)
		}
	}
	return entry, nil
}

func (s *RoleStore) entry(roleName string) (*roleEntry, bool) {
	s.mu.RLock()
	e, ok := s.roles[roleName]
	s.mu.RUnlock()
	return e, ok
}

// Allows reports whether roleName grants permission. found is false when the
// role does not exist. Exact membership is tried first (mask bit in bitmask
// mode, set membership in string mode), then the role's wildcard patterns.
func (s *RoleStore) Allows(roleName, permission string) (found, allowed bool) {
	e, ok := s.entry(roleName)
	if !ok {
		return false, false
	}

	if s.registry.Mode() == ModeBitmask {
		if bit, ok := s.registry.Bit(permission); ok && e.mask.Has(bit) {
			return true, true
		}
	} else if _, ok := e.perms[permission]; ok {
		return true, true
	}

	if s.wildcards {
		return true, MatchAny(permission, e.patterns)
	}
	if _, ok := e.perms[permission]; ok {
		return true, true
	}
	return true, false
}

// Get returns a copy of the named role.
func (s *RoleStore) Get(roleName string) (Role, bool) {
	e, ok := s.entry(roleName)
	if !ok {
		return Role{}, false
	}
	return Role{Name: roleName, Permissions: e.names(), Mask: e.mask}, true
}

// Mask returns the combined mask of the named role.
func (s *RoleStore) Mask(roleName string) (Mask32, bool) {
	e, ok := s.entry(roleName)
	if !ok {
		return 0, false
	}
	return e.mask, true
}

// Exists reports whether the role is stored.
func (s *RoleStore) Exists(roleName string) bool {
	_, ok := s.entry(roleName)
	return ok
}

// Delete removes a role. It reports whether the role existed.
func (s *RoleStore) Delete(roleName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.roles[roleName]
	delete(s.roles, roleName)
	return ok
}

// Names returns all role names in sorted order.
func (s *RoleStore) Names() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.roles))
	for name := range s.roles {
		out = append(out, name)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Roles returns every stored role sorted by name.
func (s *RoleStore) Roles() []Role {
	names := s.Names()
	out := make([]Role, 0, len(names))
	for _, name := range names {
		if r, ok := s.Get(name); ok {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of stored roles.
func (s *RoleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roles)
}
