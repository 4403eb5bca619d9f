package permission

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LazyStats counts roles known to a [LazyRoles] resolver.
type LazyStats struct {
	Pending   int `json:"pending"`
	Evaluated int `json:"evaluated"`
	Total     int `json:"total"`
}

// LazyRoles defers materializing configured roles into a [RoleStore] until
// they are first looked up. A role moves from pending to evaluated exactly
// once; concurrent first lookups share a single materialization.
type LazyRoles struct {
	store     *RoleStore
	group     singleflight.Group
	onResolve func(role string)

	mu        sync.RWMutex
	pending   map[string][]string
	evaluated map[string]struct{}
}

// NewLazyRoles creates a resolver writing into store. onResolve, if not nil,
// is called once per role after it has been materialized.
func NewLazyRoles(store *RoleStore, onResolve func(role string)) *LazyRoles {
	return &LazyRoles{
		store:     store,
		onResolve: onResolve,
		pending:   make(map[string][]string),
		evaluated: make(map[string]struct{}),
	}
}

// Add records roleName as pending with its raw permission list. A role that
// was already evaluated is re-created in the store immediately instead.
func (l *LazyRoles) Add(roleName string, permissions []string) error {
	if roleName == "" {
		return ErrEmptyRoleName
	}
	raw := append([]string(nil), permissions...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, done := l.evaluated[roleName]; done {
		return l.store.CreateRole(roleName, raw)
	}
	l.pending[roleName] = raw
	return nil
}

// Resolve materializes roleName if it is pending. It reports whether the
// role was handled by this resolver (pending or already evaluated).
func (l *LazyRoles) Resolve(roleName string) (bool, error) {
	l.mu.RLock()
	_, isPending := l.pending[roleName]
	_, isEvaluated := l.evaluated[roleName]
	l.mu.RUnlock()

	if isEvaluated {
		return true, nil
	}
	if !isPending {
		return false, nil
	}

	_, err, _ := l.group.Do(roleName, func() (interface{}, error) {
		// The pending list is read and published under one lock so a
		// concurrent Define cannot be overwritten by stale permissions.
		l.mu.Lock()
		perms, stillPending := l.pending[roleName]
		if !stillPending {
			l.mu.Unlock()
			return nil, nil
		}
		if err := l.store.CreateRole(roleName, perms); err != nil {
			l.mu.Unlock()
			return nil, err
		}
		delete(l.pending, roleName)
		l.evaluated[roleName] = struct{}{}
		l.mu.Unlock()

		if l.onResolve != nil {
			l.onResolve(roleName)
		}
		return nil, nil
	})
	return true, err
}

// EvaluateAll materializes every pending role. It stops at the first error.
func (l *LazyRoles) EvaluateAll() error {
	for _, name := range l.PendingNames() {
		if _, err := l.Resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// IsPending reports whether roleName is known but not yet materialized.
func (l *LazyRoles) IsPending(roleName string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.pending[roleName]
	return ok
}

// PendingNames returns the names of pending roles in sorted order.
func (l *LazyRoles) PendingNames() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.pending))
	for name := range l.pending {
		out = append(out, name)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// PendingPermissions returns a copy of a pending role's raw permission list.
func (l *LazyRoles) PendingPermissions(roleName string) ([]string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	perms, ok := l.pending[roleName]
	if !ok {
		return nil, false
	}
	return append([]string(nil), perms...), true
}

// Define stores roleName with permissions right away, replacing any pending
// definition, and counts it as evaluated.
func (l *LazyRoles) Define(roleName string, permissions []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.CreateRole(roleName, permissions); err != nil {
		return err
	}
	delete(l.pending, roleName)
	l.evaluated[roleName] = struct{}{}
	return nil
}

// Forget drops roleName from both the pending and evaluated sets.
func (l *LazyRoles) Forget(roleName string) {
	l.mu.Lock()
	delete(l.pending, roleName)
	delete(l.evaluated, roleName)
	l.mu.Unlock()
}

// Stats returns pending, evaluated and total counts. Every role held by the
// store counts as evaluated, however it got there.
func (l *LazyRoles) Stats() LazyStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	evaluated := l.store.Count()
	return LazyStats{
		Pending:   len(l.pending),
		Evaluated: evaluated,
		Total:     len(l.pending) + evaluated,
	}
}
