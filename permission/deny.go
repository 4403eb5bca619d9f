package permission

import (
	"sort"
	"sync"
)

// DenyLedger holds explicitly denied permission patterns per user. A match
// here overrides every allow path.
type DenyLedger struct {
	wildcards bool

	mu      sync.RWMutex
	entries map[string]map[string]struct{}
}

// NewDenyLedger creates an empty ledger. When wildcards is false, stored
// patterns only match exactly.
func NewDenyLedger(wildcards bool) *DenyLedger {
	return &DenyLedger{
		wildcards: wildcards,
		entries:   make(map[string]map[string]struct{}),
	}
}

// Deny records pattern as denied for userID.
func (d *DenyLedger) Deny(userID, pattern string) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.entries[userID]
	if !ok {
		set = make(map[string]struct{})
		d.entries[userID] = set
	}
	set[pattern] = struct{}{}
	return nil
}

// Allow removes exactly pattern from userID's denies. Other entries that
// happen to cover the same permissions are left in place. It reports whether
// the pattern was present.
func (d *DenyLedger) Allow(userID, pattern string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.entries[userID]
	if !ok {
		return false
	}
	if _, ok := set[pattern]; !ok {
		return false
	}
	delete(set, pattern)
	if len(set) == 0 {
		delete(d.entries, userID)
	}
	return true
}

// IsDenied reports whether permission is denied for userID: exact entry
// first, then wildcard patterns when enabled.
func (d *DenyLedger) IsDenied(userID, permission string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set, ok := d.entries[userID]
	if !ok {
		return false
	}
	if _, ok := set[permission]; ok {
		return true
	}
	if !d.wildcards {
		return false
	}
	for pattern := range set {
		if Match(permission, pattern) {
			return true
		}
	}
	return false
}

// Denied returns userID's deny patterns in sorted order.
func (d *DenyLedger) Denied(userID string) []string {
	d.mu.RLock()
	set := d.entries[userID]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Clear removes every deny entry of userID.
func (d *DenyLedger) Clear(userID string) {
	d.mu.Lock()
	delete(d.entries, userID)
	d.mu.Unlock()
}

// Snapshot returns a copy of the full ledger with sorted pattern lists.
func (d *DenyLedger) Snapshot() map[string][]string {
	d.mu.RLock()
	users := make([]string, 0, len(d.entries))
	for u := range d.entries {
		users = append(users, u)
	}
	d.mu.RUnlock()

	out := make(map[string][]string, len(users))
	for _, u := range users {
		if patterns := d.Denied(u); len(patterns) > 0 {
			out[u] = patterns
		}
	}
	return out
}
