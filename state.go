package goRBAC

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MrEthical07/goRBAC/permission"
)

// StateVersion is the snapshot format written by Serialize.
const StateVersion = 1

// State is the portable snapshot of an engine's policy: representation
// flags, registered permissions with their bits, roles, hierarchy levels and
// the full deny ledger. Cache contents and metrics are not part of it.
type State struct {
	Version          int                     `json:"version"`
	BitmaskMode      bool                    `json:"bitmask_mode"`
	WildcardsEnabled bool                    `json:"wildcards_enabled"`
	Permissions      []permission.Permission `json:"permissions"`
	Roles            []RoleState             `json:"roles"`
	Levels           map[string]int          `json:"levels,omitempty"`
	Denied           map[string][]string     `json:"denied,omitempty"`
}

// RoleState is one role of a snapshot. Pending roles have not been
// materialized yet; their Mask is zero and their permissions may reference
// names that are not registered.
type RoleState struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Mask        uint32   `json:"mask"`
	Pending     bool     `json:"pending,omitempty"`
}

// Serialize returns a snapshot of the engine's policy.
func (e *Engine) Serialize() State {
	e.swapMu.Lock()
	defer e.swapMu.Unlock()

	st := e.state.Load()
	out := State{
		Version:          StateVersion,
		BitmaskMode:      st.mode == ModeBitmask,
		WildcardsEnabled: st.wildcards,
		Permissions:      st.registry.Permissions(),
		Levels:           st.hierarchy.Levels(),
		Denied:           st.denies.Snapshot(),
	}

	for _, r := range st.roles.Roles() {
		out.Roles = append(out.Roles, RoleState{
			Name:        r.Name,
			Permissions: r.Permissions,
			Mask:        r.Mask.Raw(),
		})
	}
	if st.lazy != nil {
		for _, name := range st.lazy.PendingNames() {
			perms, ok := st.lazy.PendingPermissions(name)
			if !ok {
				continue
			}
			sort.Strings(perms)
			out.Roles = append(out.Roles, RoleState{
				Name:        name,
				Permissions: perms,
				Pending:     true,
			})
		}
	}
	sort.Slice(out.Roles, func(i, j int) bool { return out.Roles[i].Name < out.Roles[j].Name })

	return out
}

// Deserialize replaces the engine's policy with s. The snapshot's mode and
// wildcard flags take precedence over the engine's Config. Evaluated roles
// must reproduce their recorded mask exactly, otherwise ErrInvalidState is
// returned and the engine is left unchanged. The decision cache is cleared
// on success.
func (e *Engine) Deserialize(s State) error {
	if s.Version > StateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidState, s.Version)
	}

	mode := ModeString
	if s.BitmaskMode {
		mode = ModeBitmask
	}
	next := e.freshState(mode, s.WildcardsEnabled)

	for _, p := range s.Permissions {
		var err error
		if mode == ModeBitmask {
			_, err = next.registry.RegisterBit(p.Name, p.Bit)
		} else {
			_, err = next.registry.Register(p.Name)
		}
		if err != nil {
			return fmt.Errorf("%w: permission %q: %w", ErrInvalidState, p.Name, err)
		}
	}

	for _, r := range s.Roles {
		if r.Pending && next.lazy != nil {
			if err := next.lazy.Add(r.Name, r.Permissions); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidState, err)
			}
			continue
		}
		if err := next.roles.CreateRole(r.Name, r.Permissions); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		if r.Pending || mode != ModeBitmask {
			continue
		}
		if got, _ := next.roles.Mask(r.Name); got.Raw() != r.Mask {
			return fmt.Errorf("%w: role %q mask %#x, recorded %#x", ErrInvalidState, r.Name, got.Raw(), r.Mask)
		}
	}

	for role, level := range s.Levels {
		if err := next.hierarchy.SetLevel(role, level); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
	}

	for userID, patterns := range s.Denied {
		if userID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidState, ErrEmptyUserID)
		}
		for _, p := range patterns {
			if err := next.denies.Deny(userID, p); err != nil {
				return fmt.Errorf("%w: deny %q: %w", ErrInvalidState, p, err)
			}
		}
	}

	e.swapMu.Lock()
	e.state.Store(next)
	e.swapMu.Unlock()

	e.ClearCache()
	return nil
}

// MarshalState serializes the engine policy as JSON.
func (e *Engine) MarshalState() ([]byte, error) {
	return json.Marshal(e.Serialize())
}

// UnmarshalState decodes JSON produced by MarshalState and applies it.
func (e *Engine) UnmarshalState(data []byte) error {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return e.Deserialize(s)
}
