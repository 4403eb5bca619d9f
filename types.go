package goRBAC

import (
	"github.com/MrEthical07/goRBAC/internal/cache"
	"github.com/MrEthical07/goRBAC/permission"
)

// User is the caller-supplied principal of a check. The engine only reads
// it; all mutable per-user state (denies, cache entries) lives in the engine
// and is keyed by ID.
type User struct {
	ID string `json:"id"`
	// Roles are role names resolved against the engine's role store.
	Roles []string `json:"roles,omitempty"`
	// Permissions are direct grants; wildcard patterns are allowed.
	Permissions []string `json:"permissions,omitempty"`
	// PermissionMask holds direct grants as bits (bitmask mode only).
	PermissionMask uint32 `json:"permission_mask,omitempty"`
	// Extensions is carried for host interop and never read by the engine.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// AuthorizationResult is the structured outcome of [Engine.Authorize].
type AuthorizationResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	// Cached is true when the decision came from the permission cache.
	Cached bool `json:"cached,omitempty"`
	// Err is set in strict mode when the check itself was invalid (unknown
	// role, malformed permission). Allowed is always false when Err is set.
	Err error `json:"-"`
}

// Decision reasons.
const (
	ReasonCached              = "cached decision"
	ReasonExplicitlyDenied    = "explicitly denied"
	ReasonDirectPermission    = "granted by direct permission"
	ReasonDirectMask          = "granted by permission mask"
	ReasonRole                = "granted by role"
	ReasonNoGrant             = "no granting role or permission"
	ReasonMalformedPermission = "malformed permission"
	ReasonUnknownRole         = "unknown role"
)

// CacheStats reports permission cache counters.
type CacheStats = cache.Stats

// LazyRoleStats reports lazy role resolution progress.
type LazyRoleStats = permission.LazyStats

// Mode re-exports the registry representation mode.
type Mode = permission.Mode

const (
	// ModeBitmask stores permissions as bits of a 31-bit mask.
	ModeBitmask = permission.ModeBitmask
	// ModeString stores permissions as plain name sets.
	ModeString = permission.ModeString
)
