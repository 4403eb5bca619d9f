package goRBAC

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goRBAC/permission"
)

// HasPermission reports whether user may perform perm. Usage errors and
// denies are indistinguishable here; use [Engine.Authorize] to tell them
// apart.
func (e *Engine) HasPermission(user User, perm string) bool {
	return e.check(context.Background(), AuditTypePermissionCheck, user, perm).Allowed
}

// HasPermissionWithContext is HasPermission with audit metadata taken from ctx.
func (e *Engine) HasPermissionWithContext(ctx context.Context, user User, perm string) bool {
	return e.check(ctx, AuditTypePermissionCheck, user, perm).Allowed
}

// Authorize runs the same evaluation as HasPermission and returns the
// structured result.
func (e *Engine) Authorize(user User, perm string) AuthorizationResult {
	return e.check(context.Background(), AuditTypeAuthorization, user, perm)
}

// AuthorizeWithContext is Authorize with audit metadata taken from ctx, see
// [WithAuditMetadata].
func (e *Engine) AuthorizeWithContext(ctx context.Context, user User, perm string) AuthorizationResult {
	return e.check(ctx, AuditTypeAuthorization, user, perm)
}

// HasAnyPermission reports whether any of perms is allowed. It is false for
// an empty list. Every permission up to the first allow is checked and
// audited individually.
func (e *Engine) HasAnyPermission(user User, perms []string) bool {
	for _, p := range perms {
		if e.HasPermission(user, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of perms is allowed. It is true
// for an empty list.
func (e *Engine) HasAllPermissions(user User, perms []string) bool {
	for _, p := range perms {
		if !e.HasPermission(user, p) {
			return false
		}
	}
	return true
}

func (e *Engine) check(ctx context.Context, eventType string, user User, perm string) AuthorizationResult {
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := e.evaluate(user, perm)

	if res.Allowed {
		e.metrics.Inc(MetricCheckAllowed)
	} else {
		e.metrics.Inc(MetricCheckDenied)
	}
	if !start.IsZero() && !res.Cached {
		e.metrics.Observe(MetricCheckLatency, time.Since(start))
	}

	e.audit.emit(ctx, eventType, user.ID, perm, res)
	return res
}

// evaluate is the decision state machine: cache, deny ledger, direct
// permissions, direct mask, roles, default deny. Each stage short-circuits.
func (e *Engine) evaluate(user User, perm string) AuthorizationResult {
	if err := permission.ValidateName(perm); err != nil {
		return e.usageError(fmt.Errorf("%w: %q", ErrMalformedPermission, perm), ReasonMalformedPermission)
	}

	if e.cache != nil {
		if allowed, ok := e.cache.Get(user.ID, perm); ok {
			e.metrics.Inc(MetricCacheHit)
			return AuthorizationResult{Allowed: allowed, Reason: ReasonCached, Cached: true}
		}
		e.metrics.Inc(MetricCacheMiss)
	}

	st := e.state.Load()

	if st.denies.IsDenied(user.ID, perm) {
		e.metrics.Inc(MetricExplicitDeny)
		return e.remember(user.ID, perm, AuthorizationResult{Reason: ReasonExplicitlyDenied})
	}

	for _, p := range user.Permissions {
		if p == perm || (st.wildcards && permission.Match(perm, p)) {
			return e.remember(user.ID, perm, AuthorizationResult{Allowed: true, Reason: ReasonDirectPermission})
		}
	}

	if st.mode == ModeBitmask && user.PermissionMask != 0 {
		if bit, ok := st.registry.Bit(perm); ok && permission.Mask32(user.PermissionMask).Has(bit) {
			return e.remember(user.ID, perm, AuthorizationResult{Allowed: true, Reason: ReasonDirectMask})
		}
	}

	for _, role := range user.Roles {
		if err := st.resolve(role); err != nil {
			if e.config.StrictMode {
				return e.usageError(err, ReasonUnknownRole)
			}
			e.metrics.Inc(MetricUsageError)
			e.logger.V(1).Info("skipping unresolvable role", "user", user.ID, "role", role, "error", err.Error())
			continue
		}

		found, allowed := st.roles.Allows(role, perm)
		if !found {
			if e.config.StrictMode {
				return e.usageError(fmt.Errorf("%w: %s", ErrUnknownRole, role), ReasonUnknownRole)
			}
			e.metrics.Inc(MetricUsageError)
			e.logger.V(1).Info("skipping unknown role", "user", user.ID, "role", role)
			continue
		}
		if allowed {
			return e.remember(user.ID, perm, AuthorizationResult{Allowed: true, Reason: ReasonRole})
		}
	}

	return e.remember(user.ID, perm, AuthorizationResult{Reason: ReasonNoGrant})
}

func (e *Engine) remember(userID, perm string, res AuthorizationResult) AuthorizationResult {
	if e.cache != nil {
		e.cache.Put(userID, perm, res.Allowed)
	}
	return res
}

// usageError builds the uncached deny for an invalid check. In permissive
// mode only the reason survives.
func (e *Engine) usageError(err error, reason string) AuthorizationResult {
	e.metrics.Inc(MetricUsageError)
	res := AuthorizationResult{Reason: reason}
	if e.config.StrictMode {
		res.Err = err
	}
	return res
}
