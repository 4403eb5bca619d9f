package goRBAC

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goRBAC/internal/cache"
	"github.com/MrEthical07/goRBAC/permission"
)

// policyState groups everything Deserialize replaces as a unit. Checks load
// it once per call, so a concurrent Deserialize is observed either entirely
// or not at all.
type policyState struct {
	mode      Mode
	wildcards bool

	registry  *permission.Registry
	roles     *permission.RoleStore
	hierarchy *permission.Hierarchy
	denies    *permission.DenyLedger
	lazy      *permission.LazyRoles
}

func newPolicyState(mode Mode, wildcards, lazy bool, onResolve func(string)) *policyState {
	registry := permission.NewRegistry(mode)
	roles := permission.NewRoleStore(registry, wildcards)

	st := &policyState{
		mode:      mode,
		wildcards: wildcards,
		registry:  registry,
		roles:     roles,
		hierarchy: permission.NewHierarchy(),
		denies:    permission.NewDenyLedger(wildcards),
	}
	if lazy {
		st.lazy = permission.NewLazyRoles(roles, onResolve)
	}
	return st
}

// resolve materializes roleName if it is a pending lazy role.
func (st *policyState) resolve(roleName string) error {
	if st.lazy == nil {
		return nil
	}
	_, err := st.lazy.Resolve(roleName)
	return err
}

func (st *policyState) roleKnown(roleName string) bool {
	if st.roles.Exists(roleName) {
		return true
	}
	return st.lazy != nil && st.lazy.IsPending(roleName)
}

// Engine evaluates permission checks against registered permissions, roles,
// hierarchy levels and per-user denies, caches decisions and emits one audit
// event per decision.
//
// An Engine is safe for concurrent use. Checks never block on I/O.
type Engine struct {
	config  Config
	logger  logr.Logger
	now     func() time.Time
	sinks   []AuditSink
	metrics *Metrics
	cache   *cache.Cache
	audit   *auditEmitter

	state atomic.Pointer[policyState]
	// swapMu orders mutations against Deserialize, which replaces state.
	swapMu sync.RWMutex

	closeOnce sync.Once
	closeErr  error
}

// Option customizes [NewEngine].
type Option func(*Engine)

// WithLogger sets the diagnostic logger. The default discards output.
func WithLogger(logger logr.Logger) Option {
	return func(e *Engine) {
		e.logger = resolveLogger(logger)
	}
}

// WithClock overrides the time source used for audit timestamps and cache
// expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAuditSinks registers sinks receiving every decision.
func WithAuditSinks(sinks ...AuditSink) Option {
	return func(e *Engine) {
		for _, s := range sinks {
			if s != nil {
				e.sinks = append(e.sinks, s)
			}
		}
	}
}

func resolveLogger(logger logr.Logger) logr.Logger {
	if logger.GetSink() == nil {
		return logr.Discard()
	}
	return logger
}

// NewEngine creates an empty engine. Permissions and roles are added with
// the Register and Create methods or with [Engine.ApplyPolicy].
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg,
		logger: logr.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.metrics = NewMetrics(cfg.Metrics)
	if cfg.Cache.Enabled {
		e.cache = cache.New(cache.Options{
			TTL:             cfg.Cache.TTL,
			MaxSize:         cfg.Cache.MaxSize,
			CleanupInterval: cfg.Cache.CleanupInterval,
			Now:             e.now,
			OnCleanup: func(n int) {
				e.logger.V(1).Info("permission cache purged expired entries", "count", n)
			},
		})
	}
	e.audit = newAuditEmitter(cfg.Audit, e.sinks, e.logger, e.metrics, e.now)
	e.state.Store(e.freshState(cfg.Mode, cfg.EnableWildcards))

	return e, nil
}

func (e *Engine) freshState(mode Mode, wildcards bool) *policyState {
	return newPolicyState(mode, wildcards, e.config.LazyRoles.Enabled, e.roleResolved)
}

func (e *Engine) roleResolved(role string) {
	e.metrics.Inc(MetricLazyRoleResolved)
	e.logger.V(1).Info("lazy role resolved", "role", role)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Mode returns the active permission representation.
func (e *Engine) Mode() Mode {
	return e.state.Load().mode
}

// ApplyPolicy registers the policy's permissions (explicit bits first), then
// its roles and levels. Roles are recorded as pending when lazy roles are
// enabled. Policy options are not applied here; see [PolicyOptions.Apply].
func (e *Engine) ApplyPolicy(p Policy) error {
	for _, def := range p.Permissions {
		if def.Bit == nil {
			continue
		}
		if _, err := e.RegisterPermissionBit(def.Name, *def.Bit); err != nil {
			return fmt.Errorf("permission %q: %w", def.Name, err)
		}
	}
	for _, def := range p.Permissions {
		if def.Bit != nil {
			continue
		}
		if _, err := e.RegisterPermission(def.Name); err != nil {
			return fmt.Errorf("permission %q: %w", def.Name, err)
		}
	}

	for _, def := range p.Roles {
		var err error
		if e.config.LazyRoles.Enabled {
			err = e.CreateLazyRole(def.Name, def.Permissions)
		} else {
			err = e.CreateRole(def.Name, def.Permissions)
		}
		if err != nil {
			return err
		}
		if def.Level != nil {
			if err := e.SetRoleLevel(def.Name, *def.Level); err != nil {
				return err
			}
		}
	}
	return nil
}

// RegisterPermission registers name and returns its bit (bitmask mode) or
// [permission.NoBit] (string mode). Re-registering returns the existing bit.
func (e *Engine) RegisterPermission(name string) (int, error) {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	return e.state.Load().registry.Register(name)
}

// RegisterPermissionBit registers name at an explicit bit index 0..30.
func (e *Engine) RegisterPermissionBit(name string, bit int) (int, error) {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	return e.state.Load().registry.RegisterBit(name, bit)
}

// RegisterPermissions registers every name, or none of them on error.
func (e *Engine) RegisterPermissions(names ...string) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	return e.state.Load().registry.Ensure(names)
}

// PermissionBit returns the bit assigned to name.
func (e *Engine) PermissionBit(name string) (int, bool) {
	return e.state.Load().registry.Bit(name)
}

// Permissions lists registered permissions.
func (e *Engine) Permissions() []permission.Permission {
	return e.state.Load().registry.Permissions()
}

// RemainingCapacity returns the free bit count, or -1 in string mode.
func (e *Engine) RemainingCapacity() int {
	return e.state.Load().registry.Remaining()
}

// CreateRole creates or replaces a role. A pending lazy role of the same
// name is discarded.
func (e *Engine) CreateRole(name string, permissions []string) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	if st.lazy != nil {
		return st.lazy.Define(name, permissions)
	}
	return st.roles.CreateRole(name, permissions)
}

// CreateLazyRole records a role whose permissions are materialized on first
// use. Without lazy roles enabled it behaves like CreateRole. Permissions
// are validated up front so a bad policy still fails at load time.
func (e *Engine) CreateLazyRole(name string, permissions []string) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	if st.lazy == nil {
		return st.roles.CreateRole(name, permissions)
	}
	for _, p := range permissions {
		if err := permission.ValidatePattern(p); err != nil {
			return fmt.Errorf("role %q: %w: %q", name, err, p)
		}
	}
	st.roles.Delete(name)
	st.lazy.Forget(name)
	return st.lazy.Add(name, permissions)
}

// Grant adds permissions to an existing role.
func (e *Engine) Grant(role string, permissions ...string) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	if err := st.resolve(role); err != nil {
		return err
	}
	return st.roles.Grant(role, permissions)
}

// AddPermissionToRole grants a single permission.
func (e *Engine) AddPermissionToRole(role, perm string) error {
	return e.Grant(role, perm)
}

// Revoke removes the exact given permissions from a role.
func (e *Engine) Revoke(role string, permissions ...string) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	if err := st.resolve(role); err != nil {
		return err
	}
	return st.roles.Revoke(role, permissions)
}

// DeleteRole removes a role, its level and any pending definition. It
// reports whether anything was removed.
func (e *Engine) DeleteRole(role string) bool {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	existed := st.roleKnown(role)
	st.roles.Delete(role)
	if st.lazy != nil {
		st.lazy.Forget(role)
	}
	st.hierarchy.Remove(role)
	return existed
}

// RoleExists reports whether role is defined, evaluated or pending.
func (e *Engine) RoleExists(role string) bool {
	return e.state.Load().roleKnown(role)
}

// ListRoles returns every defined role name in sorted order.
func (e *Engine) ListRoles() []string {
	st := e.state.Load()
	names := st.roles.Names()
	if st.lazy != nil {
		names = append(names, st.lazy.PendingNames()...)
		sort.Strings(names)
	}
	return names
}

// GetRolePermissions returns a role's permissions, materializing it first
// if it is pending.
func (e *Engine) GetRolePermissions(role string) ([]string, error) {
	st := e.state.Load()
	if err := st.resolve(role); err != nil {
		return nil, err
	}
	r, ok := st.roles.Get(role)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return r.Permissions, nil
}

// SetRoleLevel sets the hierarchy level of a known role.
func (e *Engine) SetRoleLevel(role string, level int) error {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	st := e.state.Load()
	if !st.roleKnown(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return st.hierarchy.SetLevel(role, level)
}

// GetRoleLevel returns the role's level, or [permission.DefaultRoleLevel].
func (e *Engine) GetRoleLevel(role string) int {
	return e.state.Load().hierarchy.Level(role)
}

// CanActAsRole reports level(a) >= level(b).
func (e *Engine) CanActAsRole(a, b string) bool {
	return e.state.Load().hierarchy.CanActAs(a, b)
}

// UserCanActAs reports whether any of the user's roles can act as role.
// Roles the engine does not know are skipped and counted as usage errors,
// and an unknown target role is never reachable.
func (e *Engine) UserCanActAs(user User, role string) bool {
	st := e.state.Load()
	if !st.roleKnown(role) {
		e.metrics.Inc(MetricUsageError)
		return false
	}
	for _, r := range user.Roles {
		if !st.roleKnown(r) {
			e.metrics.Inc(MetricUsageError)
			e.logger.V(1).Info("skipping unknown role", "user", user.ID, "role", r)
			continue
		}
		if st.hierarchy.CanActAs(r, role) {
			return true
		}
	}
	return false
}

// HasRole reports whether role is among the user's assigned roles.
func (e *Engine) HasRole(user User, role string) bool {
	for _, r := range user.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DenyPermission records pattern as denied for userID. Cached decisions for
// the user are not invalidated.
func (e *Engine) DenyPermission(userID, pattern string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	return e.state.Load().denies.Deny(userID, pattern)
}

// AllowPermission removes exactly pattern from the user's denies and
// reports whether it was present.
func (e *Engine) AllowPermission(userID, pattern string) bool {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	return e.state.Load().denies.Allow(userID, pattern)
}

// GetDeniedPermissions returns the user's deny patterns.
func (e *Engine) GetDeniedPermissions(userID string) []string {
	return e.state.Load().denies.Denied(userID)
}

// ClearDeniedPermissions removes every deny of the user.
func (e *Engine) ClearDeniedPermissions(userID string) {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()
	e.state.Load().denies.Clear(userID)
}

// InvalidateUserCache drops every cached decision of userID.
func (e *Engine) InvalidateUserCache(userID string) int {
	if e.cache == nil {
		return 0
	}
	return e.cache.InvalidateUser(userID)
}

// InvalidatePermissionCache drops every cached decision for perm.
func (e *Engine) InvalidatePermissionCache(perm string) int {
	if e.cache == nil {
		return 0
	}
	return e.cache.InvalidatePermission(perm)
}

// ClearCache drops every cached decision.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// GetCacheStats returns cache counters. All zero when caching is disabled.
func (e *Engine) GetCacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// GetLazyRoleStats returns pending and evaluated counts.
func (e *Engine) GetLazyRoleStats() LazyRoleStats {
	st := e.state.Load()
	if st.lazy == nil {
		n := st.roles.Count()
		return LazyRoleStats{Evaluated: n, Total: n}
	}
	return st.lazy.Stats()
}

// IsRolePending reports whether role is defined but not yet materialized.
func (e *Engine) IsRolePending(role string) bool {
	st := e.state.Load()
	return st.lazy != nil && st.lazy.IsPending(role)
}

// EvaluateAllRoles materializes every pending role.
func (e *Engine) EvaluateAllRoles() error {
	st := e.state.Load()
	if st.lazy == nil {
		return nil
	}
	return st.lazy.EvaluateAll()
}

// GetUserPermissions returns the sorted union of the user's direct
// permissions, mask permissions and role permissions, minus exact denies.
// Wildcard patterns are returned verbatim.
func (e *Engine) GetUserPermissions(user User) []string {
	st := e.state.Load()
	set := make(map[string]struct{})
	for _, p := range user.Permissions {
		set[p] = struct{}{}
	}
	if st.mode == ModeBitmask && user.PermissionMask != 0 {
		for _, p := range st.registry.NamesOf(permission.Mask32(user.PermissionMask)) {
			set[p] = struct{}{}
		}
	}
	for _, role := range user.Roles {
		if err := st.resolve(role); err != nil {
			e.logger.Error(err, "lazy role resolution failed", "role", role)
			continue
		}
		if r, ok := st.roles.Get(role); ok {
			for _, p := range r.Permissions {
				set[p] = struct{}{}
			}
		}
	}
	for _, d := range st.denies.Denied(user.ID) {
		delete(set, d)
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ValidateUser reports every problem with user that a strict check would
// trip over: malformed direct permissions, unknown roles and mask bits that
// are invalid or unassigned.
func (e *Engine) ValidateUser(user User) error {
	st := e.state.Load()
	var errs []error

	if user.ID == "" {
		errs = append(errs, ErrEmptyUserID)
	}
	for _, p := range user.Permissions {
		if err := permission.ValidatePattern(p); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", err, p))
		}
	}
	for _, r := range user.Roles {
		if !st.roleKnown(r) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownRole, r))
		}
	}
	if user.PermissionMask != 0 {
		mask := permission.Mask32(user.PermissionMask)
		switch {
		case st.mode == ModeString:
			errs = append(errs, fmt.Errorf("%w: permission mask set in string mode", ErrInvalidBit))
		case !mask.Valid():
			errs = append(errs, fmt.Errorf("%w: sign bit set", ErrInvalidBit))
		default:
			for bit := 0; bit < permission.MaxBits; bit++ {
				if !mask.Has(bit) {
					continue
				}
				if _, ok := st.registry.Name(bit); !ok {
					errs = append(errs, fmt.Errorf("%w: bit %d", ErrPermissionNotRegistered, bit))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// FlushAudit delivers queued audit events and waits for delivery.
func (e *Engine) FlushAudit(ctx context.Context) error {
	return e.audit.flush(ctx)
}

// Close stops the cache janitor and shuts the audit pipeline down after a
// final flush. Checks keep working afterwards but are no longer audited.
// Close is idempotent.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		if e.cache != nil {
			e.cache.Stop()
		}
		e.closeErr = e.audit.close()
	})
	return e.closeErr
}

// AuditDropped returns the number of audit events dropped by the buffered
// pipeline because its queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}
