package goRBAC

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
)

// Builder assembles an [Engine] from incremental calls. It is convenience
// over [NewEngine] and [Engine.ApplyPolicy]; a Builder can be built once.
type Builder struct {
	config Config
	policy Policy

	permissions []string
	permBits    map[string]int
	roles       map[string][]string
	levels      map[string]int

	auditSinks []AuditSink
	logger     logr.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithPolicy adds a policy document. Its options are applied on top of the
// configuration at Build time; permissions and roles are registered before
// those added with the other With methods.
func (b *Builder) WithPolicy(p Policy) *Builder {
	b.policy.merge(p)
	return b
}

// WithPermissions adds permissions with auto-assigned bits.
func (b *Builder) WithPermissions(perms ...string) *Builder {
	b.permissions = append(b.permissions, perms...)
	return b
}

// WithPermissionBits adds permissions pinned to explicit bit indexes.
func (b *Builder) WithPermissionBits(bits map[string]int) *Builder {
	if b.permBits == nil {
		b.permBits = make(map[string]int, len(bits))
	}
	for name, bit := range bits {
		b.permBits[name] = bit
	}
	return b
}

// WithRoles adds roles. A later definition of the same role replaces the
// earlier one.
func (b *Builder) WithRoles(roles map[string][]string) *Builder {
	if b.roles == nil {
		b.roles = make(map[string][]string, len(roles))
	}
	for name, perms := range roles {
		b.roles[name] = perms
	}
	return b
}

// WithRoleLevels sets hierarchy levels.
func (b *Builder) WithRoleLevels(levels map[string]int) *Builder {
	if b.levels == nil {
		b.levels = make(map[string]int, len(levels))
	}
	for name, level := range levels {
		b.levels[name] = level
	}
	return b
}

// WithAuditSink registers one or more audit sinks.
func (b *Builder) WithAuditSink(sinks ...AuditSink) *Builder {
	b.auditSinks = append(b.auditSinks, sinks...)
	return b
}

// WithLogger sets the diagnostic logger.
func (b *Builder) WithLogger(logger logr.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithStrictMode toggles strict usage-error reporting.
func (b *Builder) WithStrictMode(strict bool) *Builder {
	b.config.StrictMode = strict
	return b
}

// WithLazyRoles toggles lazy role materialization.
func (b *Builder) WithLazyRoles(enabled bool) *Builder {
	b.config.LazyRoles.Enabled = enabled
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the check latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and creates the engine. Explicit bits
// are registered before auto-assigned permissions so they cannot be taken.
// Role iteration is in name order, which keeps auto-assigned bits stable
// across runs.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg, err := b.policy.Options.Apply(b.config)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(b.logger), WithAuditSinks(b.auditSinks...)}
	if b.now != nil {
		opts = append(opts, WithClock(b.now))
	}
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if err := b.populate(engine); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}

func (b *Builder) populate(engine *Engine) error {
	policy := b.policy

	for _, name := range sortedKeys(b.permBits) {
		bit := b.permBits[name]
		policy.Permissions = append(policy.Permissions, PermissionDef{Name: name, Bit: &bit})
	}
	for _, name := range b.permissions {
		policy.Permissions = append(policy.Permissions, PermissionDef{Name: name})
	}
	for _, name := range sortedKeys(b.roles) {
		policy.Roles = append(policy.Roles, RoleDef{Name: name, Permissions: b.roles[name]})
	}

	if err := engine.ApplyPolicy(policy); err != nil {
		return err
	}

	for _, name := range sortedKeys(b.levels) {
		if err := engine.SetRoleLevel(name, b.levels[name]); err != nil {
			return fmt.Errorf("role level %q: %w", name, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
