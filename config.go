package goRBAC

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goRBAC/internal/cache"
)

// Config controls how an [Engine] represents and evaluates permissions.
//
// Config values are copied into the engine at construction and are not
// consulted again, so mutating a Config after Build has no effect.
type Config struct {
	Mode            Mode
	EnableWildcards bool
	// StrictMode surfaces usage errors (unknown role, malformed permission)
	// in AuthorizationResult.Err instead of folding them into a plain deny.
	StrictMode bool

	Cache     CacheConfig
	LazyRoles LazyRolesConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// CacheConfig controls the permission decision cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	// MaxSize bounds the entry count; zero selects the default.
	MaxSize int
	// CleanupInterval is the janitor period. A negative value disables the
	// janitor; expired entries are then only dropped when read.
	CleanupInterval time.Duration
}

// LazyRolesConfig controls deferred role materialization.
type LazyRolesConfig struct {
	Enabled bool
}

// AuditConfig controls the audit pipeline in front of registered sinks.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the batch size that triggers a flush. Zero delivers
	// events synchronously.
	BufferSize    int
	FlushInterval time.Duration
	// MaxPending bounds the queue between checks and the flush goroutine.
	MaxPending int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by [New] and [NewEngine]
// when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Mode:            ModeBitmask,
		EnableWildcards: true,
		StrictMode:      false,
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             cache.DefaultTTL,
			MaxSize:         cache.DefaultMaxSize,
			CleanupInterval: cache.DefaultCleanupInterval,
		},
		LazyRoles: LazyRolesConfig{
			Enabled: false,
		},
		Audit: AuditConfig{
			Enabled:       true,
			BufferSize:    0,
			FlushInterval: time.Second,
			MaxPending:    4096,
			DropIfFull:    true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if c.Mode != ModeBitmask && c.Mode != ModeString {
		return invalidConfig("unknown permission mode %d", c.Mode)
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return invalidConfig("Cache TTL must be > 0")
		}
		if c.Cache.MaxSize < 0 {
			return invalidConfig("Cache MaxSize must be >= 0")
		}
	}

	if c.Audit.BufferSize < 0 {
		return invalidConfig("Audit BufferSize must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize > 0 {
		if c.Audit.FlushInterval <= 0 {
			return invalidConfig("Audit FlushInterval must be > 0 when buffering")
		}
		if c.Audit.MaxPending < c.Audit.BufferSize {
			return invalidConfig("Audit MaxPending must be >= BufferSize")
		}
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics latency histograms require Metrics Enabled")
	}

	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// LintSeverity grades a configuration warning.
type LintSeverity uint8

const (
	// LintInfo marks a note that needs no action.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting likely to hurt correctness or performance.
	LintWarn
)

// String returns "info" or "warn".
func (s LintSeverity) String() string {
	if s == LintWarn {
		return "warn"
	}
	return "info"
}

// LintWarning is a valid but questionable configuration choice.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that validate but are likely mistakes. It assumes
// the config already passed Validate.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Cache.Enabled {
		add("cache_disabled", LintInfo, "every check runs the full evaluation")
	} else {
		if c.Cache.TTL > time.Hour {
			add("cache_ttl_long", LintWarn, "cached decisions outlive role changes unless callers invalidate")
		}
		if c.Cache.MaxSize > 1_000_000 {
			add("cache_large", LintWarn, "cache MaxSize above one million entries")
		}
		if c.Cache.CleanupInterval < 0 {
			add("cache_janitor_disabled", LintInfo, "expired entries are only dropped on read")
		}
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "authorization decisions are not audited")
	} else if c.Audit.BufferSize > 0 && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a full audit queue blocks authorization checks")
	}

	if c.Mode == ModeString && c.LazyRoles.Enabled {
		add("lazy_roles_string_mode", LintInfo, "lazy roles save little in string mode")
	}
	if !c.EnableWildcards {
		add("wildcards_disabled", LintInfo, "patterns containing '*' only match literally")
	}

	return ws
}
