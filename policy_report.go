package goRBAC

import "time"

// PolicyReport summarizes an engine's configuration and loaded policy.
type PolicyReport struct {
	Mode              string
	WildcardsEnabled  bool
	StrictMode        bool
	Permissions       int
	RemainingCapacity int
	Roles             int
	PendingRoles      int
	RankedRoles       int
	UsersWithDenies   int
	CacheEnabled      bool
	CacheTTL          time.Duration
	CacheStats        CacheStats
	AuditEnabled      bool
	AuditBuffered     bool
	MetricsEnabled    bool
	LatencyHistograms bool
	LintWarnings      []string
}

func (e *Engine) PolicyReport() PolicyReport {
	if e == nil {
		return PolicyReport{}
	}

	st := e.state.Load()
	lazy := e.GetLazyRoleStats()
	cfg := e.config

	return PolicyReport{
		Mode:              st.mode.String(),
		WildcardsEnabled:  st.wildcards,
		StrictMode:        cfg.StrictMode,
		Permissions:       st.registry.Count(),
		RemainingCapacity: st.registry.Remaining(),
		Roles:             lazy.Total,
		PendingRoles:      lazy.Pending,
		RankedRoles:       len(st.hierarchy.Levels()),
		UsersWithDenies:   len(st.denies.Snapshot()),
		CacheEnabled:      e.cache != nil,
		CacheTTL:          cfg.Cache.TTL,
		CacheStats:        e.GetCacheStats(),
		AuditEnabled:      e.audit != nil,
		AuditBuffered:     e.audit != nil && e.audit.buffered != nil,
		MetricsEnabled:    e.metrics.Enabled(),
		LatencyHistograms: e.metrics.LatencyEnabled(),
		LintWarnings:      cfg.Lint().Codes(),
	}
}
