package internaldefs

import (
	goRBAC "github.com/MrEthical07/goRBAC"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goRBAC.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goRBAC.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goRBAC.MetricCheckAllowed, Name: "gorbac_check_allowed_total", Help: "Permission checks that allowed access."},
	{ID: goRBAC.MetricCheckDenied, Name: "gorbac_check_denied_total", Help: "Permission checks that denied access."},
	{ID: goRBAC.MetricExplicitDeny, Name: "gorbac_explicit_deny_total", Help: "Denials produced by per-user deny entries."},
	{ID: goRBAC.MetricCacheHit, Name: "gorbac_cache_hit_total", Help: "Checks answered from the decision cache."},
	{ID: goRBAC.MetricCacheMiss, Name: "gorbac_cache_miss_total", Help: "Checks that ran a full evaluation."},
	{ID: goRBAC.MetricLazyRoleResolved, Name: "gorbac_lazy_role_resolved_total", Help: "Lazy roles materialized on first use."},
	{ID: goRBAC.MetricUsageError, Name: "gorbac_usage_error_total", Help: "Checks that referenced an unknown role or malformed permission."},
	{ID: goRBAC.MetricAuditSinkFailure, Name: "gorbac_audit_sink_failure_total", Help: "Audit sink errors and recovered panics."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRBAC.MetricCheckLatency, Name: "gorbac_check_latency_seconds", Help: "Latency of uncached permission evaluations."},
}

// AuditDroppedName and AuditDroppedHelp describe the audit drop counter,
// which is read from the engine separately from the snapshot.
const (
	AuditDroppedName = "gorbac_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to buffer backpressure."
)

// Cache gauges, read from engines that expose cache statistics.
const (
	CacheEntriesName   = "gorbac_cache_entries"
	CacheEntriesHelp   = "Decisions currently held in the cache."
	CacheEvictionsName = "gorbac_cache_evictions_total"
	CacheEvictionsHelp = "Cached decisions evicted by the size bound."
)

// BucketLabel is the attribute or label key carrying a bucket bound.
const BucketLabel = "le"

// HistogramBucketCount is the number of latency buckets including +Inf.
const HistogramBucketCount = 8

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// bucket is +Inf and has no entry.
var HistogramUpperBounds = []float64{
	0.000001,
	0.000005,
	0.00001,
	0.00005,
	0.0001,
	0.0005,
	0.001,
}

// HistogramBoundSuffix names each bucket for exporters that flatten
// histograms into gauges.
var HistogramBoundSuffix = []string{
	"1us",
	"5us",
	"10us",
	"50us",
	"100us",
	"500us",
	"1ms",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling or
// truncating as needed.
func NormalizeBuckets(raw []uint64) [HistogramBucketCount]uint64 {
	var out [HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [HistogramBucketCount]uint64) [HistogramBucketCount]uint64 {
	var out [HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
