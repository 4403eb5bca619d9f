package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goRBAC "github.com/MrEthical07/goRBAC"
	"github.com/MrEthical07/goRBAC/metrics/export/internaldefs"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goRBAC.MetricsSnapshot
	AuditDropped() uint64
}

// cacheSource is implemented by *goRBAC.Engine. Sources without it get no
// cache instruments.
type cacheSource interface {
	GetCacheStats() goRBAC.CacheStats
}

type counterInstrument struct {
	id         goRBAC.MetricID
	instrument metric.Int64ObservableCounter
}

// latencyInstrument reports one histogram as a cumulative bucket gauge keyed
// by the "le" attribute, plus a sample count.
type latencyInstrument struct {
	id      goRBAC.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics through observable instruments
// read in a single callback.
type OTelExporter struct {
	source       metricsSource
	cache        cacheSource
	registration metric.Registration

	counters     []counterInstrument
	latencies    []latencyInstrument
	auditDropped metric.Int64ObservableCounter
	cacheEntries metric.Int64ObservableGauge
	evictions    metric.Int64ObservableCounter
}

// bucketBounds carries one precomputed attribute option per bucket.
var bucketBounds = func() [internaldefs.HistogramBucketCount]metric.ObserveOption {
	var out [internaldefs.HistogramBucketCount]metric.ObserveOption
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		out[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String(internaldefs.BucketLabel, suffix)))
	}
	return out
}()

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goRBAC.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments reading from source. Cache
// instruments are added when source also reports cache statistics.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	e.cache, _ = source.(cacheSource)

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyInstrument{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, e.auditDropped)

	if e.cache != nil {
		e.cacheEntries, err = meter.Int64ObservableGauge(internaldefs.CacheEntriesName,
			metric.WithDescription(internaldefs.CacheEntriesHelp))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", internaldefs.CacheEntriesName, err)
		}
		e.evictions, err = meter.Int64ObservableCounter(internaldefs.CacheEvictionsName,
			metric.WithDescription(internaldefs.CacheEvictionsHelp))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", internaldefs.CacheEvictionsName, err)
		}
		observables = append(observables, e.cacheEntries, e.evictions)
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, n := range cumulative {
			o.ObserveInt64(l.buckets, int64(n), bucketBounds[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.cache != nil {
		stats := e.cache.GetCacheStats()
		o.ObserveInt64(e.cacheEntries, int64(stats.Size))
		o.ObserveInt64(e.evictions, int64(stats.Evictions))
	}
	return nil
}

// Close unregisters the callback. Instruments stay registered with the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
