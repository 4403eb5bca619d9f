// Package prometheus exposes goRBAC engine metrics as a client_golang
// Collector.
//
// [NewPrometheusExporter] wraps a [goRBAC.Engine]. Register the exporter
// with any prometheus.Registerer, or mount [PrometheusExporter.Handler]
// which serves it from a private registry. Counters are named
// gorbac_*_total and the latency histogram is gorbac_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
