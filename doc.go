// Package goRBAC provides a low-latency role-based access-control engine:
// permission and role registries, 31-bit bitmask and wildcard matching, a
// role hierarchy, per-user explicit denies, lazy role materialization, a
// decision cache with expiry, and an audit event pipeline.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after construction through
// [Builder.Build] or [NewEngine].
//
// # Evaluation order
//
// Every check walks a fixed sequence and stops at the first terminal stage:
//
//  1. decision cache
//  2. deny ledger (deny always outranks every allow path)
//  3. the user's direct permissions, exact or wildcard
//  4. the user's direct permission mask (bitmask mode)
//  5. the user's roles, materializing lazy roles on first use
//  6. default deny
//
// Results of stages 2 to 6 are cached. Mutating roles, permissions or denies
// does not invalidate cached decisions; callers pair mutations with
// [Engine.InvalidateUserCache], [Engine.InvalidatePermissionCache] or
// [Engine.ClearCache].
//
// # Architecture boundaries
//
// goRBAC is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Data structures live in the permission sub-package, the cache
// under internal/. Integrations (auditstream, jwt, middleware, metric
// exporters) are separate packages that depend on goRBAC, never the reverse.
//
// # What this package must NOT do
//
//   - Perform I/O on the check path. Audit sinks that do I/O are wrapped in
//     a [BufferedSink] when Config.Audit.BufferSize is set.
//   - Let an audit sink failure change or delay a decision.
//   - Keep process-wide state; every Engine is independent.
package goRBAC
