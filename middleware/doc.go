// Package middleware exposes net/http adapters that authenticate a bearer
// token into a goRBAC.User and gate handlers on goRBAC.Engine decisions.
//
// # Guards
//
//   - [Authenticate] parses the bearer token and stores the user in the request context.
//   - [RequirePermission], [RequireAnyPermission], [RequireAllPermissions] check permissions.
//   - [RequireRole] checks role assignment or hierarchy level.
//   - [Guard] is [Authenticate] followed by [RequirePermission].
//
// Missing or invalid tokens yield 401. A denied check yields 403. A usage
// error reported by a strict engine yields 500.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every allow or
// deny decision is delegated to the Engine. Requests are tagged with audit
// metadata (method, path, remote address) before the check so emitted audit
// events carry request context.
package middleware
