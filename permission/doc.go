// Package permission provides the in-memory building blocks of goRBAC
// authorization: the permission registry, the 31-bit [Mask32], wildcard
// matching, the role store, the role hierarchy, the per-user deny ledger,
// and lazy role materialization.
//
// # Bitmask mode
//
// In [ModeBitmask] every registered permission owns one bit of a 32-bit
// mask. Only bits 0 through 30 are usable: the sign bit stays clear so masks
// remain non-negative when they cross into hosts that treat them as signed
// 32-bit integers. Registering a 32nd permission fails with
// [ErrCapacityExceeded]. [ModeString] has no capacity limit and keeps plain
// permission-name sets.
//
// # Wildcards
//
// Permission names are ':'-separated segments. A '*' segment in a pattern
// matches any single segment; a trailing '*' also matches any number of
// further segments, so "admin:*" matches "admin:users:delete". See [Match].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goRBAC, jwt, or middleware.
//   - Reassign a bit once it has been handed out.
package permission
