// Package internal holds helpers private to goRBAC.
//
// # Sub-packages
//
//   - cache: TTL and LRU bounded decision cache with per-user and
//     per-permission invalidation indices
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRBAC API.
package internal
