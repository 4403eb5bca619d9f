// Package auditstream appends goRBAC audit events to a Redis stream.
//
// [Sink] implements goRBAC.AuditSink and goRBAC.AuditBatchSink. Behind a
// buffered audit configuration the engine hands it whole batches, which
// are written with one pipelined round trip of XADD commands. The stream
// is trimmed approximately to MaxLen entries on every append.
//
// # What this package must NOT do
//
//   - Make or influence authorization decisions.
//   - Retry failed writes. Errors are returned to the engine, which logs them.
package auditstream
