// Package store provides the SQLite-backed deploy journal.
//
// Every upload run is recorded with its parameters, final status, and the
// ordered list of per-artifact outcomes (application, scenario, rule, order).
// The journal is an audit trail only; reconciliation never reads it.
//
// # Ordering
//
//   - Runs carry a seq assigned at BeginRun; listings order by seq DESC.
//   - Outcomes carry a seq within their run; listings order by seq ASC.
//   - Timestamps come from an injectable clock and are informational.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
