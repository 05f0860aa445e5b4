// Package store provides the SQLite-backed run ledger.
//
// Every simulator launch made through a Recorder leaves one row in the runs
// table: the directory, the canonical JSON of the parameters it received,
// their domain-separated hash, and the final status. The ledger is
// append-only apart from the running -> succeeded/failed transition.
//
// # Ordering
//
//   - seq INTEGER is the logical clock; timestamps are informational only
//   - listings use ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: concurrent readers while a run is being recorded
//   - synchronous=NORMAL
//   - busy_timeout=5000: scheduler jobs in separate processes share one file
//   - foreign_keys=ON
//
// Parameter hashes come from ir.ParamSetHash (RFC 8785 canonical JSON and
// SHA-256 with domain separation).
package store
