// Package stores provides the SQLite-backed persistence layer: approval
// policies survive restarts, and every batch run is recorded together with
// its per-operation outcomes for later inspection.
//
// The schema is managed with embedded golang-migrate migrations and the
// database runs in WAL mode with foreign keys enabled.
package stores
