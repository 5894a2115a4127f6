// Package kvstore provides the durable key/value stores that back correlation
// cache persistence.
//
// Every store keeps records keyed by an opaque string together with a
// store-assigned write sequence. Load returns the records under a key prefix
// ordered by that sequence, so a cache replaying a namespace sees its entries
// in the order they were last written.
//
// Three backends are available:
//
//   - SQLiteStore: a WAL-mode SQLite database (default).
//   - FileStore: a human-readable JSON file guarded by a cross-process lock.
//   - MemoryStore: process-local, for tests and ephemeral runs.
//
// Schema changes to the SQLite backend bump schemaVersion; users delete the
// database to adopt the new schema.
package kvstore
