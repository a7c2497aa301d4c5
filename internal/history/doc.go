// Package history journals processing runs in SQLite.
//
// Each dispatched batch becomes a run row plus one row per disc. The journal
// is for operators reviewing what the daemon did; the polling loop never
// reads it back, so deduplication stays purely in memory.
//
// Schema changes bump schemaVersion in schema.go; users delete history.db to
// adopt the new schema.
package history
