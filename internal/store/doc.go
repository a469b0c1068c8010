// Package store persists the mirrored archive in SQLite: messages, their
// registered attachments, per-message tags, and process meta keys.
//
// Every operation opens its own short-lived transaction; no connection is
// held across network I/O, so concurrent download completions serialize at
// the transaction boundary. The derived per-message completion flag is
// recomputed inside the same transaction as any write that can change it.
//
// The store is single-process by contract. Open takes a flock on a lock
// file beside the database and refuses to start when another instance is
// running. Schema changes bump schemaVersion in schema.go; mismatched
// databases are rejected rather than migrated.
package store
