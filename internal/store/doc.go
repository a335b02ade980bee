// Package store provides SQLite-backed durable storage for recorded entries.
//
// The store is an append-only table of entries keyed by entry ID. Each row
// carries the columns queries filter on (target, ts) next to the entry's
// JSON document, so criteria compile to plain parameterized SQL.
//
// # Critical Patterns
//
// Idempotent writes
//   - INSERT ... ON CONFLICT(id) DO NOTHING
//   - Persisting the same entry twice stores it once
//
// Deterministic query results
//   - All queries MUST include: ORDER BY ts ASC, id COLLATE BINARY ASC
//   - Entries recorded in the same nanosecond still come back in one order
//
// Content digests
//   - digest column holds ir.Digest of the entry (target and graphs only)
//   - Identical recordings of one call share a digest
//   - Persist skips an entry whose (target, digest) is already stored
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
