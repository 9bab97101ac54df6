// Package repositories implements SQLite persistence for the operation journal.
//
// Key Implementations:
//   - [JournalRepository] : Append-only record of uploads, renames, deletes and mapping changes
//
// Sequence numbers provide stable, human-readable ordering (e.g., journal entry #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
