// Package journal records committed reconciliations in SQLite so the
// history of a compact store can be inspected after update documents have
// been consumed.
//
// Each commit row carries the counts of a reconciliation report and the
// hash of the store it produced; commit_entries keeps every insert and
// update with the prior and new extra fields as canonical JSON.
//
// # Ordering
//
// Commits are ordered by seq, a logical counter assigned at write time.
// committed_at is informational only. Queries order by seq and break ties
// with id COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
