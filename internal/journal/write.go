package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record writes a commit with its sources and entries in one transaction.
// An empty ID gets a UUIDv7; Seq is always assigned as the next value.
// The stored commit is returned.
func (j *Journal) Record(ctx context.Context, c Commit) (Commit, error) {
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}
	if c.CommittedAt.IsZero() {
		c.CommittedAt = time.Now().UTC()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Commit{}, fmt.Errorf("record commit: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM commits`).Scan(&last); err != nil {
		return Commit{}, fmt.Errorf("record commit: next seq: %w", err)
	}
	c.Seq = last.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commits
		(id, seq, service, store_path, store_hash, inserted, updated, unchanged, orphans, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Seq,
		c.Service,
		c.StorePath,
		c.StoreHash,
		c.Inserted,
		c.Updated,
		c.Unchanged,
		c.Orphans,
		c.CommittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Commit{}, fmt.Errorf("record commit: %w", err)
	}

	for i, path := range c.Sources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commit_sources (commit_id, position, path) VALUES (?, ?, ?)
		`, c.ID, i, path); err != nil {
			return Commit{}, fmt.Errorf("record commit source: %w", err)
		}
	}

	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Action != ActionInsert && e.Action != ActionUpdate {
			return Commit{}, fmt.Errorf("record commit entry %s: unknown action %q", e.Identifier, e.Action)
		}
		prior, err := marshalNullableObject(e.Prior)
		if err != nil {
			return Commit{}, fmt.Errorf("record commit entry %s: %w", e.Identifier, err)
		}
		value, err := marshalObject(e.Value)
		if err != nil {
			return Commit{}, fmt.Errorf("record commit entry %s: %w", e.Identifier, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commit_entries (commit_id, identifier, action, prior, value, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, e.Identifier, string(e.Action), prior, value, e.Source); err != nil {
			return Commit{}, fmt.Errorf("record commit entry %s: %w", e.Identifier, err)
		}
		e.CommitID = c.ID
		e.Seq = c.Seq
	}

	if err := tx.Commit(); err != nil {
		return Commit{}, fmt.Errorf("record commit: %w", err)
	}
	return c, nil
}

// errNotFound is wrapped by lookups that match nothing.
var errNotFound = errors.New("not found")

// IsNotFound reports whether err came from a lookup that matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}
