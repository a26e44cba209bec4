package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// List returns the commits of service, newest first, without entries.
// An empty service lists every commit. limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, service string, limit int) ([]Commit, error) {
	query := `
		SELECT id, seq, service, store_path, store_hash, inserted, updated, unchanged, orphans, committed_at
		FROM commits
		WHERE (? = '' OR service = ?)
		ORDER BY seq DESC, id COLLATE BINARY DESC
	`
	args := []any{service, service}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	commits := []Commit{}
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}

// Get returns a commit with its sources and entries.
func (j *Journal) Get(ctx context.Context, id string) (*Commit, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, service, store_path, store_hash, inserted, updated, unchanged, orphans, committed_at
		FROM commits
		WHERE id = ?
	`, id)
	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commit %s: %w", id, errNotFound)
	}
	if err != nil {
		return nil, err
	}

	if c.Sources, err = j.readSources(ctx, id); err != nil {
		return nil, err
	}
	if c.Entries, err = j.readEntries(ctx, `WHERE e.commit_id = ?`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// History returns every recorded change of one identifier, oldest first.
func (j *Journal) History(ctx context.Context, identifier string) ([]Entry, error) {
	return j.readEntries(ctx, `WHERE e.identifier = ?`, identifier)
}

func (j *Journal) readSources(ctx context.Context, commitID string) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT path FROM commit_sources WHERE commit_id = ? ORDER BY position ASC
	`, commitID)
	if err != nil {
		return nil, fmt.Errorf("query commit sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan commit source: %w", err)
		}
		sources = append(sources, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit sources: %w", err)
	}
	return sources, nil
}

func (j *Journal) readEntries(ctx context.Context, where string, arg any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT e.commit_id, c.seq, e.identifier, e.action, e.prior, e.value, e.source
		FROM commit_entries e
		JOIN commits c ON c.id = e.commit_id
		`+where+`
		ORDER BY c.seq ASC, e.identifier COLLATE BINARY ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query commit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			action string
			prior  sql.NullString
			value  string
		)
		if err := rows.Scan(&e.CommitID, &e.Seq, &e.Identifier, &action, &prior, &value, &e.Source); err != nil {
			return nil, fmt.Errorf("scan commit entry: %w", err)
		}
		e.Action = Action(action)
		if e.Prior, err = unmarshalNullableObject(prior); err != nil {
			return nil, err
		}
		if e.Value, err = unmarshalObject(value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommit(s scanner) (Commit, error) {
	var (
		c           Commit
		committedAt string
	)
	err := s.Scan(&c.ID, &c.Seq, &c.Service, &c.StorePath, &c.StoreHash,
		&c.Inserted, &c.Updated, &c.Unchanged, &c.Orphans, &committedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Commit{}, err
		}
		return Commit{}, fmt.Errorf("scan commit: %w", err)
	}
	c.CommittedAt, err = time.Parse(time.RFC3339Nano, committedAt)
	if err != nil {
		return Commit{}, fmt.Errorf("parse committed_at: %w", err)
	}
	return c, nil
}
