package journal

import (
	"time"

	"github.com/roach88/intercase/internal/ir"
)

// Action is the kind of change an entry records.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
)

// Commit is one recorded reconciliation.
type Commit struct {
	// ID is a UUIDv7 assigned by Record when empty.
	ID string

	// Seq is the logical position in the journal, assigned by Record.
	Seq int64

	Service   string
	StorePath string

	// StoreHash is the SHA-256 of the rendered store after the commit.
	StoreHash string

	Inserted  int
	Updated   int
	Unchanged int
	Orphans   int

	CommittedAt time.Time

	// Sources are the consumed update documents, in reconcile order.
	Sources []string

	Entries []Entry
}

// Entry is one insert or update applied by a commit.
type Entry struct {
	CommitID   string
	Seq        int64
	Identifier string
	Action     Action

	// Prior is nil for inserts.
	Prior ir.IRObject
	Value ir.IRObject

	// Source is the update document location the value came from.
	Source string
}
