// Package diag defines the structured diagnostics and error taxonomy shared
// by the loaders, the reconciler and the CLI.
//
// Every conflict is reported as a Diagnostic{Kind, Identifier, Locations}
// rather than free text, so callers can aggregate or fail a build
// deterministically. Fatal conditions are returned as *Error, which wraps a
// Diagnostic.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a diagnostic.
type Kind string

const (
	// KindMalformedDocument indicates a document failed to parse or has the wrong shape. Fatal.
	KindMalformedDocument Kind = "MALFORMED_DOCUMENT"

	// KindDuplicateCase indicates an identical case was declared twice. Non-fatal; the first is kept.
	KindDuplicateCase Kind = "DUPLICATE_CASE"

	// KindDuplicateCaseConflict indicates one request declared with two different responses. Fatal.
	KindDuplicateCaseConflict Kind = "DUPLICATE_CASE_CONFLICT"

	// KindConflictingUpdates indicates two update documents augment the same case differently. Fatal.
	KindConflictingUpdates Kind = "CONFLICTING_UPDATES"

	// KindOrphanUpdate indicates an update entry matches no known case. Non-fatal.
	KindOrphanUpdate Kind = "ORPHAN_UPDATE"

	// KindAugmentationOverride indicates an update replaced a different stored value. Non-fatal.
	KindAugmentationOverride Kind = "AUGMENTATION_OVERRIDE"

	// KindStorageWriteFailure indicates an atomic save failed; the target is untouched. Fatal.
	KindStorageWriteFailure Kind = "STORAGE_WRITE_FAILURE"
)

// Fatal reports whether diagnostics of this kind abort the operation.
func (k Kind) Fatal() bool {
	switch k {
	case KindDuplicateCase, KindOrphanUpdate, KindAugmentationOverride:
		return false
	default:
		return true
	}
}

// Location identifies where an entry came from.
type Location struct {
	// Path is the file the entry was read from.
	Path string `json:"path"`

	// Document is the zero-based index of the YAML document within the file's stream.
	Document int `json:"document"`

	// Index is the zero-based position of the entry within its document.
	// -1 when the location refers to a whole file.
	Index int `json:"index"`

	// Line is the 1-based line of the entry, 0 if unknown.
	Line int `json:"line,omitempty"`
}

// FileLocation returns a Location referring to a whole file.
func FileLocation(path string) Location {
	return Location{Path: path, Index: -1}
}

func (l Location) String() string {
	if l.Index < 0 {
		return l.Path
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d (document %d, entry %d)", l.Path, l.Line, l.Document+1, l.Index+1)
	}
	return fmt.Sprintf("%s (document %d, entry %d)", l.Path, l.Document+1, l.Index+1)
}

// Diagnostic is a structured report of a detected condition.
type Diagnostic struct {
	Kind       Kind       `json:"kind"`
	Identifier string     `json:"identifier,omitempty"`
	Locations  []Location `json:"locations,omitempty"`
	Message    string     `json:"message,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.Message != "" {
		b.WriteString(": ")
		b.WriteString(d.Message)
	}
	if d.Identifier != "" {
		fmt.Fprintf(&b, " (id=%s)", d.Identifier)
	}
	for i, loc := range d.Locations {
		if i == 0 {
			b.WriteString(" at ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(loc.String())
	}
	return b.String()
}

// Error is a fatal diagnostic returned as an error.
type Error struct {
	Diagnostic
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Diagnostic.String(), e.Err)
	}
	return e.Diagnostic.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err if it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind returns true if err wraps an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AsDiagnostic extracts the Diagnostic carried by err.
func AsDiagnostic(err error) (Diagnostic, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Diagnostic, true
	}
	return Diagnostic{}, false
}

// Malformed creates a MALFORMED_DOCUMENT error.
func Malformed(loc Location, err error) *Error {
	return &Error{
		Diagnostic: Diagnostic{
			Kind:      KindMalformedDocument,
			Locations: []Location{loc},
			Message:   "malformed document",
		},
		Err: err,
	}
}

// Malformedf creates a MALFORMED_DOCUMENT error with a formatted message.
func Malformedf(loc Location, format string, args ...any) *Error {
	return Malformed(loc, fmt.Errorf(format, args...))
}

// NewDuplicateCaseConflict creates a DUPLICATE_CASE_CONFLICT error naming both locations.
func NewDuplicateCaseConflict(id string, first, second Location) *Error {
	return &Error{
		Diagnostic: Diagnostic{
			Kind:       KindDuplicateCaseConflict,
			Identifier: id,
			Locations:  []Location{first, second},
			Message:    "same request declared with different responses",
		},
	}
}

// NewConflictingUpdates creates a CONFLICTING_UPDATES error naming both sources.
func NewConflictingUpdates(id string, first, second Location) *Error {
	return &Error{
		Diagnostic: Diagnostic{
			Kind:       KindConflictingUpdates,
			Identifier: id,
			Locations:  []Location{first, second},
			Message:    "update documents augment the same case differently",
		},
	}
}

// NewStorageWriteFailure creates a STORAGE_WRITE_FAILURE error.
func NewStorageWriteFailure(path string, err error) *Error {
	return &Error{
		Diagnostic: Diagnostic{
			Kind:      KindStorageWriteFailure,
			Locations: []Location{FileLocation(path)},
			Message:   "atomic write failed, target left untouched",
		},
		Err: err,
	}
}
