package cases

import (
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

// Entry keys with a fixed meaning.
const (
	KeyRequest  = "request"
	KeyResponse = "response"
)

// Case is one request/response example.
type Case struct {
	// ID is the request identifier.
	ID string

	Request  ir.IRObject
	Response ir.IRObject

	// Fields is the full authored entry, request and response included.
	Fields ir.IRObject

	// Source is where the entry was read from.
	Source diag.Location
}

// Set is an ordered collection of cases with unique identifiers.
type Set struct {
	cases       []Case
	index       map[string]int
	diagnostics []diag.Diagnostic
	files       []string
	ignore      []string
}

func newSet(ignore []string) *Set {
	return &Set{index: make(map[string]int), ignore: ignore}
}

// Cases returns the cases in insertion order.
func (s *Set) Cases() []Case {
	out := make([]Case, len(s.cases))
	copy(out, s.cases)
	return out
}

// Len returns the number of cases.
func (s *Set) Len() int {
	return len(s.cases)
}

// Get returns the case with the given identifier.
func (s *Set) Get(id string) (Case, bool) {
	i, ok := s.index[id]
	if !ok {
		return Case{}, false
	}
	return s.cases[i], true
}

// Has reports whether a case with the given identifier exists.
func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns the identifiers as a lookup set.
func (s *Set) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.index))
	for id := range s.index {
		ids[id] = struct{}{}
	}
	return ids
}

// Diagnostics returns the non-fatal diagnostics recorded while loading.
func (s *Set) Diagnostics() []diag.Diagnostic {
	return s.diagnostics
}

// Files returns the documents read, main document first.
func (s *Set) Files() []string {
	return s.files
}

// add inserts c, enforcing identifier uniqueness.
func (s *Set) add(c Case) (dup bool, err error) {
	i, ok := s.index[c.ID]
	if !ok {
		s.index[c.ID] = len(s.cases)
		s.cases = append(s.cases, c)
		return false, nil
	}

	prior := s.cases[i]
	if !ir.Equal(s.significant(prior), s.significant(c)) {
		return false, diag.NewDuplicateCaseConflict(c.ID, prior.Source, c.Source)
	}
	s.diagnostics = append(s.diagnostics, diag.Diagnostic{
		Kind:       diag.KindDuplicateCase,
		Identifier: c.ID,
		Locations:  []diag.Location{prior.Source, c.Source},
		Message:    "identical case declared again, first kept",
	})
	return true, nil
}

// significant is the part of a case compared between duplicates: the entry
// without its request and without the ignored fields.
func (s *Set) significant(c Case) ir.IRObject {
	return c.Fields.Without(append([]string{KeyRequest}, s.ignore...)...)
}
