// Package schema checks the structural well-formedness of case entries,
// update entries and compact stores using CUE definitions.
//
// The definitions live in schema.cue and are compiled once per Validator.
// Values are checked by encoding them into CUE and unifying with the
// definition; any conflict or missing required field is a ShapeError.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/intercase/internal/ir"
)

//go:embed schema.cue
var source string

// ShapeError reports a value that does not match its definition.
type ShapeError struct {
	Definition string
	Messages   []string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Definition, strings.Join(e.Messages, "; "))
}

// Validator checks values against the compiled definitions.
// Safe for concurrent use.
type Validator struct {
	mu      sync.Mutex
	ctx     *cue.Context
	cases   cue.Value
	updates cue.Value
	store   cue.Value
}

// New compiles the definitions.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := &Validator{ctx: ctx}
	for name, dst := range map[string]*cue.Value{
		"#Case":        &v.cases,
		"#UpdateEntry": &v.updates,
		"#Store":       &v.store,
	} {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("schema: definition %s not found", name)
		}
		*dst = def
	}
	return v, nil
}

// Case checks a case entry: an object with object request and response.
func (v *Validator) Case(entry ir.IRValue) error {
	return v.check("case", v.cases, entry)
}

// UpdateEntry checks an update entry: an object with an object request and
// an optional object response.
func (v *Validator) UpdateEntry(entry ir.IRValue) error {
	return v.check("update entry", v.updates, entry)
}

// Store checks a compact store: identifier keys mapping to objects.
func (v *Validator) Store(store ir.IRValue) error {
	return v.check("store", v.store, store)
}

func (v *Validator) check(name string, def cue.Value, val ir.IRValue) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	encoded := v.ctx.Encode(ir.ToNative(val))
	if err := encoded.Err(); err != nil {
		return &ShapeError{Definition: name, Messages: []string{err.Error()}}
	}

	unified := def.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ShapeError{Definition: name, Messages: cueMessages(err)}
	}
	return nil
}

// cueMessages flattens a CUE error list into one message per error.
func cueMessages(err error) []string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if path := strings.Join(e.Path(), "."); path != "" && !strings.Contains(msg, path) {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
