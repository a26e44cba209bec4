// Package merge folds extension case documents into the main document of a
// collection.
//
// Extension cases are appended to the main file as one new YAML document,
// sorted by identifier, so that independent additions land in predictable
// positions. The existing bytes of the main file are kept as they are. The
// merged extension files are removed afterwards.
package merge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/intercase/internal/atomicfile"
	"github.com/roach88/intercase/internal/cases"
	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

// Result describes a merge.
type Result struct {
	// Main is the rewritten main document.
	Main string

	// Appended lists the identifiers appended to the main document, sorted.
	Appended []string

	// Removed lists the extension documents deleted.
	Removed []string
}

// Merge moves the extension cases of collection name in dir into its main
// document. The collection is fully loaded first, so a malformed or
// conflicting collection is never rewritten. Extension cases already present
// in the main document are not appended twice.
func Merge(loader *cases.Loader, c *codec.Codec, dir, name string) (*Result, error) {
	set, err := loader.Load(dir, name)
	if err != nil {
		return nil, err
	}

	files := set.Files()
	main, extensions := files[0], files[1:]
	result := &Result{Main: main}
	if len(extensions) == 0 {
		return result, nil
	}

	var moved []cases.Case
	for _, cs := range set.Cases() {
		if cs.Source.Path != main {
			moved = append(moved, cs)
		}
	}
	slices.SortFunc(moved, func(a, b cases.Case) int {
		return strings.Compare(a.ID, b.ID)
	})

	if len(moved) > 0 {
		original, err := os.ReadFile(main)
		if err != nil {
			return nil, fmt.Errorf("read main document: %w", err)
		}
		content, err := appendCases(c, original, moved, extensions, dir)
		if err != nil {
			return nil, err
		}

		// The rewritten file must load to the same set before it replaces
		// the original.
		check, err := loader.Read(main, content)
		if err != nil {
			return nil, fmt.Errorf("merged main document does not load: %w", err)
		}
		if check.Len() != set.Len() {
			return nil, fmt.Errorf("merged main document has %d cases, want %d", check.Len(), set.Len())
		}

		if err := atomicfile.WriteFile(main, content); err != nil {
			return nil, diag.NewStorageWriteFailure(main, err)
		}
		for _, cs := range moved {
			result.Appended = append(result.Appended, cs.ID)
		}
	}

	for _, path := range extensions {
		if err := os.Remove(path); err != nil {
			return result, fmt.Errorf("remove merged extension: %w", err)
		}
		result.Removed = append(result.Removed, path)
	}
	return result, nil
}

func appendCases(c *codec.Codec, original []byte, moved []cases.Case, extensions []string, dir string) ([]byte, error) {
	entries := make([]ir.IRObject, len(moved))
	for i, cs := range moved {
		entries[i] = cs.Fields
	}
	body, err := c.RenderEntries(entries, cases.KeyRequest, cases.KeyResponse)
	if err != nil {
		return nil, fmt.Errorf("render merged cases: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(original)
	if len(original) > 0 {
		if !bytes.HasSuffix(original, []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.WriteString("---\n")
	}
	for _, path := range extensions {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintf(&buf, "# From %s\n", filepath.ToSlash(rel))
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
