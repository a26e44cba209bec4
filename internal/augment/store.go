package augment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/roach88/intercase/internal/atomicfile"
	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
	"github.com/roach88/intercase/internal/schema"
)

var validator = sync.OnceValues(schema.New)

// CompactStore maps request identifiers to extra fields.
type CompactStore map[string]ir.IRObject

// Lookup returns the extra fields stored for id.
func (s CompactStore) Lookup(id string) (ir.IRObject, bool) {
	extra, ok := s[id]
	return extra, ok
}

// IDs returns the identifiers in sorted order.
func (s CompactStore) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy of the store.
func (s CompactStore) Clone() CompactStore {
	out := make(CompactStore, len(s))
	for id, extra := range s {
		out[id] = ir.CloneObject(extra)
	}
	return out
}

// Object returns the store as a document value.
func (s CompactStore) Object() ir.IRObject {
	obj := make(ir.IRObject, len(s))
	for id, extra := range s {
		obj[id] = extra
	}
	return obj
}

// LoadStore reads the compact store at path. A missing file is an empty
// store.
func LoadStore(c *codec.Codec, path string) (CompactStore, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return CompactStore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read compact store: %w", err)
	}
	return ParseStore(c, path, data)
}

// ParseStore parses a compact store document.
func ParseStore(c *codec.Codec, path string, data []byte) (CompactStore, error) {
	docs, err := c.Parse(path, data)
	if err != nil {
		return nil, err
	}

	store := CompactStore{}
	var seen bool
	for _, doc := range docs {
		if _, empty := doc.Root.(ir.IRNull); empty {
			continue
		}
		loc := diag.Location{Path: path, Document: doc.Index, Index: -1, Line: doc.Line}
		if seen {
			return nil, diag.Malformedf(loc, "compact store must be a single document")
		}
		seen = true

		v, err := validator()
		if err != nil {
			return nil, err
		}
		if err := v.Store(doc.Root); err != nil {
			return nil, diag.Malformed(loc, err)
		}
		for id, extra := range doc.Root.(ir.IRObject) {
			store[id] = ir.CloneObject(extra.(ir.IRObject))
		}
	}
	return store, nil
}

// RenderStore renders the store sorted by identifier. Equal stores always
// render to equal bytes.
func RenderStore(c *codec.Codec, store CompactStore) ([]byte, error) {
	return c.Render(store.Object())
}

// SaveStore writes the store to path atomically. On failure the existing
// file is untouched and the error is a STORAGE_WRITE_FAILURE.
func SaveStore(c *codec.Codec, path string, store CompactStore) error {
	data, err := RenderStore(c, store)
	if err != nil {
		return diag.NewStorageWriteFailure(path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return diag.NewStorageWriteFailure(path, err)
	}
	if err := atomicfile.WriteFile(path, data); err != nil {
		return diag.NewStorageWriteFailure(path, err)
	}
	return nil
}
