package augment

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

// Keys of an update entry that are not extra fields.
const (
	KeyRequest  = "request"
	KeyResponse = "response"
)

// UpdateSuffix is the file suffix of update documents.
const UpdateSuffix = ".update.yml"

// UpdateEntry is one entry of an update document with its identifier
// recomputed from the embedded request.
type UpdateEntry struct {
	ID       string
	Request  ir.IRObject
	Response ir.IRObject
	Extra    ir.IRObject
	Source   diag.Location
}

// UpdateDocument is a parsed update file.
type UpdateDocument struct {
	Path    string
	Entries []UpdateEntry
}

// LoadUpdateDocument reads and identifies the update document at path.
func LoadUpdateDocument(c *codec.Codec, path string, sel ir.Selection) (*UpdateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read update document: %w", err)
	}
	return ParseUpdateDocument(c, path, data, sel)
}

// ParseUpdateDocument parses an update document. The file may hold several
// YAML documents; entries keep stream order.
func ParseUpdateDocument(c *codec.Codec, path string, data []byte, sel ir.Selection) (*UpdateDocument, error) {
	docs, err := c.Parse(path, data)
	if err != nil {
		return nil, err
	}
	v, err := validator()
	if err != nil {
		return nil, err
	}

	out := &UpdateDocument{Path: path}
	for _, doc := range docs {
		var items ir.IRArray
		switch root := doc.Root.(type) {
		case ir.IRNull:
			continue
		case ir.IRArray:
			items = root
		default:
			loc := diag.Location{Path: path, Document: doc.Index, Index: -1, Line: doc.Line}
			return nil, diag.Malformedf(loc, "update document must be a sequence of entries")
		}

		for i, item := range items {
			loc := diag.Location{Path: path, Document: doc.Index, Index: i, Line: doc.ItemLine(i)}
			if err := v.UpdateEntry(item); err != nil {
				return nil, diag.Malformed(loc, err)
			}
			fields := item.(ir.IRObject)
			request := fields[KeyRequest].(ir.IRObject)
			response, _ := fields[KeyResponse].(ir.IRObject)

			id, err := ir.RequestID(request, sel)
			if err != nil {
				return nil, diag.Malformed(loc, err)
			}
			out.Entries = append(out.Entries, UpdateEntry{
				ID:       id,
				Request:  request,
				Response: response,
				Extra:    fields.Without(KeyRequest, KeyResponse),
				Source:   loc,
			})
		}
	}
	return out, nil
}

// NewUpdateEntry builds an update entry from a case and its extra fields.
// Extra keys named request or response are dropped.
func NewUpdateEntry(request, response, extra ir.IRObject) ir.IRObject {
	entry := make(ir.IRObject, len(extra)+2)
	for k, v := range extra {
		entry[k] = v
	}
	entry[KeyRequest] = request
	if response != nil {
		entry[KeyResponse] = response
	} else {
		delete(entry, KeyResponse)
	}
	return entry
}

// AppendUpdateEntries appends entries to the update file at path as a new
// YAML document, creating the file and its directory if needed. Existing
// content is never rewritten.
func AppendUpdateEntries(c *codec.Codec, path string, entries []ir.IRObject) error {
	if len(entries) == 0 {
		return nil
	}
	body, err := c.RenderEntries(entries, KeyRequest, KeyResponse)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create update directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open update document: %w", err)
	}
	defer f.Close()

	prefix, err := separator(f)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(prefix, body...)); err != nil {
		return fmt.Errorf("append update document: %w", err)
	}
	return f.Close()
}

// separator returns what must precede a new document appended to f.
func separator(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat update document: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read update document: %w", err)
	}
	if bytes.Equal(last, []byte("\n")) {
		return []byte("---\n"), nil
	}
	return []byte("\n---\n"), nil
}

// FindUpdateDocuments expands glob patterns into a sorted, de-duplicated
// list of update document paths.
func FindUpdateDocuments(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("update pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	slices.Sort(paths)
	return paths, nil
}
