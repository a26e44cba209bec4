package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
	"github.com/roach88/intercase/internal/schema"
)

// DefaultExtension is the file extension of main documents.
const DefaultExtension = ".yml"

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithSelection sets the identifying fields of requests.
func WithSelection(sel ir.Selection) Option {
	return func(l *Loader) {
		l.selection = sel
	}
}

// WithIgnoreFields names entry keys that do not count when comparing
// duplicate cases, e.g. "description".
func WithIgnoreFields(fields ...string) Option {
	return func(l *Loader) {
		l.ignore = append([]string(nil), fields...)
	}
}

// WithExtension sets the main document extension. Default ".yml".
func WithExtension(ext string) Option {
	return func(l *Loader) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.ext = ext
	}
}

// Loader reads case collections.
type Loader struct {
	codec     *codec.Codec
	validator *schema.Validator
	selection ir.Selection
	ignore    []string
	ext       string
	logger    *zap.Logger
}

// NewLoader creates a Loader that parses documents with c.
func NewLoader(c *codec.Codec, opts ...Option) (*Loader, error) {
	validator, err := schema.New()
	if err != nil {
		return nil, err
	}

	l := &Loader{
		codec:     c,
		validator: validator,
		ext:       DefaultExtension,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Selection returns the identifying field selection.
func (l *Loader) Selection() ir.Selection {
	return l.selection
}

// Paths returns the main document path and the extension document paths of
// a collection. The main document must exist; a missing extension folder
// means no extensions.
func (l *Loader) Paths(dir, name string) (string, []string, error) {
	main := filepath.Join(dir, name+l.ext)
	info, err := os.Stat(main)
	if err != nil {
		return "", nil, fmt.Errorf("main case document: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("main case document %s is not a regular file", main)
	}

	extDir := filepath.Join(dir, name)
	entries, err := os.ReadDir(extDir)
	if errors.Is(err, fs.ErrNotExist) {
		return main, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read extension folder: %w", err)
	}

	// ReadDir sorts by file name.
	var extensions []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(extDir, e.Name())
		info, err := os.Stat(path)
		if err != nil {
			return "", nil, fmt.Errorf("stat extension document: %w", err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		extensions = append(extensions, path)
	}
	return main, extensions, nil
}

// Load reads the collection name in dir. Every document is parsed and
// checked before Load returns, so a bad file is reported before any case is
// used.
func (l *Loader) Load(dir, name string) (*Set, error) {
	main, extensions, err := l.Paths(dir, name)
	if err != nil {
		return nil, err
	}

	set := newSet(l.ignore)
	for _, path := range append([]string{main}, extensions...) {
		docs, err := l.codec.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := l.addDocuments(set, path, docs); err != nil {
			return nil, err
		}
	}

	l.logger.Debug("loaded case collection",
		zap.String("name", name),
		zap.Int("files", len(set.files)),
		zap.Int("cases", set.Len()),
		zap.Int("duplicates", len(set.diagnostics)))
	return set, nil
}

// Read parses case entries from data as if read from path.
func (l *Loader) Read(path string, data []byte) (*Set, error) {
	docs, err := l.codec.Parse(path, data)
	if err != nil {
		return nil, err
	}
	set := newSet(l.ignore)
	if err := l.addDocuments(set, path, docs); err != nil {
		return nil, err
	}
	return set, nil
}

func (l *Loader) addDocuments(set *Set, path string, docs []codec.Document) error {
	set.files = append(set.files, path)

	for _, doc := range docs {
		var items ir.IRArray
		switch root := doc.Root.(type) {
		case ir.IRNull:
			continue
		case ir.IRArray:
			items = root
		default:
			loc := diag.Location{Path: path, Document: doc.Index, Index: -1, Line: doc.Line}
			return diag.Malformedf(loc, "case document must be a sequence of entries")
		}

		for i, item := range items {
			loc := diag.Location{Path: path, Document: doc.Index, Index: i, Line: doc.ItemLine(i)}
			c, err := l.newCase(item, loc)
			if err != nil {
				return err
			}
			dup, err := set.add(c)
			if err != nil {
				return err
			}
			if dup {
				l.logger.Warn("duplicate case ignored",
					zap.String("id", c.ID),
					zap.String("location", loc.String()))
			}
		}
	}
	return nil
}

func (l *Loader) newCase(item ir.IRValue, loc diag.Location) (Case, error) {
	if err := l.validator.Case(item); err != nil {
		return Case{}, diag.Malformed(loc, err)
	}
	fields := item.(ir.IRObject)
	request := fields[KeyRequest].(ir.IRObject)
	response := fields[KeyResponse].(ir.IRObject)

	id, err := ir.RequestID(request, l.selection)
	if err != nil {
		return Case{}, diag.Malformed(loc, err)
	}
	return Case{
		ID:       id,
		Request:  request,
		Response: response,
		Fields:   fields,
		Source:   loc,
	}, nil
}
