package codec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

// DefaultCacheSize is the number of parsed files kept by default.
const DefaultCacheSize = 128

// maxNodes bounds alias expansion per document.
const maxNodes = 1_000_000

// maxDepth bounds nesting per document.
const maxDepth = 1_000

// Options configures a Codec.
type Options struct {
	// AllowCustomTags accepts tags outside the core schema. Default false.
	AllowCustomTags bool

	// CacheSize is the number of parsed files to keep, keyed by content hash.
	// Zero uses DefaultCacheSize; negative disables caching.
	CacheSize int
}

// Document is one document of a YAML stream.
type Document struct {
	// Index is the zero-based position of the document in the stream.
	Index int

	// Line is the line the document content starts on.
	Line int

	// Root is the decoded document content. Empty documents decode to IRNull.
	Root ir.IRValue

	// ItemLines holds the line of each item when Root is a sequence.
	ItemLines []int

	// KeyLines holds the line of each key when Root is a mapping.
	KeyLines map[string]int
}

// ItemLine returns the line of the i-th top-level sequence item, or 0.
func (d Document) ItemLine(i int) int {
	if i >= 0 && i < len(d.ItemLines) {
		return d.ItemLines[i]
	}
	return 0
}

// Codec parses and renders documents.
// Parsed results may be shared through the cache; callers must treat
// returned values as read-only.
type Codec struct {
	opts  Options
	cache *lru.Cache[[sha256.Size]byte, []Document]
}

// New creates a Codec.
func New(opts Options) (*Codec, error) {
	c := &Codec{opts: opts}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[[sha256.Size]byte, []Document](size)
		if err != nil {
			return nil, fmt.Errorf("create document cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Options returns the options the codec was created with.
func (c *Codec) Options() Options {
	return c.opts
}

// ReadFile reads and parses the file at path.
func (c *Codec) ReadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c.Parse(path, data)
}

// Parse parses a YAML stream. path is used for diagnostics only.
// Malformed input yields a *diag.Error of kind MALFORMED_DOCUMENT.
func (c *Codec) Parse(path string, data []byte) ([]Document, error) {
	var key [sha256.Size]byte
	if c.cache != nil {
		key = sha256.Sum256(data)
		if docs, ok := c.cache.Get(key); ok {
			return docs, nil
		}
	}

	docs, err := c.parse(path, data)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Add(key, docs)
	}
	return docs, nil
}

func (c *Codec) parse(path string, data []byte) ([]Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var docs []Document
	for i := 0; ; i++ {
		loc := diag.Location{Path: path, Document: i, Index: -1}

		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, diag.Malformed(loc, err)
		}

		doc, err := c.document(i, &node)
		if err != nil {
			return nil, diag.Malformed(loc, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Codec) document(index int, node *yaml.Node) (Document, error) {
	doc := Document{Index: index, Line: node.Line, Root: ir.IRNull{}}

	content := node
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return doc, nil
		}
		content = node.Content[0]
	}
	doc.Line = content.Line

	cv := &converter{allowCustom: c.opts.AllowCustomTags}
	root, err := cv.value(content, 0)
	if err != nil {
		return doc, err
	}
	doc.Root = root

	target := resolveAlias(content)
	switch target.Kind {
	case yaml.SequenceNode:
		doc.ItemLines = make([]int, len(target.Content))
		for i, item := range target.Content {
			doc.ItemLines[i] = item.Line
		}
	case yaml.MappingNode:
		doc.KeyLines = make(map[string]int, len(target.Content)/2)
		for i := 0; i+1 < len(target.Content); i += 2 {
			k := resolveAlias(target.Content[i])
			doc.KeyLines[k.Value] = k.Line
		}
	}
	return doc, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// coreTags lists the tags accepted in the safe subset.
var coreTags = map[string]bool{
	"!!null":      true,
	"!!bool":      true,
	"!!int":       true,
	"!!float":     true,
	"!!str":       true,
	"!!seq":       true,
	"!!map":       true,
	"!!timestamp": true,
	"!!binary":    true,
	"!!merge":     true,
}

// converter turns yaml nodes into ir values.
type converter struct {
	allowCustom bool
	nodes       int
}

func (cv *converter) checkTag(n *yaml.Node) (known bool, err error) {
	tag := n.ShortTag()
	if coreTags[tag] {
		return true, nil
	}
	if cv.allowCustom {
		return false, nil
	}
	return false, fmt.Errorf("line %d: tag %s is not allowed in the safe subset", n.Line, tag)
}

func (cv *converter) value(n *yaml.Node, depth int) (ir.IRValue, error) {
	cv.nodes++
	if cv.nodes > maxNodes {
		return nil, fmt.Errorf("document exceeds %d nodes after alias expansion", maxNodes)
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("line %d: nesting exceeds depth %d", n.Line, maxDepth)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return ir.IRNull{}, nil
		}
		return cv.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: unresolved alias %q", n.Line, n.Value)
		}
		return cv.value(n.Alias, depth+1)
	case yaml.ScalarNode:
		return cv.scalar(n)
	case yaml.SequenceNode:
		if _, err := cv.checkTag(n); err != nil {
			return nil, err
		}
		arr := make(ir.IRArray, len(n.Content))
		for i, item := range n.Content {
			v, err := cv.value(item, depth+1)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case yaml.MappingNode:
		if _, err := cv.checkTag(n); err != nil {
			return nil, err
		}
		return cv.mapping(n, depth)
	default:
		return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}

func (cv *converter) scalar(n *yaml.Node) (ir.IRValue, error) {
	known, err := cv.checkTag(n)
	if err != nil {
		return nil, err
	}
	if !known {
		return ir.IRString(n.Value), nil
	}

	switch n.ShortTag() {
	case "!!null":
		return ir.IRNull{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return ir.IRBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: integer %s out of int64 range: %w", n.Line, n.Value, err)
		}
		return ir.IRInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("line %d: non-finite float %s is not supported", n.Line, n.Value)
		}
		return ir.IRFloat(f), nil
	case "!!merge":
		return nil, fmt.Errorf("line %d: merge key used as a value", n.Line)
	default:
		// !!str, !!timestamp, !!binary keep their literal text.
		return ir.IRString(n.Value), nil
	}
}

func (cv *converter) mapping(n *yaml.Node, depth int) (ir.IRValue, error) {
	obj := make(ir.IRObject, len(n.Content)/2)
	var merges []*yaml.Node

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := resolveAlias(n.Content[i]), n.Content[i+1]

		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			merges = append(merges, v)
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		if _, err := cv.checkTag(k); err != nil {
			return nil, err
		}
		if _, dup := obj[k.Value]; dup {
			return nil, fmt.Errorf("line %d: mapping key %q already defined", k.Line, k.Value)
		}

		val, err := cv.value(v, depth+1)
		if err != nil {
			return nil, err
		}
		obj[k.Value] = val
	}

	// Explicit keys win over merged ones; earlier merge sources win over later.
	for _, m := range merges {
		m = resolveAlias(m)
		var sources []*yaml.Node
		switch m.Kind {
		case yaml.MappingNode:
			sources = []*yaml.Node{m}
		case yaml.SequenceNode:
			sources = m.Content
		default:
			return nil, fmt.Errorf("line %d: merge value must be a mapping or sequence of mappings", m.Line)
		}
		for _, src := range sources {
			v, err := cv.value(src, depth+1)
			if err != nil {
				return nil, err
			}
			merged, ok := v.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("line %d: merge source must be a mapping", src.Line)
			}
			for key, val := range merged {
				if _, exists := obj[key]; !exists {
					obj[key] = val
				}
			}
		}
	}
	return obj, nil
}
