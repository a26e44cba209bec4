package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/intercase/internal/ir"
)

// Render renders v as a single YAML document with sorted keys.
func (c *Codec) Render(v ir.IRValue) ([]byte, error) {
	node, err := toNode(v, nil)
	if err != nil {
		return nil, err
	}
	return encode(node)
}

// RenderEntries renders entries as a YAML sequence. Within each entry the
// lead keys come first in the given order, the rest sorted.
func (c *Codec) RenderEntries(entries []ir.IRObject, lead ...string) ([]byte, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i, entry := range entries {
		node, err := toNode(entry, lead)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		seq.Content = append(seq.Content, node)
	}
	return encode(seq)
}

func encode(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// stringNode renders s double quoted when a plain scalar would read back as
// something other than the same string. "<<" is checked by hand because the
// parser, not the resolver, turns a plain "<<" into a merge key.
func stringNode(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: s}
	if s == "<<" || n.ShortTag() != "!!str" {
		n.Style = yaml.DoubleQuotedStyle
	}
	n.Tag = "!!str"
	return n
}

// toNode converts v to a yaml node. lead orders the keys of the top-level
// object only.
func toNode(v ir.IRValue, lead []string) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return scalarNode("!!null", "null"), nil
	case ir.IRBool:
		return scalarNode("!!bool", strconv.FormatBool(bool(val))), nil
	case ir.IRInt:
		return scalarNode("!!int", strconv.FormatInt(int64(val), 10)), nil
	case ir.IRFloat:
		b, err := ir.MarshalIRValue(val)
		if err != nil {
			return nil, err
		}
		return scalarNode("!!float", string(b)), nil
	case ir.IRString:
		return stringNode(string(val)), nil
	case ir.IRArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, elem := range val {
			n, err := toNode(elem, nil)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case ir.IRObject:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range orderedKeys(val, lead) {
			n, err := toNode(val[k], nil)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			m.Content = append(m.Content, stringNode(k), n)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func orderedKeys(obj ir.IRObject, lead []string) []string {
	if len(lead) == 0 {
		return obj.SortedKeys()
	}
	keys := make([]string, 0, len(obj))
	used := make(map[string]bool, len(lead))
	for _, k := range lead {
		if _, ok := obj[k]; ok && !used[k] {
			keys = append(keys, k)
			used[k] = true
		}
	}
	for _, k := range obj.SortedKeys() {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
