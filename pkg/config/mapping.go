package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// GridEntry is one target grid and the resolution codes to export it at.
type GridEntry struct {
	Name        string
	Resolutions List[string]
}

// Grids is the ordered grid-name -> resolution-codes mapping.
type Grids struct {
	entries []GridEntry
	state   presence
}

// GridsOf builds a set Grids mapping from entries, keeping their order.
func GridsOf(entries ...GridEntry) Grids {
	return Grids{entries: append([]GridEntry(nil), entries...), state: set}
}

// Entries returns the grids in document order.
func (g Grids) Entries() []GridEntry {
	return append([]GridEntry(nil), g.entries...)
}

// Names returns the grid names in document order.
func (g Grids) Names() []string {
	names := make([]string, 0, len(g.entries))
	for _, e := range g.entries {
		names = append(names, e.Name)
	}
	return names
}

// Get returns the resolution list of a grid.
func (g Grids) Get(name string) (List[string], bool) {
	for _, e := range g.entries {
		if e.Name == name {
			return e.Resolutions, true
		}
	}
	return List[string]{}, false
}

// Len returns the number of grids.
func (g Grids) Len() int { return len(g.entries) }

// IsNull returns true if the key was present with a null value.
func (g Grids) IsNull() bool { return g.state == null }

// IsZero lets omitempty drop an absent mapping on output.
func (g Grids) IsZero() bool { return g.state == absent }

// UnmarshalYAML decodes a mapping of grid name to a list of resolution codes.
func (g *Grids) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == nullTag {
		*g = Grids{state: null}
		return nil
	}
	pairs, err := mappingPairs(node)
	if err != nil {
		return err
	}
	out := Grids{entries: make([]GridEntry, 0, len(pairs)), state: set}
	for _, p := range pairs {
		var res List[string]
		if err := res.UnmarshalYAML(p.value); err != nil {
			return fmt.Errorf("grid %q: %w", p.key, err)
		}
		out.entries = append(out.entries, GridEntry{Name: p.key, Resolutions: res})
	}
	*g = out
	return nil
}

// MarshalYAML writes the mapping in its original order.
func (g Grids) MarshalYAML() (interface{}, error) {
	if g.state != set {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range g.entries {
		value := &yaml.Node{}
		if err := value.Encode(e.Resolutions); err != nil {
			return nil, fmt.Errorf("grid %q: %w", e.Name, err)
		}
		node.Content = append(node.Content, keyNode(e.Name), value)
	}
	return node, nil
}

// FormatEntry is one output format and its parameter object.
// Params is nil when the format was written with a null value.
type FormatEntry struct {
	Name   string
	Params map[string]interface{}
}

// Formats is the ordered format-name -> parameters mapping.
type Formats struct {
	entries []FormatEntry
	state   presence
}

// FormatsOf builds a set Formats mapping from entries, keeping their order.
func FormatsOf(entries ...FormatEntry) Formats {
	return Formats{entries: append([]FormatEntry(nil), entries...), state: set}
}

// Entries returns the formats in document order.
func (f Formats) Entries() []FormatEntry {
	return append([]FormatEntry(nil), f.entries...)
}

// Names returns the format names in document order.
func (f Formats) Names() []string {
	names := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		names = append(names, e.Name)
	}
	return names
}

// Params returns the parameter object of a format; nil params mean null.
func (f Formats) Params(name string) (map[string]interface{}, bool) {
	for _, e := range f.entries {
		if e.Name == name {
			return e.Params, true
		}
	}
	return nil, false
}

// Len returns the number of formats.
func (f Formats) Len() int { return len(f.entries) }

// IsNull returns true if the key was present with a null value.
func (f Formats) IsNull() bool { return f.state == null }

// IsZero lets omitempty drop an absent mapping on output.
func (f Formats) IsZero() bool { return f.state == absent }

// UnmarshalYAML decodes a mapping of format name to a parameter object or null.
func (f *Formats) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == nullTag {
		*f = Formats{state: null}
		return nil
	}
	pairs, err := mappingPairs(node)
	if err != nil {
		return err
	}
	out := Formats{entries: make([]FormatEntry, 0, len(pairs)), state: set}
	for _, p := range pairs {
		entry := FormatEntry{Name: p.key}
		switch {
		case p.value.Kind == yaml.ScalarNode && p.value.ShortTag() == nullTag:
		case p.value.Kind == yaml.MappingNode:
			params := map[string]interface{}{}
			if err := p.value.Decode(&params); err != nil {
				return fmt.Errorf("format %q: %w", p.key, err)
			}
			entry.Params = params
		default:
			return fmt.Errorf("line %d: format %q: parameters must be a mapping or null", p.value.Line, p.key)
		}
		out.entries = append(out.entries, entry)
	}
	*f = out
	return nil
}

// MarshalYAML writes the mapping in its original order.
func (f Formats) MarshalYAML() (interface{}, error) {
	if f.state != set {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range f.entries {
		value := &yaml.Node{Kind: yaml.ScalarNode, Tag: nullTag, Value: "null"}
		if e.Params != nil {
			value = &yaml.Node{}
			if err := value.Encode(e.Params); err != nil {
				return nil, fmt.Errorf("format %q: %w", e.Name, err)
			}
		}
		node.Content = append(node.Content, keyNode(e.Name), value)
	}
	return node, nil
}

type pair struct {
	key   string
	value *yaml.Node
}

// mappingPairs returns the key/value pairs of a mapping node in order,
// rejecting non-string keys and duplicates.
func mappingPairs(node *yaml.Node) ([]pair, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	pairs := make([]pair, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		if seen[k.Value] {
			return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		pairs = append(pairs, pair{key: k.Value, value: v})
	}
	return pairs, nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
