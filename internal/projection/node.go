package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Node is one entry of a selection: a leaf when Fields is nil, otherwise a
// nested selection of a related object.
type Node struct {
	Fields Selection
}

// Leaf returns a node requested without sub-selection.
func Leaf() Node { return Node{} }

// Nested returns a node with the given sub-selection. An empty selection
// yields a leaf, so a nested node never has an empty sub-selection.
func Nested(sel Selection) Node {
	if len(sel) == 0 {
		return Leaf()
	}
	return Node{Fields: sel}
}

// IsLeaf reports whether n has no sub-selection.
func (n Node) IsLeaf() bool { return len(n.Fields) == 0 }

func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		return []byte("true"), nil
	}
	return json.Marshal(n.Fields)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("true")) {
		*n = Leaf()
		return nil
	}
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return fmt.Errorf("selection node must be true or an object: %w", err)
	}
	*n = Nested(sel)
	return nil
}

// Selection maps field names to nodes. It marshals to the JSON shape GraphQL
// clients take as a field map, e.g. {"id":true,"assignee":{"id":true}}.
type Selection map[string]Node

// Merge copies every entry of other into s; entries of other win.
func (s Selection) Merge(other Selection) Selection {
	for name, n := range other {
		s[name] = n
	}
	return s
}

// Keys returns the field names in lexical order.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Depth returns how many relation levels s nests; 0 when every entry is a leaf.
func (s Selection) Depth() int {
	deepest := 0
	for _, n := range s {
		if n.IsLeaf() {
			continue
		}
		if d := 1 + n.Fields.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// Size counts every entry, nested ones included.
func (s Selection) Size() int {
	total := len(s)
	for _, n := range s {
		total += n.Fields.Size()
	}
	return total
}
