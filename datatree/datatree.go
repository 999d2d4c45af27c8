// Package datatree defines a named tree of data values exchanged between
// processes over a pipe.
//
// Data values are restricted to the shapes produced by the standard codecs:
// nil, booleans, numbers, strings, []any, map[string]any and map[any]any.
// Other values are carried as-is by Duplicate and are assumed immutable.
package datatree

import (
	"fmt"
	"strings"
)

// A Node is one element of a data tree. The zero Node is an empty, unnamed
// leaf.
type Node struct {
	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	Data     any     `json:"data,omitempty" yaml:"data,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// New constructs a leaf node with the given name and data.
func New(name string, data any) *Node { return &Node{Name: name, Data: data} }

// Add appends children to n and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Duplicate returns a deep copy of n that shares no mutable state with n.
// Duplicate of a nil node is nil.
func (n *Node) Duplicate() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Name: n.Name, Data: copyData(n.Data)}
	if n.Children != nil {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Duplicate()
		}
	}
	return cp
}

// Find returns the first node in the subtree rooted at n, in depth-first
// order, whose name equals name. It returns nil if there is none.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Walk calls f for each node of the subtree rooted at n in depth-first
// order. If f returns false, the walk stops.
func (n *Node) Walk(f func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !f(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(f) {
			return false
		}
	}
	return true
}

// Len reports the number of nodes in the subtree rooted at n.
func (n *Node) Len() (count int) {
	n.Walk(func(*Node) bool { count++; return true })
	return
}

// String renders n as an indented outline, one node per line.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	n.format(&sb, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (n *Node) format(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if n.Name != "" {
		fmt.Fprintf(sb, "%s: ", n.Name)
	}
	fmt.Fprintf(sb, "%v\n", n.Data)
	for _, c := range n.Children {
		c.format(sb, depth+1)
	}
}

func copyData(v any) any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyData(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyData(e)
		}
		return out
	case map[any]any:
		if t == nil {
			return t
		}
		out := make(map[any]any, len(t))
		for k, e := range t {
			out[k] = copyData(e)
		}
		return out
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte(nil), t...)
	case *Node:
		return t.Duplicate()
	default:
		return v
	}
}
