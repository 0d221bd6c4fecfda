package nestling

import (
	"strings"

	"github.com/hanpama/nestling/model"
)

// node is one element of the document tree. The root operation is a node;
// every operation built on it and every bound include is a child node. A
// node renders its own field with its inner arguments and selections;
// children appear either inside a column list (includes) or directly under
// the root.
type node struct {
	table    *model.Table
	root     *root
	parent   *node
	children []*node
	alias    string
	frag     fragments
}

// bindTo attaches n under parent. A node belongs to exactly one tree
// position for its lifetime.
func (n *node) bindTo(parent *node) error {
	if n.parent != nil || n.root != nil {
		return clientErrorf("node %q is already bound", n.frag.queryName)
	}
	n.parent = parent
	n.root = parent.root
	parent.children = append(parent.children, n)
	return nil
}

// walk visits n and every descendant depth-first in insertion order. The
// root uses it to collect outer declarations and variable bindings, which
// is what makes generated names unique document-wide.
func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, child := range n.children {
		child.walk(fn)
	}
}

// renderTo writes the node's field: alias, name, inner arguments and the
// selection block.
func (n *node) renderTo(b *strings.Builder) {
	if n.alias != "" {
		b.WriteString(n.alias)
		b.WriteString(":")
	}
	b.WriteString(n.frag.queryName)
	if len(n.frag.innerArgs) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(n.frag.innerArgs, ", "))
		b.WriteString(")")
	}
	if len(n.frag.selections) > 0 {
		b.WriteString(" {\n")
		for _, sel := range n.frag.selections {
			sel.renderTo(b)
		}
		b.WriteString("}")
	}
	b.WriteString("\n")
}
