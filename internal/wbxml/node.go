// Package wbxml encodes and decodes the binary XML token stream used by the
// ActiveSync wire protocol. It is a pure codec: bytes in, tagged tree out,
// and back. No network or business logic.
package wbxml

import (
	"fmt"
	"strings"
)

// Node is one element of the decoded command/response tree. Tags are scoped
// by code page (namespace); a node carries either children or scalar content
// (inline string or opaque bytes), mirroring the token stream.
type Node struct {
	Page byte
	Tag  byte

	Children []*Node
	Text     string
	Opaque   []byte
}

// NewNode creates an empty element node.
func NewNode(page, tag byte) *Node {
	return &Node{Page: page, Tag: tag}
}

// NewTextNode creates a leaf node with inline string content.
func NewTextNode(page, tag byte, text string) *Node {
	return &Node{Page: page, Tag: tag, Text: text}
}

// NewOpaqueNode creates a leaf node with opaque byte content.
func NewOpaqueNode(page, tag byte, data []byte) *Node {
	return &Node{Page: page, Tag: tag, Opaque: data}
}

// Add appends a child and returns the receiver for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Is reports whether the node is the given page/tag element.
func (n *Node) Is(page, tag byte) bool {
	return n != nil && n.Page == page && n.Tag == tag
}

// Child returns the first direct child with the given page/tag, or nil.
func (n *Node) Child(page, tag byte) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Page == page && c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenOf returns all direct children with the given page/tag.
func (n *Node) ChildrenOf(page, tag byte) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Page == page && c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the text of the first child with the given page/tag.
// Opaque content is returned as a string; missing children yield "".
func (n *Node) ChildText(page, tag byte) string {
	c := n.Child(page, tag)
	if c == nil {
		return ""
	}
	return c.Value()
}

// Value returns the node's scalar content: inline text if present,
// otherwise opaque bytes as a string.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	if n.Text != "" {
		return n.Text
	}
	if len(n.Opaque) > 0 {
		return string(n.Opaque)
	}
	return ""
}

// String renders the tree as indented pseudo-XML for logging.
func (n *Node) String() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	name := TagName(n.Page, n.Tag)
	if len(n.Children) == 0 {
		val := n.Value()
		if len(val) > 64 {
			val = val[:61] + "..."
		}
		fmt.Fprintf(b, "%s<%s>%s</%s>\n", indent, name, val, name)
		return
	}
	fmt.Fprintf(b, "%s<%s>\n", indent, name)
	for _, c := range n.Children {
		c.dump(b, depth+1)
	}
	fmt.Fprintf(b, "%s</%s>\n", indent, name)
}
