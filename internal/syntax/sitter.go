package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// SitterTree adapts a tree-sitter tree.
type SitterTree struct {
	tree *sitter.Tree
}

// FromSitter wraps t. The caller must not edit t while the result is in use.
func FromSitter(t *sitter.Tree) *SitterTree {
	return &SitterTree{tree: t}
}

// Raw returns the wrapped tree-sitter tree.
func (t *SitterTree) Raw() *sitter.Tree {
	return t.tree
}

func (t *SitterTree) Root() Node {
	root := t.tree.RootNode()
	if root == nil {
		return nil
	}
	return sitterNode{n: root}
}

// WrapNode adapts a single tree-sitter node.
func WrapNode(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return sitterNode{n: n}
}

type sitterNode struct {
	n *sitter.Node
}

func (s sitterNode) Kind() string { return s.n.Type() }

func (s sitterNode) StartPoint() Point {
	p := s.n.StartPoint()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

func (s sitterNode) EndPoint() Point {
	p := s.n.EndPoint()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

func (s sitterNode) ChildCount() int { return int(s.n.ChildCount()) }

func (s sitterNode) Child(i int) Node {
	c := s.n.Child(i)
	if c == nil {
		return nil
	}
	return sitterNode{n: c}
}

func (s sitterNode) FieldNameForChild(i int) string {
	return s.n.FieldNameForChild(i)
}
