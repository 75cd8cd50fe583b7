package syntax

// Span is an in-memory Node. The engine uses it for residual pseudo-nodes
// around embedded blocks; tests use it to build exact trees.
type Span struct {
	Type     string
	Field    string // field name relative to the parent
	Start    Point
	End      Point
	Children []*Span
}

var _ Node = (*Span)(nil)

func (s *Span) Kind() string { return s.Type }
func (s *Span) StartPoint() Point { return s.Start }
func (s *Span) EndPoint() Point { return s.End }
func (s *Span) ChildCount() int { return len(s.Children) }
func (s *Span) Child(i int) Node { return s.Children[i] }

func (s *Span) FieldNameForChild(i int) string {
	return s.Children[i].Field
}

// NewTree wraps root as a Tree.
func NewTree(root Node) Tree {
	return staticTree{root: root}
}

type staticTree struct {
	root Node
}

func (t staticTree) Root() Node { return t.root }
