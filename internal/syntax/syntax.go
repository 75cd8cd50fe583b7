// Package syntax defines the read-only view of a parse tree that the
// highlighting engine walks, the vocabulary of parse-tree change
// notifications, and an adapter for smacker/go-tree-sitter trees.
package syntax

import "fmt"

// Point is a 0-based (row, byte column) position in a buffer.
type Point struct {
	Row    int
	Column int
}

// Less reports whether p sorts before q.
func (p Point) Less(q Point) bool {
	if p.Row != q.Row {
		return p.Row < q.Row
	}
	return p.Column < q.Column
}

// Node is one syntax-tree node. Implementations must be immutable for the
// lifetime of the tree they belong to.
type Node interface {
	Kind() string
	StartPoint() Point
	EndPoint() Point
	ChildCount() int
	Child(i int) Node
	// FieldNameForChild returns the grammar field of child i relative to
	// this node, or "" when the child plays no named role.
	FieldNameForChild(i int) string
}

// Tree is an immutable parse-tree snapshot.
type Tree interface {
	Root() Node
}

// LineRange is a 0-based, end-exclusive range of buffer lines.
type LineRange struct {
	Start int
	End   int
}

// Overlaps reports whether the range shares a line with rows
// [startRow, endRow] (both inclusive).
func (r LineRange) Overlaps(startRow, endRow int) bool {
	return startRow < r.End && endRow >= r.Start
}

func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// AnyOverlaps reports whether any range in ranges overlaps rows
// [startRow, endRow].
func AnyOverlaps(ranges []LineRange, startRow, endRow int) bool {
	for _, r := range ranges {
		if r.Overlaps(startRow, endRow) {
			return true
		}
	}
	return false
}

// ChangeCode classifies a parse-tree change notification.
type ChangeCode int

const (
	// NewCleanTree: a reparse finished and the tree matches the buffer.
	NewCleanTree ChangeCode = iota
	// NewOutOfDateTree: a reparse finished but the buffer has changed
	// again since it started.
	NewOutOfDateTree
	// PendingEdits: the buffer changed and has not been reparsed yet.
	PendingEdits
)

func (c ChangeCode) String() string {
	switch c {
	case NewCleanTree:
		return "new-clean-tree"
	case NewOutOfDateTree:
		return "new-out-of-date-tree"
	case PendingEdits:
		return "pending-edits"
	}
	return fmt.Sprintf("ChangeCode(%d)", int(c))
}

// TreeCallback receives change notifications. affected is nil when the
// changed lines are unknown (treat as whole buffer).
type TreeCallback func(code ChangeCode, affected []LineRange)
