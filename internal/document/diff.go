package document

import (
	"bytes"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/hilite/internal/syntax"
)

// diff describes the change from old to cur as a single tree-sitter edit
// covering everything between their common prefix and suffix. It reports
// false when the texts are equal.
func diff(old, cur []byte) (sitter.EditInput, bool) {
	if bytes.Equal(old, cur) {
		return sitter.EditInput{}, false
	}
	prefix := 0
	for prefix < len(old) && prefix < len(cur) && old[prefix] == cur[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(cur)-prefix &&
		old[len(old)-1-suffix] == cur[len(cur)-1-suffix] {
		suffix++
	}
	oldEnd := len(old) - suffix
	newEnd := len(cur) - suffix
	return sitter.EditInput{
		StartIndex:  uint32(prefix),
		OldEndIndex: uint32(oldEnd),
		NewEndIndex: uint32(newEnd),
		StartPoint:  pointAt(old, prefix),
		OldEndPoint: pointAt(old, oldEnd),
		NewEndPoint: pointAt(cur, newEnd),
	}, true
}

// pointAt converts a byte offset to a tree-sitter point.
func pointAt(src []byte, offset int) sitter.Point {
	before := src[:offset]
	row := bytes.Count(before, []byte{'\n'})
	col := offset - (bytes.LastIndexByte(before, '\n') + 1)
	return sitter.Point{Row: uint32(row), Column: uint32(col)}
}

// affectedBy returns the rows of the new text touched by edit. Annotations
// held by position do not move with the text, so when the line count
// changes every following line is affected too.
func (d *Document) affectedBy(edit sitter.EditInput) syntax.LineRange {
	r := syntax.LineRange{
		Start: int(edit.StartPoint.Row),
		End:   int(edit.NewEndPoint.Row) + 1,
	}
	if edit.NewEndPoint.Row != edit.OldEndPoint.Row {
		r.End = max(r.End, len(d.lines), len(splitLines(d.treeSrc)))
	}
	return r
}

// extendByStructure widens affected to whole top-level nodes, in both the
// previous and the new tree, that intersect it. A change such as an opened
// string literal can restructure code well past the edited lines.
func (d *Document) extendByStructure(tree *sitter.Tree, affected []syntax.LineRange) []syntax.LineRange {
	r := affected[0]
	for _, t := range []*sitter.Tree{d.tree, tree} {
		root := t.RootNode()
		for i := 0; i < int(root.ChildCount()); i++ {
			child := root.Child(i)
			s, e := int(child.StartPoint().Row), int(child.EndPoint().Row)
			if child.EndPoint().Column == 0 && e > s {
				e--
			}
			if r.Overlaps(s, e) {
				r.Start = min(r.Start, s)
				r.End = max(r.End, e+1)
			}
		}
	}
	return []syntax.LineRange{r}
}
