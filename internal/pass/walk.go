package pass

import (
	"context"
	"sort"

	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

// unit is a run of root children [first, last] that share lines with their
// neighbours. Units never share a line, so each can be cleared and
// relabelled on its own.
type unit struct {
	first, last      int
	startRow, endRow int // inclusive
}

// lastRow is the last row holding text of n. A node ending at column 0
// ends on the previous row.
func lastRow(n syntax.Node) int {
	start, end := n.StartPoint(), n.EndPoint()
	if end.Column == 0 && end.Row > start.Row {
		return end.Row - 1
	}
	return end.Row
}

func groupUnits(root syntax.Node) []unit {
	var units []unit
	for i := 0; i < root.ChildCount(); i++ {
		child := root.Child(i)
		s, e := child.StartPoint().Row, lastRow(child)
		if n := len(units); n > 0 && s <= units[n-1].endRow {
			units[n-1].last = i
			units[n-1].endRow = max(units[n-1].endRow, e)
			continue
		}
		units = append(units, unit{first: i, last: i, startRow: s, endRow: e})
	}
	return units
}

// prioritize stably moves units intersecting viewports to the front.
func prioritize(units []unit, viewports []syntax.LineRange) {
	if len(viewports) == 0 {
		return
	}
	sort.SliceStable(units, func(i, j int) bool {
		return syntax.AnyOverlaps(viewports, units[i].startRow, units[i].endRow) &&
			!syntax.AnyOverlaps(viewports, units[j].startRow, units[j].endRow)
	})
}

// walkUnit clears the unit's lines and labels every node in it.
func (c *Controller) walkUnit(u unit) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("buffer %d: lines %d-%d: walk failed: %v", c.buf.ID(), u.startRow+1, u.endRow+1, r)
		}
	}()
	c.stats.Units++
	c.batch.Remove(u.startRow+1, u.endRow+2)
	w := &walker{
		c:        c,
		filetype: c.filetype,
		table:    c.table,
		line:     c.buf.Line,
		rec:      c.batch,
	}
	root := c.tree.Root()
	w.children(root, []match.Elem{{Kind: root.Kind()}}, u.first, u.last)
}

// walker labels the nodes of one tree.
type walker struct {
	c        *Controller
	filetype string
	table    *match.Node
	line     func(int) string
	rec      props.Recorder
	depth    int
}

// children visits n's children first through last. path is n's canonical
// path.
func (w *walker) children(n syntax.Node, path []match.Elem, first, last int) {
	for i := first; i <= last; i++ {
		child := n.Child(i)
		w.visit(child, append(path, match.Elem{Field: n.FieldNameForChild(i), Kind: child.Kind()}))
	}
}

// visit labels n, then its subtree in pre-order.
func (w *walker) visit(n syntax.Node, path []match.Elem) {
	if m := w.table.Find(path); m != nil {
		w.label(n, m)
	} else if kind := n.Kind(); !w.table.HasKind(kind) && w.c.tables.NoteUnknownKind(w.filetype, kind) {
		log.Noticef("%s: no rule for node kind %q", w.filetype, kind)
	}
	if count := n.ChildCount(); count > 0 {
		w.children(n, path, 0, count-1)
	}
}

func (w *walker) label(n syntax.Node, m *match.Node) {
	if m.Embed != "" {
		scope := embed.Scope{Filetype: w.filetype, Line: w.line, Rec: w.rec, Depth: w.depth}
		if rest, ok := w.c.embedder.Apply(w.c.ctx, scope, m.Embed, n); ok {
			for _, r := range rest {
				w.add(m.Label, r)
			}
			return
		}
	}
	w.add(m.Label, n)
}

func (w *walker) add(label string, n syntax.Node) {
	w.rec.Add(label, props.FromPoints(n.StartPoint(), n.EndPoint()))
	w.c.stats.Props++
	if w.c.batch.ShouldFlush() {
		w.c.flush()
	}
}

// nestedWalker classifies trees parsed from embedded blocks.
type nestedWalker struct {
	c *Controller
}

func (nw nestedWalker) WalkTree(ctx context.Context, filetype string, tree syntax.Tree, line func(int) string, rec props.Recorder, depth int) {
	table, err := nw.c.tables.Table(filetype)
	if err != nil {
		log.Warningf("%s: embedded %s: %s", nw.c.filetype, filetype, err)
		return
	}
	root := tree.Root()
	if root.ChildCount() == 0 {
		return
	}
	w := &walker{
		c:        nw.c,
		filetype: filetype,
		table:    table,
		line:     line,
		rec:      rec,
		depth:    depth,
	}
	w.children(root, []match.Elem{{Kind: root.Kind()}}, 0, root.ChildCount()-1)
}
