package pass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/sched"
	"github.com/jward/hilite/internal/syntax"
)

const testRules = `
class_definition
    class       Keyword
    identifier  ClassName
struct_definition
    class       Keyword
    identifier  StructName
pass            Keyword
line            Code
expression_statement.string     DocString   embed:python
`

func pt(row, col int) syntax.Point {
	return syntax.Point{Row: row, Column: col}
}

type doc struct {
	lines []string
	tree  syntax.Tree
}

// defs builds a module of two-line definitions of the given kind. An empty
// name leaves two blank lines instead.
func defs(kind string, names ...string) doc {
	root := &syntax.Span{Type: "module"}
	var lines []string
	for i, name := range names {
		r := 2 * i
		if name == "" {
			lines = append(lines, "", "")
			continue
		}
		lines = append(lines, "class "+name+":", "    pass")
		n := len(name)
		root.Children = append(root.Children, &syntax.Span{
			Type:  kind,
			Start: pt(r, 0),
			End:   pt(r+1, 8),
			Children: []*syntax.Span{
				{Type: "class", Start: pt(r, 0), End: pt(r, 5)},
				{Type: "identifier", Field: "name", Start: pt(r, 6), End: pt(r, 6+n)},
				{Type: ":", Start: pt(r, 6+n), End: pt(r, 7+n)},
				{Type: "block", Field: "body", Start: pt(r+1, 4), End: pt(r+1, 8), Children: []*syntax.Span{
					{Type: "pass_statement", Start: pt(r+1, 4), End: pt(r+1, 8), Children: []*syntax.Span{
						{Type: "pass", Start: pt(r+1, 4), End: pt(r+1, 8)},
					}},
				}},
			},
		})
	}
	root.End = pt(len(lines), 0)
	return doc{lines: lines, tree: syntax.NewTree(root)}
}

func classes(names ...string) doc {
	return defs("class_definition", names...)
}

func numbered(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return names
}

type fakeBuffer struct {
	lines []string
	views []syntax.LineRange
}

func (b *fakeBuffer) ID() int                       { return 1 }
func (b *fakeBuffer) LineCount() int                { return len(b.lines) }
func (b *fakeBuffer) Viewports() []syntax.LineRange { return b.views }

func (b *fakeBuffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

type fakeTrees struct {
	tree syntax.Tree
}

func (f *fakeTrees) CurrentTree() syntax.Tree { return f.tree }

type fakeTables struct {
	tables map[string]*match.Node
	err    error
	noted  map[string]int
	first  []string
}

func newFakeTables(t *testing.T) *fakeTables {
	t.Helper()
	rules, errs := match.ParseRules(strings.NewReader(testRules))
	require.Empty(t, errs)
	root, errs := match.Build(rules)
	require.Empty(t, errs)
	return &fakeTables{
		tables: map[string]*match.Node{"python": root},
		noted:  make(map[string]int),
	}
}

func (f *fakeTables) Table(filetype string) (*match.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	if root, ok := f.tables[filetype]; ok {
		return root, nil
	}
	return nil, fmt.Errorf("no rules for %q", filetype)
}

func (f *fakeTables) NoteUnknownKind(filetype, kind string) bool {
	key := filetype + "/" + kind
	f.noted[key]++
	if f.noted[key] == 1 {
		f.first = append(f.first, key)
		return true
	}
	return false
}

// lineParser builds a flat tree with one "line" child per non-blank line.
type lineParser struct {
	fail bool
}

func (p lineParser) Parse(_ context.Context, src []byte) (syntax.Tree, error) {
	if p.fail {
		return nil, errors.New("parse failed")
	}
	lines := strings.Split(strings.TrimSuffix(string(src), "\n"), "\n")
	root := &syntax.Span{Type: "module", End: pt(len(lines), 0)}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		root.Children = append(root.Children, &syntax.Span{Type: "line", Start: pt(i, 0), End: pt(i, len(l))})
	}
	return syntax.NewTree(root), nil
}

type harness struct {
	buf    *fakeBuffer
	trees  *fakeTrees
	tables *fakeTables
	sink   *props.MemorySink
	sched  *sched.Manual
	ctl    *Controller
}

func newHarness(t *testing.T, d doc, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		buf:    &fakeBuffer{},
		trees:  &fakeTrees{},
		tables: newFakeTables(t),
		sink:   props.NewMemorySink(),
		sched:  sched.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	h.setDoc(d)
	opts = append([]Option{WithClock(h.sched.Now)}, opts...)
	h.ctl = New(h.buf, h.trees, h.tables, "python", h.sink, h.sched, opts...)
	return h
}

func (h *harness) setDoc(d doc) {
	h.buf.lines = d.lines
	h.trees.tree = d.tree
}

// drain runs scheduled callbacks until the controller is idle.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	h.sched.RunAll(10000)
	require.True(t, h.ctl.Idle(), "controller still busy")
}

func (h *harness) annotations() []props.Annotation {
	return h.sink.Annotations(1)
}

// fullAnnotations returns what one unsliced whole-buffer pass produces.
func fullAnnotations(t *testing.T, d doc) []props.Annotation {
	t.Helper()
	h := newHarness(t, d)
	h.ctl.Start(nil)
	h.drain(t)
	return h.annotations()
}

// onLines filters annotations starting on lines [from, to].
func onLines(anns []props.Annotation, from, to int) []props.Annotation {
	var out []props.Annotation
	for _, a := range anns {
		if a.StartLine >= from && a.StartLine <= to {
			out = append(out, a)
		}
	}
	return out
}

func offLines(anns []props.Annotation, from, to int) []props.Annotation {
	var out []props.Annotation
	for _, a := range anns {
		if a.StartLine < from || a.StartLine > to {
			out = append(out, a)
		}
	}
	return out
}
