package embed

import (
	"context"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

var log = commonlog.GetLogger("hilite.embed")

// MaxDepth bounds how deeply embedded languages may nest.
const MaxDepth = 3

// Scope describes the text a host node belongs to.
type Scope struct {
	Filetype string
	// Line returns 0-based line i of the text the host tree was parsed
	// from.
	Line  func(i int) string
	Rec   props.Recorder
	Depth int
}

// Walker classifies every node of a nested tree into rec. line returns the
// nested tree's own (indent-stripped) lines.
type Walker interface {
	WalkTree(ctx context.Context, filetype string, tree syntax.Tree, line func(int) string, rec props.Recorder, depth int)
}

// Classifier runs embedded classification for one pass.
type Classifier struct {
	Handlers *Registry
	Walker   Walker

	// Blocks and Failures count blocks classified and blocks whose parse
	// failed.
	Blocks   int
	Failures int
}

// Apply classifies the blocks embedded in host as language tag. It returns
// the residual parts of host around the classified blocks and true, or
// nil and false when nothing was classified and host should be labelled
// whole.
func (c *Classifier) Apply(ctx context.Context, scope Scope, tag string, host syntax.Node) ([]syntax.Node, bool) {
	if scope.Depth >= MaxDepth {
		log.Debugf("%s: embed:%s nested too deeply", scope.Filetype, tag)
		return nil, false
	}
	h := c.Handlers.Lookup(scope.Filetype, tag)
	if h == nil || h.Finder == nil || h.Parser == nil {
		return nil, false
	}

	start, end := host.StartPoint(), host.EndPoint()
	hostLines := make([]string, 0, end.Row-start.Row+1)
	for row := start.Row; row <= end.Row; row++ {
		hostLines = append(hostLines, scope.Line(row))
	}

	var done []Block
	for _, b := range h.Finder.FindEmbeddedCode(hostLines) {
		if b.Count <= 0 || b.Offset < 0 || b.Offset+b.Count > len(hostLines) {
			continue
		}
		code := stripIndent(hostLines[b.Offset:b.Offset+b.Count], b.Indent)
		tree, err := h.Parser.Parse(ctx, []byte(strings.Join(code, "\n")+"\n"))
		if err != nil || tree == nil || tree.Root() == nil {
			c.Failures++
			log.Warningf("%s: embed:%s block at line %d: parse failed: %v", scope.Filetype, tag, start.Row+b.Offset+1, err)
			continue
		}
		rec := props.Shifted{Next: scope.Rec, Lines: start.Row + b.Offset, Cols: b.Indent}
		line := func(i int) string {
			if i < 0 || i >= len(code) {
				return ""
			}
			return code[i]
		}
		c.Walker.WalkTree(ctx, h.Filetype, tree, line, rec, scope.Depth+1)
		c.Blocks++
		done = append(done, b)
	}
	if len(done) == 0 {
		return nil, false
	}
	return residual(host, hostLines, done), true
}

// stripIndent removes up to indent leading blanks from every line.
func stripIndent(lines []string, indent int) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		n := 0
		for n < indent && n < len(l) && (l[n] == ' ' || l[n] == '\t') {
			n++
		}
		out[i] = l[n:]
	}
	return out
}

// residual splits host around blocks into pseudo-nodes of the host's kind.
// A part before a block ends at the end of the line preceding it; a part
// after a block starts at the beginning of the line following it.
func residual(host syntax.Node, hostLines []string, blocks []Block) []syntax.Node {
	start, end := host.StartPoint(), host.EndPoint()
	var out []syntax.Node
	cursor := start
	for _, b := range blocks {
		first := start.Row + b.Offset
		if cursor.Row < first {
			prev := first - 1
			out = append(out, &syntax.Span{
				Type:  host.Kind(),
				Start: cursor,
				End:   syntax.Point{Row: prev, Column: len(hostLines[prev-start.Row])},
			})
		}
		cursor = syntax.Point{Row: first + b.Count}
	}
	if cursor.Less(end) {
		out = append(out, &syntax.Span{Type: host.Kind(), Start: cursor, End: end})
	}
	return out
}
