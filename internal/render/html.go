package render

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jward/hilite/internal/props"
)

// HTMLOptions controls HTML output.
type HTMLOptions struct {
	// ClassPrefix is prepended to each label to form the span class.
	// Defaults to "hl-".
	ClassPrefix string
	// LineNumbers wraps each line in a span carrying a data-line
	// attribute.
	LineNumbers bool
}

// HTML writes lines as a <pre class="hilite"> block with one span per
// labelled segment.
func HTML(w io.Writer, lines []string, anns []props.Annotation, opts HTMLOptions) error {
	return html.Render(w, Tree(lines, anns, opts))
}

// Tree builds the node tree HTML renders.
func Tree(lines []string, anns []props.Annotation, opts HTMLOptions) *html.Node {
	prefix := opts.ClassPrefix
	if prefix == "" {
		prefix = "hl-"
	}
	pre := element(atom.Pre, html.Attribute{Key: "class", Val: "hilite"})
	for i, segs := range Segments(lines, anns) {
		parent := pre
		if opts.LineNumbers {
			parent = element(atom.Span,
				html.Attribute{Key: "class", Val: "line"},
				html.Attribute{Key: "data-line", Val: strconv.Itoa(i + 1)})
			pre.AppendChild(parent)
		}
		for _, s := range segs {
			text := &html.Node{Type: html.TextNode, Data: s.Text}
			if s.Label == "" {
				parent.AppendChild(text)
				continue
			}
			span := element(atom.Span, html.Attribute{Key: "class", Val: prefix + className(s.Label)})
			span.AppendChild(text)
			parent.AppendChild(span)
		}
		if i < len(lines)-1 || opts.LineNumbers {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: "\n"})
		}
	}
	return pre
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// className keeps labels usable as CSS class names.
func className(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, label)
}

