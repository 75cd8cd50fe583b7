package lsp

import (
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/render"
)

// Legend maps labels to semantic token type indexes.
type Legend struct {
	Types []string
	index map[string]int
}

// NewLegend numbers labels in the order given.
func NewLegend(labels []string) *Legend {
	l := &Legend{Types: labels, index: make(map[string]int, len(labels))}
	for i, label := range labels {
		l.index[label] = i
	}
	return l
}

// Protocol returns the legend as sent in the server capabilities.
func (l *Legend) Protocol() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{TokenTypes: l.Types, TokenModifiers: []string{}}
}

// EncodeTokens encodes anns over lines as relative semantic tokens.
// Overlapping annotations are flattened and multi-line ones split per line.
// Columns are counted in UTF-16 code units. Labels missing from the legend
// are dropped.
func EncodeTokens(lines []string, anns []props.Annotation, legend *Legend) []protocol.UInteger {
	return EncodeRange(lines, anns, legend, 0, len(lines))
}

// EncodeRange is EncodeTokens restricted to 0-based lines [start, end).
func EncodeRange(lines []string, anns []props.Annotation, legend *Legend, start, end int) []protocol.UInteger {
	data := []protocol.UInteger{}
	prevLine, prevChar := 0, 0
	for i, segs := range render.Segments(lines, anns) {
		if i < start || i >= end {
			continue
		}
		char := 0
		for _, s := range segs {
			n := utf16Len(s.Text)
			typ, ok := legend.index[s.Label]
			if s.Label != "" && ok && n > 0 {
				deltaLine := i - prevLine
				deltaChar := char
				if deltaLine == 0 {
					deltaChar = char - prevChar
				}
				data = append(data,
					protocol.UInteger(deltaLine),
					protocol.UInteger(deltaChar),
					protocol.UInteger(n),
					protocol.UInteger(typ),
					0)
				prevLine, prevChar = i, char
			}
			char += n
		}
	}
	return data
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
