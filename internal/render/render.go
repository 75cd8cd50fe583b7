// Package render turns a buffer's annotations into marked-up text.
package render

import (
	"github.com/jward/hilite/internal/props"
)

// Segment is a run of one line's text under a single label ("" for
// unlabelled text).
type Segment struct {
	Text  string
	Label string
}

// Segments splits every line into labelled runs. Where annotations
// overlap, the narrowest one wins; among annotations of equal extent, the
// one listed first.
func Segments(lines []string, anns []props.Annotation) [][]Segment {
	byLine := make(map[int][]int)
	for i, a := range anns {
		for l := a.StartLine; l <= a.LastLine() && l <= len(lines); l++ {
			byLine[l] = append(byLine[l], i)
		}
	}

	out := make([][]Segment, len(lines))
	for li, text := range lines {
		line := li + 1
		cands := byLine[line]
		var segs []Segment
		start := 0
		cur := labelAt(anns, cands, line, 0)
		for c := 1; c <= len(text); c++ {
			var next string
			if c < len(text) {
				next = labelAt(anns, cands, line, c)
			}
			if c == len(text) || next != cur {
				segs = append(segs, Segment{Text: text[start:c], Label: cur})
				start, cur = c, next
			}
		}
		out[li] = segs
	}
	return out
}

// labelAt returns the label of the narrowest annotation among cands
// covering 0-based byte col of line.
func labelAt(anns []props.Annotation, cands []int, line, col int) string {
	best := -1
	var bestLines, bestCols int
	for _, i := range cands {
		a := anns[i]
		if !covers(a.Range, line, col) {
			continue
		}
		lines, cols := a.EndLine-a.StartLine, a.EndCol-a.StartCol
		if best < 0 || lines < bestLines || (lines == bestLines && cols < bestCols) {
			best, bestLines, bestCols = i, lines, cols
		}
	}
	if best < 0 {
		return ""
	}
	return anns[best].Label
}

// covers reports whether r includes 0-based byte col of 1-based line.
func covers(r props.Range, line, col int) bool {
	c := col + 1
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && c < r.StartCol {
		return false
	}
	if line == r.EndLine && c >= r.EndCol {
		return false
	}
	return true
}
