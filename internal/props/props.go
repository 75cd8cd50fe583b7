// Package props turns label assignments into range annotations on a buffer.
//
// Ranges are 1-based and end-exclusive, the convention of the annotation
// sink. Assignments accumulate in a Batch and reach the Sink in one call per
// label when the batch is flushed.
package props

import (
	"errors"
	"fmt"

	"github.com/jward/hilite/internal/syntax"
)

// ErrInvalidRange is returned by a Sink when a range no longer fits the
// buffer, typically because the buffer changed after the tree was parsed.
var ErrInvalidRange = errors.New("props: invalid range")

// Range is a span of buffer text. Lines and columns are 1-based; the end
// column is exclusive.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// FromPoints converts 0-based tree points to a Range.
func FromPoints(start, end syntax.Point) Range {
	return Range{
		StartLine: start.Row + 1,
		StartCol:  start.Column + 1,
		EndLine:   end.Row + 1,
		EndCol:    end.Column + 1,
	}
}

// Shift returns r moved down by lines and right by cols.
func (r Range) Shift(lines, cols int) Range {
	return Range{
		StartLine: r.StartLine + lines,
		StartCol:  r.StartCol + cols,
		EndLine:   r.EndLine + lines,
		EndCol:    r.EndCol + cols,
	}
}

// LastLine is the last line holding text of r. A range ending at column 1
// of a later line does not cover that line.
func (r Range) LastLine() int {
	if r.EndCol <= 1 && r.EndLine > r.StartLine {
		return r.EndLine - 1
	}
	return r.EndLine
}

// TouchesLines reports whether r covers any line in [lineStart, lineEnd).
func (r Range) TouchesLines(lineStart, lineEnd int) bool {
	return r.StartLine < lineEnd && r.LastLine() >= lineStart
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartLine, r.StartCol, r.EndLine, r.EndCol)
}

// Sink is the buffer side of annotation. Implementations only ever touch
// annotations they were given through AddAnnotations.
type Sink interface {
	// RemoveAnnotations clears annotations touching lines in the half-open
	// range [lineStart, lineEnd).
	RemoveAnnotations(buf, lineStart, lineEnd int) error

	// AddAnnotations adds one label over every range.
	AddAnnotations(buf int, label string, ranges []Range) error
}

// Recorder receives label assignments.
type Recorder interface {
	Add(label string, r Range)
}

// Shifted is a Recorder that moves every range before passing it on. It
// maps ranges of a nested tree, parsed from text sliced out of the buffer,
// back to buffer coordinates.
type Shifted struct {
	Next  Recorder
	Lines int
	Cols  int
}

func (s Shifted) Add(label string, r Range) {
	s.Next.Add(label, r.Shift(s.Lines, s.Cols))
}
