package props

import (
	"fmt"
	"sort"
	"sync"
)

// Annotation is one labelled range held by a MemorySink.
type Annotation struct {
	Label string
	Range
}

// MemorySink keeps annotations in memory. It is safe for concurrent use.
//
// When the text of a buffer is known (SetText), AddAnnotations rejects the
// whole call with ErrInvalidRange if any range falls outside the text, the
// way an editor rejects stale positions.
type MemorySink struct {
	mu    sync.Mutex
	anns  map[int][]Annotation
	text  map[int][]string
	calls int
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		anns: make(map[int][]Annotation),
		text: make(map[int][]string),
	}
}

// SetText sets the text used to validate ranges for buf. A nil slice turns
// validation off.
func (m *MemorySink) SetText(buf int, lines []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lines == nil {
		delete(m.text, buf)
		return
	}
	m.text[buf] = lines
}

func (m *MemorySink) RemoveAnnotations(buf, lineStart, lineEnd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	kept := m.anns[buf][:0]
	for _, a := range m.anns[buf] {
		if !a.TouchesLines(lineStart, lineEnd) {
			kept = append(kept, a)
		}
	}
	m.anns[buf] = kept
	return nil
}

func (m *MemorySink) AddAnnotations(buf int, label string, ranges []Range) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if lines, ok := m.text[buf]; ok {
		for _, r := range ranges {
			if !fits(lines, r) {
				return fmt.Errorf("%w: %s %s", ErrInvalidRange, label, r)
			}
		}
	}
	for _, r := range ranges {
		m.anns[buf] = append(m.anns[buf], Annotation{Label: label, Range: r})
	}
	return nil
}

// fits reports whether r lies within lines. Columns are byte offsets; one
// position past the end of a line is allowed.
func fits(lines []string, r Range) bool {
	if r.StartLine < 1 || r.StartCol < 1 || r.EndLine < r.StartLine {
		return false
	}
	if r.EndLine == r.StartLine && r.EndCol < r.StartCol {
		return false
	}
	within := func(line, col int) bool {
		if line > len(lines) {
			return line == len(lines)+1 && col == 1
		}
		return col <= len(lines[line-1])+1
	}
	return within(r.StartLine, r.StartCol) && within(r.EndLine, r.EndCol)
}

// Annotations returns a sorted copy of the annotations on buf.
func (m *MemorySink) Annotations(buf int) []Annotation {
	m.mu.Lock()
	out := append([]Annotation(nil), m.anns[buf]...)
	m.mu.Unlock()
	SortAnnotations(out)
	return out
}

// Calls is the number of sink calls received.
func (m *MemorySink) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Clear drops every annotation on buf.
func (m *MemorySink) Clear(buf int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.anns, buf)
}

// SortAnnotations orders annotations by position, then label.
func SortAnnotations(anns []Annotation) {
	sort.Slice(anns, func(i, j int) bool {
		a, b := anns[i], anns[j]
		switch {
		case a.StartLine != b.StartLine:
			return a.StartLine < b.StartLine
		case a.StartCol != b.StartCol:
			return a.StartCol < b.StartCol
		case a.EndLine != b.EndLine:
			return a.EndLine < b.EndLine
		case a.EndCol != b.EndCol:
			return a.EndCol < b.EndCol
		}
		return a.Label < b.Label
	})
}
