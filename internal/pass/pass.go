// Package pass runs highlight passes over one buffer.
//
// A Controller walks the current tree one top-level unit at a time,
// matching every node's canonical path against the filetype's rule table
// and sending labelled ranges to the annotation sink in batches. The walk
// is sliced by wall-clock time; between slices the Controller reschedules
// itself through a Scheduler so the host loop stays responsive. Tree change
// notifications that arrive mid-pass are recorded and trigger a fresh
// whole-buffer pass once the current one completes.
//
// A Controller is not safe for concurrent use. Every call, including the
// callbacks it schedules, must come from the same logical thread.
package pass

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/syntax"
)

// State tells whether a buffer's annotations reflect its latest tree.
type State int

const (
	// Incomplete: annotations may not reflect the current tree.
	Incomplete State = iota
	// Complete: the last whole-buffer pass finished undisturbed.
	Complete
)

func (s State) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scheduler runs fn after delay on the thread that owns the Controller.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// Buffer is read-only access to the text being highlighted.
type Buffer interface {
	ID() int
	LineCount() int
	// Line returns 0-based line i, or "" when i is out of range.
	Line(i int) string
	// Viewports returns the line ranges visible in windows showing the
	// buffer. Only used to order work.
	Viewports() []syntax.LineRange
}

// TreeSource supplies the buffer's latest parse tree.
type TreeSource interface {
	CurrentTree() syntax.Tree
}

// Tables resolves compiled rule tables.
type Tables interface {
	Table(filetype string) (*match.Node, error)
	// NoteUnknownKind records that kind matched no rule in filetype and
	// reports whether this is the first time.
	NoteUnknownKind(filetype, kind string) bool
}

// Stats summarizes one pass.
type Stats struct {
	Full             bool
	Props            int
	Flushes          int
	Continuations    int
	Units            int // top-level units walked
	Skipped          int // top-level nodes outside the affected lines
	EmbeddedBlocks   int
	EmbeddedFailures int
	SinkFailures     int
	Slices           []time.Duration
	Duration         time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithFlushThreshold sets the pending count that triggers a flush.
func WithFlushThreshold(n int) Option {
	return func(c *Controller) { c.threshold = n }
}

// WithSliceBudget sets the wall-clock time one slice may run before the
// pass suspends.
func WithSliceBudget(d time.Duration) Option {
	return func(c *Controller) { c.budget = d }
}

// WithContinuationDelay sets the delay before a suspended pass resumes.
func WithContinuationDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// WithClock replaces time.Now for slice timing.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithContext sets the context handed to embedded parsers.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.ctx = ctx }
}

// WithHandlers enables embedded-language classification.
func WithHandlers(r *embed.Registry) Option {
	return func(c *Controller) { c.handlers = r }
}
