package props

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("hilite.props")

// DefaultThreshold is the pending count at which a batch asks to be flushed.
const DefaultThreshold = 2000

type lineSpan struct {
	start, end int
}

// Batch accumulates label assignments and line removals between flushes.
// A Batch is owned by one pass and is not safe for concurrent use.
type Batch struct {
	threshold int

	labels   []string // first-seen order
	ranges   map[string][]Range
	pending  int
	removals []lineSpan

	flushes  int
	failures int
}

// NewBatch returns an empty batch. A threshold below 1 selects
// DefaultThreshold.
func NewBatch(threshold int) *Batch {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Batch{
		threshold: threshold,
		ranges:    make(map[string][]Range),
	}
}

// Add records one assignment. Labels are never validated here.
func (b *Batch) Add(label string, r Range) {
	if _, ok := b.ranges[label]; !ok {
		b.labels = append(b.labels, label)
	}
	b.ranges[label] = append(b.ranges[label], r)
	b.pending++
}

// Remove queues clearing of annotations on lines [lineStart, lineEnd).
// Queued removals reach the sink before any queued additions.
func (b *Batch) Remove(lineStart, lineEnd int) {
	if lineEnd <= lineStart {
		return
	}
	b.removals = append(b.removals, lineSpan{lineStart, lineEnd})
}

// Pending is the number of recorded ranges not yet flushed.
func (b *Batch) Pending() int {
	return b.pending
}

// Threshold returns the flush threshold.
func (b *Batch) Threshold() int {
	return b.threshold
}

// ShouldFlush reports whether the pending count reached the threshold.
func (b *Batch) ShouldFlush() bool {
	return b.pending >= b.threshold
}

// Flush sends queued removals, then one AddAnnotations call per label in
// first-seen order, and clears the batch. Sink errors are logged and
// counted but never stop the remaining calls. It returns the number of
// failed sink calls.
func (b *Batch) Flush(sink Sink, buf int) int {
	if b.pending == 0 && len(b.removals) == 0 {
		return 0
	}
	failed := 0
	for _, s := range b.removals {
		if err := sink.RemoveAnnotations(buf, s.start, s.end); err != nil {
			log.Debugf("buffer %d: remove lines %d-%d: %s", buf, s.start, s.end, err)
			failed++
		}
	}
	for _, label := range b.labels {
		if err := sink.AddAnnotations(buf, label, b.ranges[label]); err != nil {
			log.Debugf("buffer %d: add %d %q annotation(s): %s", buf, len(b.ranges[label]), label, err)
			failed++
		}
	}
	b.flushes++
	b.failures += failed
	b.Reset()
	return failed
}

// Reset drops everything queued without flushing.
func (b *Batch) Reset() {
	b.labels = nil
	b.ranges = make(map[string][]Range)
	b.pending = 0
	b.removals = nil
}

// Flushes is the number of non-empty flushes since the batch was created.
func (b *Batch) Flushes() int {
	return b.flushes
}

// Failures is the number of failed sink calls since the batch was created.
func (b *Batch) Failures() int {
	return b.failures
}
