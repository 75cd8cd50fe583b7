package sched

import (
	"sort"
	"time"
)

type task struct {
	at  time.Time
	seq int
	fn  func()
}

// Manual is a synchronous scheduler with a fake clock. Nothing runs until
// RunNext or RunAll is called.
type Manual struct {
	now   time.Time
	step  time.Duration
	seq   int
	tasks []task
}

// NewManual returns a Manual whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the fake time, then advances it by the step set with
// SetStep. A non-zero step makes work measured with Now look slow.
func (m *Manual) Now() time.Time {
	t := m.now
	m.now = m.now.Add(m.step)
	return t
}

// SetStep sets how far each Now call advances the clock.
func (m *Manual) SetStep(d time.Duration) {
	m.step = d
}

// Advance moves the clock forward.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func (m *Manual) Schedule(delay time.Duration, fn func()) {
	m.seq++
	m.tasks = append(m.tasks, task{at: m.now.Add(delay), seq: m.seq, fn: fn})
}

// Pending is the number of callbacks waiting to run.
func (m *Manual) Pending() int {
	return len(m.tasks)
}

// RunNext runs the earliest due callback, moving the clock to its due time
// if that is later. It reports whether a callback ran.
func (m *Manual) RunNext() bool {
	if len(m.tasks) == 0 {
		return false
	}
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if !m.tasks[i].at.Equal(m.tasks[j].at) {
			return m.tasks[i].at.Before(m.tasks[j].at)
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	next := m.tasks[0]
	m.tasks = m.tasks[1:]
	if next.at.After(m.now) {
		m.now = next.at
	}
	next.fn()
	return true
}

// RunAll runs callbacks, including ones scheduled while running, until
// none remain or limit callbacks have run. It returns how many ran.
func (m *Manual) RunAll(limit int) int {
	n := 0
	for n < limit && m.RunNext() {
		n++
	}
	return n
}
