package pass

import (
	"context"
	"math"
	"time"

	"github.com/tliron/commonlog"

	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

var log = commonlog.GetLogger("hilite.pass")

const (
	defaultSliceBudget       = 50 * time.Millisecond
	defaultContinuationDelay = 10 * time.Millisecond
)

// Controller owns the highlight passes of one buffer.
type Controller struct {
	buf      Buffer
	trees    TreeSource
	tables   Tables
	filetype string
	sink     props.Sink
	sched    Scheduler
	handlers *embed.Registry

	threshold int
	budget    time.Duration
	delay     time.Duration
	now       func() time.Time
	ctx       context.Context

	state       State
	active      bool
	scheduled   bool
	callback    func()
	pendingTree bool
	bufChanged  bool

	// Current pass.
	tree     syntax.Tree
	table    *match.Node
	full     bool
	units    []unit
	next     int
	batch    *props.Batch
	embedder *embed.Classifier
	started  time.Time
	stats    Stats

	last Stats
}

// New creates a Controller in the Incomplete state. No pass starts until
// HandleTreeChange or Start is called.
func New(buf Buffer, trees TreeSource, tables Tables, filetype string, sink props.Sink, sched Scheduler, opts ...Option) *Controller {
	c := &Controller{
		buf:       buf,
		trees:     trees,
		tables:    tables,
		filetype:  filetype,
		sink:      sink,
		sched:     sched,
		threshold: props.DefaultThreshold,
		budget:    defaultSliceBudget,
		delay:     defaultContinuationDelay,
		now:       time.Now,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.batch = props.NewBatch(c.threshold)
	return c
}

// State returns the buffer's highlight state.
func (c *Controller) State() State { return c.state }

// Active reports whether a pass is in progress.
func (c *Controller) Active() bool { return c.active }

// Idle reports whether no pass is active and nothing is scheduled.
func (c *Controller) Idle() bool { return !c.active && !c.scheduled }

// Stats returns the statistics of the last completed pass.
func (c *Controller) Stats() Stats { return c.last }

// HandleTreeChange reacts to a parse-tree change notification.
func (c *Controller) HandleTreeChange(code syntax.ChangeCode, affected []syntax.LineRange) {
	switch code {
	case syntax.PendingEdits:
		if c.active {
			c.bufChanged = true
		}
	case syntax.NewCleanTree, syntax.NewOutOfDateTree:
		if c.active {
			c.pendingTree = true
			return
		}
		if c.scheduled {
			return
		}
		if c.state == Incomplete {
			affected = nil
		}
		c.Start(affected)
	default:
		log.Warningf("buffer %d: unknown tree change %s", c.buf.ID(), code)
	}
}

// Start begins a pass over the current tree. A nil affected means the
// whole buffer. If a pass is already active, Start only records that a
// newer tree is waiting.
func (c *Controller) Start(affected []syntax.LineRange) {
	if c.active {
		c.pendingTree = true
		return
	}
	tree := c.trees.CurrentTree()
	if tree == nil || tree.Root() == nil {
		log.Debugf("buffer %d: no tree yet", c.buf.ID())
		return
	}
	table, err := c.tables.Table(c.filetype)
	if err != nil {
		log.Errorf("buffer %d: %s", c.buf.ID(), err)
		return
	}
	if c.scheduled {
		// A waiting rerun is folded into this pass.
		affected = nil
		c.callback = nil
	}

	c.tree = tree
	c.table = table
	c.full = affected == nil
	c.pendingTree = false
	c.bufChanged = false
	c.batch.Reset()
	c.embedder = &embed.Classifier{Handlers: c.handlers, Walker: nestedWalker{c}}
	c.started = c.now()
	c.stats = Stats{Full: c.full}
	c.units = c.plan(affected)
	c.next = 0
	c.active = true

	if c.full {
		log.Debugf("buffer %d: pass over whole buffer, %d unit(s)", c.buf.ID(), len(c.units))
	} else {
		log.Debugf("buffer %d: pass over %v, %d unit(s)", c.buf.ID(), affected, len(c.units))
	}
	c.slice()
}

// Reprioritize moves the remaining units of an active pass that intersect
// viewports to the front of the queue.
func (c *Controller) Reprioritize(viewports []syntax.LineRange) {
	if !c.active || len(viewports) == 0 {
		return
	}
	prioritize(c.units[c.next:], viewports)
}

// schedule arranges for fn to run after delay. At most one callback is
// outstanding; scheduling while one is waiting replaces its function.
func (c *Controller) schedule(delay time.Duration, fn func()) {
	c.callback = fn
	if c.scheduled {
		return
	}
	c.scheduled = true
	c.sched.Schedule(delay, func() {
		c.scheduled = false
		fn := c.callback
		c.callback = nil
		if fn != nil {
			fn()
		}
	})
}

// slice walks units until the queue is empty or the time budget is spent.
func (c *Controller) slice() {
	start := c.now()
	for c.next < len(c.units) {
		c.walkUnit(c.units[c.next])
		c.next++
		if c.next == len(c.units) {
			break
		}
		if elapsed := c.now().Sub(start); elapsed > c.budget {
			c.stats.Slices = append(c.stats.Slices, elapsed)
			c.stats.Continuations++
			c.schedule(c.delay, c.slice)
			return
		}
	}
	c.stats.Slices = append(c.stats.Slices, c.now().Sub(start))
	c.finish()
}

func (c *Controller) finish() {
	c.flush()
	c.active = false
	c.stats.Duration = c.now().Sub(c.started)
	c.stats.Flushes = c.batch.Flushes()
	c.stats.EmbeddedBlocks = c.embedder.Blocks
	c.stats.EmbeddedFailures = c.embedder.Failures
	c.last = c.stats
	log.Infof("buffer %d: all %d(%d) props applied in %s using %d continuation(s)",
		c.buf.ID(), c.stats.Props, c.stats.Flushes, c.stats.Duration, c.stats.Continuations)

	c.tree = nil
	c.units = nil
	c.batch = props.NewBatch(c.threshold)

	if c.pendingTree || c.bufChanged {
		log.Debugf("buffer %d: tree changed during pass, rerunning", c.buf.ID())
		c.state = Incomplete
		c.pendingTree = false
		c.bufChanged = false
		c.schedule(0, func() { c.Start(nil) })
		return
	}
	if c.full {
		c.state = Complete
	}
}

func (c *Controller) flush() {
	c.stats.SinkFailures += c.batch.Flush(c.sink, c.buf.ID())
}

// plan splits the root's children into units, drops units outside
// affected, queues removal of lines no unit covers, and orders the result
// so visible units come first.
func (c *Controller) plan(affected []syntax.LineRange) []unit {
	all := groupUnits(c.tree.Root())

	var units []unit
	for _, u := range all {
		if c.full || syntax.AnyOverlaps(affected, u.startRow, u.endRow) {
			units = append(units, u)
			continue
		}
		c.stats.Skipped += u.last - u.first + 1
	}

	prev := 0
	for _, u := range all {
		c.removeGap(affected, prev, u.startRow)
		prev = u.endRow + 1
	}
	end := c.buf.LineCount()
	if c.full {
		end = math.MaxInt32 - 1
	}
	c.removeGap(affected, prev, end)

	prioritize(units, c.buf.Viewports())
	return units
}

// removeGap queues removal of rows [start, end) that no unit covers. In a
// partial pass only rows inside affected are touched.
func (c *Controller) removeGap(affected []syntax.LineRange, start, end int) {
	if start >= end {
		return
	}
	if c.full {
		c.batch.Remove(start+1, end+1)
		return
	}
	for _, r := range affected {
		s, e := max(start, r.Start), min(end, r.End)
		if s < e {
			c.batch.Remove(s+1, e+1)
		}
	}
}
