package hilite

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/hilite/internal/config"
	"github.com/jward/hilite/internal/pass"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

// Document is the buffer a Highlighter binds to: its lines, its latest
// parse tree and the notifications announcing new trees.
type Document interface {
	pass.Buffer
	pass.TreeSource
	OnTreeReady(cb syntax.TreeCallback)
}

// Highlighter keeps the annotations of one buffer in step with its parse
// tree. Every method, and every tree notification, must come from the
// thread that runs the Scheduler's callbacks.
type Highlighter struct {
	doc      Document
	filetype string
	ctl      *pass.Controller
}

type options struct {
	threshold int
	budget    time.Duration
	delay     time.Duration
	clock     func() time.Time
	ctx       context.Context
}

// Option configures a Highlighter.
type Option func(*options)

// WithFlushThreshold sets how many pending assignments trigger a flush to
// the sink.
func WithFlushThreshold(n int) Option {
	return func(o *options) { o.threshold = n }
}

// WithSliceBudget sets how long one slice of a pass may run.
func WithSliceBudget(d time.Duration) Option {
	return func(o *options) { o.budget = d }
}

// WithContinuationDelay sets the pause between slices.
func WithContinuationDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithClock replaces time.Now for slice timing.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithContext sets the context embedded parses run under.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// EngineOptions maps an [engine] configuration section to options.
func EngineOptions(c config.Engine) []Option {
	return []Option{
		WithFlushThreshold(c.FlushThreshold),
		WithSliceBudget(c.SliceBudget.Duration),
		WithContinuationDelay(c.ContinuationDelay.Duration),
	}
}

// New binds a Highlighter to doc and subscribes it to doc's tree
// notifications. Annotations go to sink under doc.ID(). No pass runs until
// the first notification or Start.
func New(reg *Registry, doc Document, filetype string, sink props.Sink, sched pass.Scheduler, opts ...Option) (*Highlighter, error) {
	if _, err := reg.Table(filetype); err != nil {
		return nil, err
	}
	o := options{
		threshold: props.DefaultThreshold,
		budget:    config.DefaultSliceBudget,
		delay:     config.DefaultContinuationDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threshold < 1 {
		return nil, fmt.Errorf("hilite: flush threshold must be positive, got %d", o.threshold)
	}

	popts := []pass.Option{
		pass.WithFlushThreshold(o.threshold),
		pass.WithSliceBudget(o.budget),
		pass.WithContinuationDelay(o.delay),
		pass.WithHandlers(reg.Handlers()),
	}
	if o.clock != nil {
		popts = append(popts, pass.WithClock(o.clock))
	}
	if o.ctx != nil {
		popts = append(popts, pass.WithContext(o.ctx))
	}

	h := &Highlighter{
		doc:      doc,
		filetype: filetype,
		ctl:      pass.New(doc, doc, reg, filetype, sink, sched, popts...),
	}
	doc.OnTreeReady(h.HandleTreeChange)
	return h, nil
}

// Filetype returns the filetype whose rules the Highlighter applies.
func (h *Highlighter) Filetype() string { return h.filetype }

// HandleTreeChange reacts to a tree notification. New binds it to the
// document; call it directly only for documents that announce changes some
// other way.
func (h *Highlighter) HandleTreeChange(code syntax.ChangeCode, affected []syntax.LineRange) {
	h.ctl.HandleTreeChange(code, affected)
}

// HandleWindowScrolled moves the not-yet-walked parts of a running pass
// that are now visible to the front.
func (h *Highlighter) HandleWindowScrolled() {
	h.ctl.Reprioritize(h.doc.Viewports())
}

// Start runs a whole-buffer pass over the current tree.
func (h *Highlighter) Start() {
	h.ctl.Start(nil)
}

// State tells whether the annotations reflect the latest tree.
func (h *Highlighter) State() pass.State { return h.ctl.State() }

// Active reports whether a pass is running.
func (h *Highlighter) Active() bool { return h.ctl.Active() }

// Idle reports whether no pass is running or scheduled.
func (h *Highlighter) Idle() bool { return h.ctl.Idle() }

// Stats returns the statistics of the last finished pass.
func (h *Highlighter) Stats() pass.Stats { return h.ctl.Stats() }
