package hilite

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/hilite/internal/document"
	"github.com/jward/hilite/internal/pass"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/sched"
)

// maxCallbacks bounds the continuations a synchronous highlight may run.
const maxCallbacks = 1 << 20

// Result is the outcome of highlighting one text.
type Result struct {
	Filetype    string
	Lines       []string
	Annotations []props.Annotation
	Stats       pass.Stats
}

// Highlight parses src as filetype and classifies it in a single
// whole-buffer pass, without an event loop. Continuations run on a
// synchronous scheduler, so the pass is never interleaved with anything.
func Highlight(ctx context.Context, reg *Registry, filetype string, src []byte, opts ...Option) (*Result, error) {
	doc, err := document.New(1, filetype, src)
	if err != nil {
		return nil, err
	}
	sink := props.NewMemorySink()
	sink.SetText(doc.ID(), doc.Lines())

	m := sched.NewManual(time.Now())
	opts = append(append([]Option(nil), opts...), WithContext(ctx))
	h, err := New(reg, doc, filetype, sink, m, opts...)
	if err != nil {
		return nil, err
	}
	if err := doc.Parse(ctx); err != nil {
		return nil, err
	}
	m.RunAll(maxCallbacks)
	if !h.Idle() {
		return nil, fmt.Errorf("hilite: %s pass did not finish", filetype)
	}
	return &Result{
		Filetype:    filetype,
		Lines:       doc.Lines(),
		Annotations: sink.Annotations(doc.ID()),
		Stats:       h.Stats(),
	}, nil
}
