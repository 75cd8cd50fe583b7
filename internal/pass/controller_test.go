package pass

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

func ann(label string, sl, sc, el, ec int) props.Annotation {
	return props.Annotation{Label: label, Range: props.Range{StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec}}
}

func TestController_ClassDefinition(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes("Foo"))

	h.ctl.Start(nil)
	h.drain(t)

	assert.Equal(t, []props.Annotation{
		ann("Keyword", 1, 1, 1, 6),
		ann("ClassName", 1, 7, 1, 10),
		ann("Keyword", 2, 5, 2, 9),
	}, h.annotations())
	assert.Equal(t, Complete, h.ctl.State())
	assert.Equal(t, 3, h.ctl.Stats().Props)
}

func TestController_InitialStateAndFirstPass(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 5)...))
	assert.Equal(t, Incomplete, h.ctl.State())
	assert.True(t, h.ctl.Idle())

	// Incomplete: the affected lines are ignored and the whole buffer done.
	h.ctl.HandleTreeChange(syntax.NewCleanTree, []syntax.LineRange{{Start: 0, End: 1}})
	h.drain(t)

	assert.Equal(t, Complete, h.ctl.State())
	assert.True(t, h.ctl.Stats().Full)
	assert.Len(t, h.annotations(), 15)
}

func TestController_Idempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 8)...))

	h.ctl.Start(nil)
	h.drain(t)
	first := h.annotations()

	h.ctl.Start(nil)
	h.drain(t)
	assert.Equal(t, first, h.annotations())
}

func TestController_PartialPass(t *testing.T) {
	t.Parallel()
	names := numbered("A", 10)
	h := newHarness(t, classes(names...))
	h.ctl.HandleTreeChange(syntax.NewCleanTree, nil)
	h.drain(t)
	before := h.annotations()

	names[5] = "Renamed"
	changed := classes(names...)
	h.setDoc(changed)
	h.ctl.HandleTreeChange(syntax.NewCleanTree, []syntax.LineRange{{Start: 10, End: 12}})
	h.drain(t)

	after := h.annotations()
	assert.Equal(t, offLines(before, 11, 12), offLines(after, 11, 12))
	assert.Equal(t, onLines(fullAnnotations(t, changed), 11, 12), onLines(after, 11, 12))
	assert.Contains(t, after, ann("ClassName", 11, 7, 11, 14))

	stats := h.ctl.Stats()
	assert.False(t, stats.Full)
	assert.Equal(t, 1, stats.Units)
	assert.Equal(t, 9, stats.Skipped)
	assert.Equal(t, Complete, h.ctl.State(), "a partial pass keeps the state")
}

func TestController_PartialPassClearsRemovedCode(t *testing.T) {
	t.Parallel()
	names := numbered("A", 10)
	h := newHarness(t, classes(names...))
	h.ctl.Start(nil)
	h.drain(t)
	before := h.annotations()

	names[5] = ""
	h.setDoc(classes(names...))
	h.ctl.HandleTreeChange(syntax.NewCleanTree, []syntax.LineRange{{Start: 10, End: 12}})
	h.drain(t)

	after := h.annotations()
	assert.Empty(t, onLines(after, 11, 12))
	assert.Equal(t, offLines(before, 11, 12), after)
	assert.Zero(t, h.ctl.Stats().Units)
}

func TestController_FullPassLeavesNothingStale(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 4)...))
	require.NoError(t, h.sink.AddAnnotations(1, "Junk", []props.Range{
		{StartLine: 2, StartCol: 1, EndLine: 2, EndCol: 3},
		{StartLine: 100, StartCol: 1, EndLine: 100, EndCol: 5},
	}))

	h.ctl.Start(nil)
	h.drain(t)

	for _, a := range h.annotations() {
		assert.NotEqual(t, "Junk", a.Label, "stale annotation at %s", a.Range)
	}
}

func TestController_EmptyTree(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes())
	require.NoError(t, h.sink.AddAnnotations(1, "Junk", []props.Range{{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 2}}))

	h.ctl.HandleTreeChange(syntax.NewCleanTree, nil)
	h.drain(t)

	assert.Empty(t, h.annotations())
	assert.Equal(t, Complete, h.ctl.State())
}

func TestController_ContinuationCompleteness(t *testing.T) {
	t.Parallel()
	d := classes(numbered("C", 10)...)
	want := fullAnnotations(t, d)

	h := newHarness(t, d, WithFlushThreshold(4), WithSliceBudget(50*time.Millisecond))
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.Start(nil)
	assert.True(t, h.ctl.Active(), "first slice should run out of time")
	assert.Equal(t, 1, h.sched.Pending())
	h.drain(t)

	assert.Equal(t, want, h.annotations())
	stats := h.ctl.Stats()
	assert.Equal(t, 4, stats.Continuations)
	assert.Len(t, stats.Slices, 5)
	assert.Equal(t, 30, stats.Props)
	assert.Equal(t, 10, stats.Units)
	assert.GreaterOrEqual(t, stats.Flushes, 7)
	assert.Equal(t, Complete, h.ctl.State())
}

func TestController_NoConflictingLabelsDuringUpdate(t *testing.T) {
	t.Parallel()
	names := numbered("S", 12)
	h := newHarness(t, classes(names...), WithFlushThreshold(1))
	h.ctl.Start(nil)
	h.drain(t)

	h.sched.SetStep(30 * time.Millisecond)
	h.setDoc(defs("struct_definition", names...))
	h.ctl.Start(nil)

	check := func() {
		seen := make(map[props.Range]string)
		for _, a := range h.annotations() {
			if label, ok := seen[a.Range]; ok {
				require.Equal(t, label, a.Label, "two labels over %s", a.Range)
			}
			seen[a.Range] = a.Label
		}
	}
	check()
	for h.sched.RunNext() {
		check()
	}
	assert.Contains(t, h.annotations(), ann("StructName", 1, 7, 1, 9))
	assert.NotContains(t, h.annotations(), ann("ClassName", 1, 7, 1, 9))
}

func TestController_TreeArrivesMidPass(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("A", 10)...))
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.HandleTreeChange(syntax.NewCleanTree, nil)
	require.True(t, h.ctl.Active())

	newer := classes(numbered("B", 10)...)
	h.setDoc(newer)
	h.ctl.HandleTreeChange(syntax.NewCleanTree, []syntax.LineRange{{Start: 0, End: 2}})
	assert.True(t, h.ctl.Active(), "no second pass starts")

	for h.ctl.Active() {
		require.True(t, h.sched.RunNext())
	}
	assert.Equal(t, Incomplete, h.ctl.State())
	assert.False(t, h.ctl.Idle(), "a rerun is scheduled")

	// Another tree while the rerun waits changes nothing.
	h.ctl.HandleTreeChange(syntax.NewCleanTree, []syntax.LineRange{{Start: 0, End: 2}})
	assert.False(t, h.ctl.Active())

	h.drain(t)
	assert.Equal(t, Complete, h.ctl.State())
	assert.True(t, h.ctl.Stats().Full)
	assert.Equal(t, fullAnnotations(t, newer), h.annotations())
}

func TestController_StartWhileActive(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("A", 10)...))
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.Start(nil)
	require.True(t, h.ctl.Active())
	h.ctl.Start([]syntax.LineRange{{Start: 0, End: 1}})
	assert.Equal(t, 1, h.sched.Pending())

	for h.ctl.Active() {
		h.sched.RunNext()
	}
	assert.Equal(t, Incomplete, h.ctl.State())
	h.drain(t)
	assert.Equal(t, Complete, h.ctl.State())
}

func TestController_StartFoldsWaitingRerun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("A", 10)...))
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.Start(nil)
	h.ctl.HandleTreeChange(syntax.PendingEdits, nil)
	for h.ctl.Active() {
		h.sched.RunNext()
	}
	require.False(t, h.ctl.Idle())

	h.ctl.Start([]syntax.LineRange{{Start: 0, End: 2}})
	h.drain(t)
	assert.True(t, h.ctl.Stats().Full)
	assert.Equal(t, Complete, h.ctl.State())
}

func TestController_PendingEdits(t *testing.T) {
	t.Parallel()

	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, classes("A"))
		h.ctl.HandleTreeChange(syntax.PendingEdits, nil)
		assert.True(t, h.ctl.Idle())
		assert.Zero(t, h.sink.Calls())
	})

	t.Run("during pass", func(t *testing.T) {
		h := newHarness(t, classes(numbered("A", 10)...))
		h.sched.SetStep(30 * time.Millisecond)
		h.ctl.HandleTreeChange(syntax.NewCleanTree, nil)
		require.True(t, h.ctl.Active())

		h.ctl.HandleTreeChange(syntax.PendingEdits, nil)
		assert.Equal(t, 1, h.sched.Pending(), "no restart while active")

		for h.ctl.Active() {
			h.sched.RunNext()
		}
		assert.Equal(t, Incomplete, h.ctl.State())
		h.drain(t)
		assert.Equal(t, Complete, h.ctl.State())
	})
}

func TestController_OutOfDateTreeStartsPass(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes("A", "B"))
	h.ctl.HandleTreeChange(syntax.NewOutOfDateTree, nil)
	h.drain(t)
	assert.Len(t, h.annotations(), 6)
}

func TestController_ViewportFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 10)...), WithFlushThreshold(1))
	h.buf.views = []syntax.LineRange{{Start: 16, End: 20}}
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.Start(nil)
	require.True(t, h.ctl.Active())

	anns := h.annotations()
	require.NotEmpty(t, anns)
	for _, a := range anns {
		assert.GreaterOrEqual(t, a.StartLine, 17, "%s %s", a.Label, a.Range)
	}
	h.drain(t)
	assert.Len(t, h.annotations(), 30)
}

func TestController_Reprioritize(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 10)...), WithFlushThreshold(1))
	h.sched.SetStep(30 * time.Millisecond)

	h.ctl.Start(nil)
	require.True(t, h.ctl.Active())
	assert.Empty(t, onLines(h.annotations(), 19, 20))

	h.ctl.Reprioritize([]syntax.LineRange{{Start: 18, End: 20}})
	require.True(t, h.sched.RunNext())
	assert.NotEmpty(t, onLines(h.annotations(), 19, 20))

	h.drain(t)
	assert.Len(t, h.annotations(), 30)
}

func TestController_SinkFailuresSwallowed(t *testing.T) {
	t.Parallel()
	d := classes(numbered("C", 6)...)
	h := newHarness(t, d, WithFlushThreshold(3))
	h.sink.SetText(1, d.lines[:4])

	h.ctl.Start(nil)
	h.drain(t)

	assert.Positive(t, h.ctl.Stats().SinkFailures)
	assert.Equal(t, Complete, h.ctl.State())
	assert.NotEmpty(t, onLines(h.annotations(), 1, 4))
}

func TestController_MissingTable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes("A"))
	h.tables.err = errors.New("no table")

	h.ctl.HandleTreeChange(syntax.NewCleanTree, nil)
	assert.True(t, h.ctl.Idle())
	assert.Zero(t, h.sink.Calls())
	assert.Equal(t, Incomplete, h.ctl.State())
}

func TestController_NoTree(t *testing.T) {
	t.Parallel()
	h := newHarness(t, doc{})
	h.ctl.Start(nil)
	assert.True(t, h.ctl.Idle())
}

func TestController_UnknownKindsNotedOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, classes(numbered("C", 3)...))
	h.ctl.Start(nil)
	h.drain(t)

	assert.Equal(t, []string{
		"python/class_definition",
		"python/:",
		"python/block",
		"python/pass_statement",
	}, h.tables.first)
	assert.Equal(t, 3, h.tables.noted["python/:"])
}

func TestController_Embedded(t *testing.T) {
	t.Parallel()
	lines := []string{
		`"""Doc.`,
		``,
		`Example::`,
		``,
		`    x = 1`,
		`    y = 2`,
		`"""`,
	}
	str := &syntax.Span{Type: "string", Start: pt(0, 0), End: pt(6, 3)}
	root := &syntax.Span{Type: "module", End: pt(7, 0), Children: []*syntax.Span{
		{Type: "expression_statement", Start: pt(0, 0), End: pt(6, 3), Children: []*syntax.Span{str}},
	}}

	handlers := embed.NewRegistry()
	handlers.Register("python", "python", &embed.Handler{Filetype: "python", Finder: embed.ReSTFinder{}, Parser: lineParser{}})
	h := newHarness(t, doc{lines: lines, tree: syntax.NewTree(root)}, WithHandlers(handlers))

	h.ctl.Start(nil)
	h.drain(t)

	assert.Equal(t, []props.Annotation{
		ann("DocString", 1, 1, 4, 1),
		ann("Code", 5, 5, 5, 10),
		ann("Code", 6, 5, 6, 10),
		ann("DocString", 7, 1, 7, 4),
	}, h.annotations())
	assert.Equal(t, 1, h.ctl.Stats().EmbeddedBlocks)
}

func TestController_EmbeddedParseFailure(t *testing.T) {
	t.Parallel()
	lines := []string{`"""Doc.`, `Example::`, `    x = 1`, `"""`}
	root := &syntax.Span{Type: "module", End: pt(4, 0), Children: []*syntax.Span{
		{Type: "expression_statement", Start: pt(0, 0), End: pt(3, 3), Children: []*syntax.Span{
			{Type: "string", Start: pt(0, 0), End: pt(3, 3)},
		}},
	}}

	handlers := embed.NewRegistry()
	handlers.Register("python", "python", &embed.Handler{Filetype: "python", Finder: embed.ReSTFinder{}, Parser: lineParser{fail: true}})
	h := newHarness(t, doc{lines: lines, tree: syntax.NewTree(root)}, WithHandlers(handlers))

	h.ctl.Start(nil)
	h.drain(t)

	assert.Equal(t, []props.Annotation{ann("DocString", 1, 1, 4, 4)}, h.annotations())
	assert.Equal(t, 1, h.ctl.Stats().EmbeddedFailures)
	assert.Equal(t, Complete, h.ctl.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "incomplete", Incomplete.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "State(7)", State(7).String())
}
