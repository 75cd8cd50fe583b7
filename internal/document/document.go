// Package document is an in-memory text buffer backed by an incremental
// tree-sitter parse. It is the parse-tree change source and line provider
// a highlighter binds to: edits announce PendingEdits, and every finished
// parse announces a new tree with the lines it affected.
//
// A Document is not safe for concurrent use. ParseAsync parses off the
// calling goroutine but installs the result through the caller's post
// function.
package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/hilite/internal/runtime"
	"github.com/jward/hilite/internal/syntax"
)

// Document is one buffer and its latest parse tree.
type Document struct {
	id       int
	filetype string
	lang     *sitter.Language

	src     []byte
	lines   []string
	version int

	tree        *sitter.Tree
	treeSrc     []byte
	treeVersion int

	views     []syntax.LineRange
	listeners []syntax.TreeCallback
}

// New creates a Document holding src. Nothing is parsed until Parse.
func New(id int, filetype string, src []byte) (*Document, error) {
	lang, ok := runtime.ParserForLanguage(filetype)
	if !ok {
		return nil, fmt.Errorf("document: unsupported filetype %q", filetype)
	}
	d := &Document{id: id, filetype: filetype, lang: lang}
	d.setText(src)
	return d, nil
}

func (d *Document) ID() int          { return d.id }
func (d *Document) Filetype() string { return d.filetype }
func (d *Document) LineCount() int   { return len(d.lines) }

// Line returns 0-based line i without its newline, or "" when out of range.
func (d *Document) Line(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return d.lines[i]
}

// Lines returns the buffer's lines. The slice must not be modified.
func (d *Document) Lines() []string { return d.lines }

// Text returns the buffer's content. The slice must not be modified.
func (d *Document) Text() []byte { return d.src }

// Version counts text changes.
func (d *Document) Version() int { return d.version }

// Viewports returns the ranges set with SetViewports.
func (d *Document) Viewports() []syntax.LineRange { return d.views }

// SetViewports records the line ranges currently visible.
func (d *Document) SetViewports(views ...syntax.LineRange) {
	d.views = views
}

// CurrentTree returns the latest parse tree, or nil before the first parse.
// The tree is never edited once returned.
func (d *Document) CurrentTree() syntax.Tree {
	if d.tree == nil {
		return nil
	}
	return syntax.FromSitter(d.tree)
}

// Current reports whether the latest tree was parsed from the current text.
func (d *Document) Current() bool {
	return d.tree != nil && bytes.Equal(d.treeSrc, d.src)
}

// Sitter returns the latest tree-sitter tree, or nil.
func (d *Document) Sitter() *sitter.Tree { return d.tree }

// OnTreeReady subscribes cb to change notifications.
func (d *Document) OnTreeReady(cb syntax.TreeCallback) {
	d.listeners = append(d.listeners, cb)
}

func (d *Document) notify(code syntax.ChangeCode, affected []syntax.LineRange) {
	for _, cb := range d.listeners {
		cb(code, affected)
	}
}

// SetText replaces the buffer's content and announces PendingEdits.
func (d *Document) SetText(src []byte) {
	d.setText(src)
	d.notify(syntax.PendingEdits, nil)
}

func (d *Document) setText(src []byte) {
	d.src = src
	d.lines = splitLines(src)
	d.version++
}

func splitLines(src []byte) []string {
	if len(src) == 0 {
		return nil
	}
	lines := strings.Split(string(src), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// job is one parse: its input snapshot and the edited copy of the previous
// tree it reuses.
type job struct {
	src       []byte
	version   int
	old       *sitter.Tree
	affected  []syntax.LineRange
	unchanged bool
}

func (d *Document) prepare() job {
	j := job{src: d.src, version: d.version}
	if d.tree == nil {
		return j
	}
	edit, ok := diff(d.treeSrc, d.src)
	if !ok {
		j.unchanged = true
		return j
	}
	j.old = d.tree.Copy()
	j.old.Edit(edit)
	j.affected = []syntax.LineRange{d.affectedBy(edit)}
	return j
}

func (d *Document) run(ctx context.Context, j job) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(d.lang)
	tree, err := parser.ParseCtx(ctx, j.old, j.src)
	if err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", d.filetype, err)
	}
	return tree, nil
}

// install makes tree current and notifies listeners. Results older than
// the current tree are dropped.
func (d *Document) install(j job, tree *sitter.Tree) {
	if d.tree != nil && j.version <= d.treeVersion {
		return
	}
	affected := j.affected
	if j.old != nil {
		affected = d.extendByStructure(tree, affected)
	}
	d.tree = tree
	d.treeSrc = j.src
	d.treeVersion = j.version
	code := syntax.NewCleanTree
	if j.version != d.version {
		code = syntax.NewOutOfDateTree
	}
	d.notify(code, affected)
}

// Parse reparses the buffer, reusing the previous tree, and announces the
// new tree. Listeners are called before Parse returns.
func (d *Document) Parse(ctx context.Context) error {
	j := d.prepare()
	if j.unchanged {
		return nil
	}
	tree, err := d.run(ctx, j)
	if err != nil {
		return err
	}
	d.install(j, tree)
	return nil
}

// ParseAsync reparses on a new goroutine. post must run its argument on the
// goroutine that owns the Document; the new tree is installed there, as
// an out-of-date tree if the text changed in the meantime. Parse errors are
// passed to onErr, which may be nil.
func (d *Document) ParseAsync(ctx context.Context, post func(func()), onErr func(error)) {
	j := d.prepare()
	if j.unchanged {
		return
	}
	go func() {
		tree, err := d.run(ctx, j)
		post(func() {
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				return
			}
			d.install(j, tree)
		})
	}()
}
