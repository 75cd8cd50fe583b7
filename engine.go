package hilite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/jward/hilite/internal/document"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/runtime"
	"github.com/jward/hilite/internal/sched"
	"github.com/jward/hilite/internal/store"
)

var log = commonlog.GetLogger("hilite")

// Engine highlights files on disk into a SQLite annotation store. Files
// whose content and rules are unchanged since they were last highlighted
// are skipped.
type Engine struct {
	store     *store.Store
	reg       *Registry
	opts      []Option
	languages map[string]bool // nil means all filetypes

	// useParallel enables the worker pool in HighlightFiles.
	useParallel bool
	rulesHash   string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLanguages restricts which filetypes the Engine highlights.
func WithLanguages(filetypes ...string) EngineOption {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(filetypes))
		for _, ft := range filetypes {
			e.languages[ft] = true
		}
	}
}

// WithParallel controls whether HighlightFiles classifies files on a
// worker pool. When false every file is highlighted straight into the
// store, one at a time.
func WithParallel(parallel bool) EngineOption {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithHighlightOptions sets the options of every pass the Engine runs.
func WithHighlightOptions(opts ...Option) EngineOption {
	return func(e *Engine) {
		e.opts = append(e.opts, opts...)
	}
}

// NewEngine opens (creating if needed) the annotation database at dbPath.
func NewEngine(dbPath string, reg *Registry, opts ...EngineOption) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("hilite: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("hilite: migrate: %w", err)
	}
	e := &Engine{
		store:       s,
		reg:         reg,
		useParallel: true,
		rulesHash:   reg.Hash(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// RulesChanged reports whether the rule tables differ from the ones the
// stored annotations were made with.
func (e *Engine) RulesChanged() bool {
	return e.store.RulesChanged(e.rulesHash)
}

// fileJob is one file to highlight.
type fileJob struct {
	path     string
	filetype string
	src      []byte
	hash     string
	bufferID int64
}

// HighlightFiles highlights paths, detecting each file's filetype from its
// extension. Unsupported, filtered-out and unchanged files are skipped,
// and files that no longer exist are dropped from the store. Errors on
// individual files do not stop the others.
func (e *Engine) HighlightFiles(ctx context.Context, paths []string) error {
	if e.RulesChanged() {
		if err := e.store.StoreRulesHash(e.rulesHash); err != nil {
			return fmt.Errorf("hilite: %w", err)
		}
		log.Info("rule tables changed, highlighting everything again")
	}

	var (
		jobs []fileJob
		errs []error
	)
	for _, path := range paths {
		ft, ok := runtime.LanguageForFile(path)
		if !ok || (e.languages != nil && !e.languages[ft]) {
			continue
		}
		job, skip, err := e.prepare(path, ft)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if !skip {
			jobs = append(jobs, job)
		}
	}

	if e.useParallel {
		errs = append(errs, e.highlightParallel(ctx, jobs)...)
	} else {
		for _, job := range jobs {
			if err := e.highlightInto(ctx, job); err != nil {
				errs = append(errs, fmt.Errorf("highlight %s: %w", job.path, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("highlighting had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// HighlightFile highlights one file as filetype (detected when empty)
// and returns its annotations, reusing the stored snapshot when the file is
// unchanged.
func (e *Engine) HighlightFile(ctx context.Context, path, filetype string) ([]props.Annotation, error) {
	if filetype == "" {
		ft, ok := runtime.LanguageForFile(path)
		if !ok {
			return nil, fmt.Errorf("%w for %s", ErrUnknownFiletype, path)
		}
		filetype = ft
	}
	if e.RulesChanged() {
		if err := e.store.StoreRulesHash(e.rulesHash); err != nil {
			return nil, fmt.Errorf("hilite: %w", err)
		}
	}
	job, skip, err := e.prepare(path, filetype)
	if err != nil {
		return nil, err
	}
	if !skip {
		if err := e.highlightInto(ctx, job); err != nil {
			return nil, err
		}
	}
	return e.Annotations(path)
}

// prepare reads path and decides whether it needs highlighting. Unchanged
// files are skipped; files that disappeared are forgotten.
func (e *Engine) prepare(path, filetype string) (fileJob, bool, error) {
	existing, err := e.store.BufferByPath(path)
	if err != nil {
		return fileJob{}, false, err
	}

	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && existing != nil {
		log.Infof("%s: gone, dropping its annotations", path)
		return fileJob{}, true, e.store.DeleteBufferData(existing.ID)
	}
	if err != nil {
		return fileJob{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(src)

	if existing != nil && existing.ContentHash == hash && existing.Filetype == filetype {
		snap, err := e.store.LoadSnapshot(existing.ID, hash, e.rulesHash)
		if err != nil {
			return fileJob{}, false, err
		}
		if snap != nil {
			log.Debugf("%s: unchanged", path)
			return fileJob{}, true, nil
		}
	}

	id, err := e.store.UpsertBuffer(&store.Buffer{
		Path:          path,
		Filetype:      filetype,
		ContentHash:   hash,
		LineCount:     lineCount(src),
		HighlightedAt: time.Now(),
	})
	if err != nil {
		return fileJob{}, false, err
	}
	return fileJob{path: path, filetype: filetype, src: src, hash: hash, bufferID: id}, false, nil
}

// highlightInto runs a pass with the store itself as the sink, then saves
// a snapshot of the result.
func (e *Engine) highlightInto(ctx context.Context, job fileJob) error {
	doc, err := document.New(int(job.bufferID), job.filetype, job.src)
	if err != nil {
		return err
	}
	m := sched.NewManual(time.Now())
	opts := append(append([]Option(nil), e.opts...), WithContext(ctx))
	h, err := New(e.reg, doc, job.filetype, e.store, m, opts...)
	if err != nil {
		return err
	}
	if err := doc.Parse(ctx); err != nil {
		return err
	}
	m.RunAll(maxCallbacks)
	if !h.Idle() {
		return fmt.Errorf("pass did not finish")
	}
	if n := h.Stats().SinkFailures; n > 0 {
		return fmt.Errorf("%d annotation write(s) failed", n)
	}

	anns, err := e.store.Annotations(int(job.bufferID))
	if err != nil {
		return err
	}
	return e.store.SaveSnapshot(job.bufferID, store.NewSnapshot(job.hash, e.rulesHash, anns))
}

// commit stores the annotations of a file highlighted off the store.
func (e *Engine) commit(job fileJob, anns []props.Annotation) error {
	if err := e.store.ReplaceAnnotations(int(job.bufferID), anns); err != nil {
		return err
	}
	return e.store.SaveSnapshot(job.bufferID, store.NewSnapshot(job.hash, e.rulesHash, anns))
}

// Annotations returns the stored annotations of path, from its snapshot
// when one is current. It returns nil for a file never highlighted.
func (e *Engine) Annotations(path string) ([]props.Annotation, error) {
	b, err := e.store.BufferByPath(path)
	if err != nil || b == nil {
		return nil, err
	}
	snap, err := e.store.LoadSnapshot(b.ID, b.ContentHash, e.rulesHash)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return snap.Annotations(), nil
	}
	return e.store.Annotations(int(b.ID))
}

// FiletypeSummary describes the stored buffers of one filetype.
type FiletypeSummary struct {
	Buffers []*store.Buffer
	Labels  map[string]int
}

// Summary returns the stored buffers of filetype and how often each label
// occurs across them.
func (e *Engine) Summary(filetype string) (*FiletypeSummary, error) {
	bufs, err := e.store.BuffersByFiletype(filetype)
	if err != nil {
		return nil, err
	}
	sum := &FiletypeSummary{Buffers: bufs, Labels: make(map[string]int)}
	for _, b := range bufs {
		counts, err := e.store.LabelCounts(int(b.ID))
		if err != nil {
			return nil, err
		}
		for l, n := range counts {
			sum.Labels[l] += n
		}
	}
	return sum, nil
}

func lineCount(src []byte) int {
	n := bytes.Count(src, []byte{'\n'})
	if len(src) > 0 && src[len(src)-1] != '\n' {
		n++
	}
	return n
}
