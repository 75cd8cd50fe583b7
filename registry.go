package hilite

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jward/hilite/internal/config"
	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/runtime"
	"github.com/jward/hilite/rules"
)

// ErrUnknownFiletype is returned when no rule table exists for a filetype.
var ErrUnknownFiletype = errors.New("hilite: unknown filetype")

// table is the compiled rule table of one filetype. The root is swapped
// atomically so a running pass keeps the table it started with.
type table struct {
	root   atomic.Pointer[match.Node]
	source []byte
	labels []string
}

// Registry holds the compiled rule tables and embedded-language handlers
// shared by every Highlighter. It is safe for concurrent use.
type Registry struct {
	fsys fs.FS

	mu      sync.Mutex
	tables  map[string]*table
	unknown map[string]map[string]bool

	handlers *embed.Registry
	parsers  []*runtime.Parser
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRulesFS loads rule tables from fsys instead of the built-in ones.
func WithRulesFS(fsys fs.FS) RegistryOption {
	return func(r *Registry) {
		r.fsys = fsys
	}
}

// WithRulesDir loads rule tables from a directory on disk. An empty dir
// keeps the built-in tables.
func WithRulesDir(dir string) RegistryOption {
	return func(r *Registry) {
		if dir != "" {
			r.fsys = os.DirFS(dir)
		}
	}
}

// NewRegistry creates a Registry. Tables are compiled on first use.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		fsys:     rules.FS,
		tables:   make(map[string]*table),
		unknown:  make(map[string]map[string]bool),
		handlers: embed.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the compiled table for filetype, loading it from the rules
// source the first time. Rule errors are logged and the remaining rules
// still apply.
func (r *Registry) Table(filetype string) (*match.Node, error) {
	r.mu.Lock()
	t, ok := r.tables[filetype]
	r.mu.Unlock()
	if ok {
		return t.root.Load(), nil
	}
	if _, err := r.Rebuild(filetype); err != nil {
		return nil, err
	}
	r.mu.Lock()
	t = r.tables[filetype]
	r.mu.Unlock()
	return t.root.Load(), nil
}

// Rebuild recompiles filetype's table from the rules source. The returned
// rule errors describe skipped rules; the error is set only when the table
// could not be read at all.
func (r *Registry) Rebuild(filetype string) ([]error, error) {
	src, err := fs.ReadFile(r.fsys, rules.FileName(filetype))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w %q", ErrUnknownFiletype, filetype)
	}
	if err != nil {
		return nil, fmt.Errorf("hilite: read rules for %s: %w", filetype, err)
	}
	return r.SetRules(filetype, src), nil
}

// SetRules compiles src as filetype's rule table and installs it,
// replacing any earlier table. Passes already running keep the old one.
func (r *Registry) SetRules(filetype string, src []byte) []error {
	parsed, errs := match.ParseRules(strings.NewReader(string(src)))
	root, buildErrs := match.Build(parsed)
	errs = append(errs, buildErrs...)
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", rules.FileName(filetype), err)
	}

	seen := make(map[string]bool)
	var labels []string
	for _, rule := range parsed {
		if !seen[rule.Label] {
			seen[rule.Label] = true
			labels = append(labels, rule.Label)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[filetype]
	if !ok {
		t = &table{}
		r.tables[filetype] = t
	}
	t.source = src
	t.labels = labels
	t.root.Store(root)
	delete(r.unknown, filetype)
	return errs
}

// LoadAll compiles every table in the rules source and returns all rule
// errors found.
func (r *Registry) LoadAll() ([]error, error) {
	fts, err := rules.Filetypes(r.fsys)
	if err != nil {
		return nil, fmt.Errorf("hilite: list rules: %w", err)
	}
	var all []error
	for _, ft := range fts {
		errs, err := r.Rebuild(ft)
		if err != nil {
			return all, err
		}
		all = append(all, errs...)
	}
	return all, nil
}

// Filetypes returns the filetypes with a table, loaded or not, sorted.
func (r *Registry) Filetypes() []string {
	fts, _ := rules.Filetypes(r.fsys)
	r.mu.Lock()
	defer r.mu.Unlock()
	for ft := range r.tables {
		if !contains(fts, ft) {
			fts = append(fts, ft)
		}
	}
	sort.Strings(fts)
	return fts
}

// Labels returns every label used by the tables loaded so far, sorted.
func (r *Registry) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.tables {
		for _, l := range t.labels {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	return out
}

// TableLabels returns the labels of filetype's loaded table, sorted, or nil
// when it is not loaded.
func (r *Registry) TableLabels(filetype string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[filetype]
	if !ok {
		return nil
	}
	out := append([]string(nil), t.labels...)
	sort.Strings(out)
	return out
}

// NoteUnknownKind records that kind matched no rule in filetype's table and
// reports whether this is its first occurrence since the table was built.
func (r *Registry) NoteUnknownKind(filetype, kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := r.unknown[filetype]
	if kinds == nil {
		kinds = make(map[string]bool)
		r.unknown[filetype] = kinds
	}
	if kinds[kind] {
		return false
	}
	kinds[kind] = true
	return true
}

// UnknownKinds returns the node kinds of filetype that matched no rule,
// sorted.
func (r *Registry) UnknownKinds(filetype string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.unknown[filetype]))
	for k := range r.unknown[filetype] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterHandler installs the handler for nodes labelled embed:<tag> in
// host's table.
func (r *Registry) RegisterHandler(host, tag string, h *embed.Handler) {
	r.handlers.Register(host, tag, h)
}

// Handlers returns the embedded-language handlers.
func (r *Registry) Handlers() *embed.Registry {
	return r.handlers
}

// Configure registers a handler for every [[embed]] entry. Scripted finders
// are loaded through rt, which may be nil when no entry uses one.
func (r *Registry) Configure(ctx context.Context, embeds []config.Embed, rt *runtime.Runtime) error {
	var errs []error
	for i, e := range embeds {
		h, err := r.newHandler(ctx, e, rt)
		if err != nil {
			errs = append(errs, fmt.Errorf("embed[%d] %s/%s: %w", i, e.Host, e.Tag, err))
			continue
		}
		r.RegisterHandler(e.Host, e.Tag, h)
	}
	if len(errs) > 0 {
		return fmt.Errorf("hilite: configuring embeds had %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (r *Registry) newHandler(ctx context.Context, e config.Embed, rt *runtime.Runtime) (*embed.Handler, error) {
	var finder embed.Finder
	switch e.Finder {
	case config.FinderReST:
		finder = embed.ReSTFinder{}
	case config.FinderFence:
		finder = embed.FenceFinder{Info: e.Info}
	case config.FinderScript:
		if rt == nil {
			return nil, fmt.Errorf("finder %q needs a script runtime", e.Finder)
		}
		sf, err := rt.NewScriptFinder(ctx, e.Script)
		if err != nil {
			return nil, err
		}
		finder = sf
	default:
		return nil, fmt.Errorf("unknown finder %q", e.Finder)
	}

	p, err := runtime.NewParser(e.Language)
	if err != nil {
		return nil, err
	}
	p.Strict = true
	r.mu.Lock()
	r.parsers = append(r.parsers, p)
	r.mu.Unlock()
	return &embed.Handler{Filetype: e.Language, Finder: finder, Parser: p}, nil
}

// Hash returns a hex SHA-256 over every table's source, in filetype order.
// Tables installed with SetRules count with their installed text.
func (r *Registry) Hash() string {
	h := sha256.New()
	for _, ft := range r.Filetypes() {
		r.mu.Lock()
		t, ok := r.tables[ft]
		r.mu.Unlock()
		var src []byte
		if ok {
			src = t.source
		} else {
			var err error
			if src, err = fs.ReadFile(r.fsys, rules.FileName(ft)); err != nil {
				continue
			}
		}
		h.Write([]byte(ft))
		h.Write(src)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Close releases the parsers created by Configure.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.parsers {
		p.Close()
	}
	r.parsers = nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
