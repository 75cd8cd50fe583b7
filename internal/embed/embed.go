// Package embed classifies code embedded in a host node, such as a reST
// code block inside a Python docstring, with the grammar and rules of the
// embedded language.
package embed

import (
	"context"
	"sync"

	"github.com/jward/hilite/internal/syntax"
)

// Block locates one embedded code block inside the lines of a host node.
// Offset is the block's first line relative to the host's first line,
// Count the number of lines, and Indent the number of leading columns to
// strip from every line before parsing.
type Block struct {
	Offset int
	Count  int
	Indent int
}

// Finder locates embedded blocks in the lines spanned by a host node.
// Returned blocks must be sorted, non-overlapping and inside lines.
type Finder interface {
	FindEmbeddedCode(lines []string) []Block
}

// FinderFunc adapts a function to the Finder interface.
type FinderFunc func(lines []string) []Block

func (f FinderFunc) FindEmbeddedCode(lines []string) []Block {
	return f(lines)
}

// Parser parses embedded source text. A Parser is reused for every block it
// is given and is only called from the pass that owns it.
type Parser interface {
	Parse(ctx context.Context, src []byte) (syntax.Tree, error)
}

// Handler knows how to find and parse one embedded language.
type Handler struct {
	// Filetype selects the rule table used for the nested tree.
	Filetype string
	Finder   Finder
	Parser   Parser
}

type handlerKey struct {
	host string
	tag  string
}

// Registry maps (host filetype, embed tag) to a Handler. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[handlerKey]*Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[handlerKey]*Handler)}
}

// Register installs h for tag inside host, replacing any earlier handler.
func (r *Registry) Register(host, tag string, h *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerKey{host, tag}] = h
}

// Lookup returns the handler for tag inside host, or nil.
func (r *Registry) Lookup(host, tag string) *Handler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[handlerKey{host, tag}]
}
