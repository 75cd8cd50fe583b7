package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/hilite/internal/syntax"
)

// ErrSyntax is returned by a strict Parser when the source has syntax
// errors.
var ErrSyntax = errors.New("runtime: source has syntax errors")

// Parser parses source text of one filetype. Parses are serialized, so a
// Parser may be shared by several highlighters.
type Parser struct {
	// Strict rejects trees containing ERROR or MISSING nodes. Embedded
	// handlers use it so that prose which merely looks like code stays
	// labelled as its host.
	Strict bool

	mu       sync.Mutex
	filetype string
	lang     *sitter.Language
	p        *sitter.Parser
}

// NewParser returns a Parser for filetype.
func NewParser(filetype string) (*Parser, error) {
	lang, ok := ParserForLanguage(filetype)
	if !ok {
		return nil, fmt.Errorf("runtime: no grammar for filetype %q", filetype)
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return &Parser{filetype: filetype, lang: lang, p: p}, nil
}

// Filetype returns the filetype the parser was created for.
func (p *Parser) Filetype() string { return p.filetype }

// Parse parses src from scratch.
func (p *Parser) Parse(ctx context.Context, src []byte) (syntax.Tree, error) {
	tree, err := p.ParseSitter(ctx, src)
	if err != nil {
		return nil, err
	}
	return syntax.FromSitter(tree), nil
}

// ParseSitter is Parse without the syntax adapter.
func (p *Parser) ParseSitter(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p == nil {
		return nil, fmt.Errorf("runtime: %s parser is closed", p.filetype)
	}

	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("runtime: parsing %s: %w", p.filetype, err)
	}
	if p.Strict && tree.RootNode().HasError() {
		tree.Close()
		return nil, ErrSyntax
	}
	return tree, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p != nil {
		p.p.Close()
		p.p = nil
	}
}
