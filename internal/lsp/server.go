// Package lsp serves highlight annotations as LSP semantic tokens.
//
// Each open document gets a Document, a Highlighter and an in-memory sink.
// All of them are owned by one sched.Loop: protocol handlers reach them
// through Loop.Do, and parses finish on the loop through Loop.Schedule.
package lsp

import (
	"context"
	"net/url"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/jward/hilite"
	"github.com/jward/hilite/internal/document"
	"github.com/jward/hilite/internal/pass"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/runtime"
	"github.com/jward/hilite/internal/sched"
	"github.com/jward/hilite/internal/syntax"
)

const serverName = "hilite"

// DefaultWait bounds how long a token request waits for a pass to finish
// before answering with what the sink holds.
const DefaultWait = 2 * time.Second

var log = commonlog.GetLogger("hilite.lsp")

// languageIDs maps client language identifiers that differ from
// filetype names.
var languageIDs = map[string]string{
	"shellscript": "bash",
	"sh":          "bash",
	"py":          "python",
}

type buffer struct {
	doc  *document.Document
	sink *props.MemorySink
	h    *hilite.Highlighter
}

// Server is a language server answering semantic token requests.
type Server struct {
	reg    *hilite.Registry
	opts   []hilite.Option
	loop   *sched.Loop
	legend *Legend
	wait   time.Duration

	// Touched on the loop only.
	docs   map[string]*buffer
	nextID int

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewServer loads every rule table in reg and builds the token legend from
// their labels. opts configure each document's Highlighter.
func NewServer(reg *hilite.Registry, version string, opts ...hilite.Option) *Server {
	errs, err := reg.LoadAll()
	if err != nil {
		log.Errorf("loading rules: %s", err)
	}
	for _, e := range errs {
		log.Warningf("%s", e)
	}

	s := &Server{
		reg:     reg,
		opts:    opts,
		loop:    sched.NewLoop(),
		legend:  NewLegend(reg.Labels()),
		wait:    DefaultWait,
		docs:    make(map[string]*buffer),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentSemanticTokensFull:  s.semanticTokensFull,
		TextDocumentSemanticTokensRange: s.semanticTokensRange,
	}
	s.server = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// Run serves on stdio until the client disconnects.
func (s *Server) Run() error {
	defer s.loop.Stop()
	return s.server.RunStdio()
}

// Legend returns the token legend.
func (s *Server) Legend() *Legend { return s.legend }

// Stop shuts the loop down. Pending passes are dropped.
func (s *Server) Stop() { s.loop.Stop() }

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	openClose := true
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &syncKind,
	}
	if opts, ok := capabilities.SemanticTokensProvider.(*protocol.SemanticTokensOptions); ok {
		opts.Legend = s.legend.Protocol()
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	s.loop.Stop()
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	return s.Open(string(doc.URI), doc.LanguageID, doc.Text)
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// With full sync the last change holds the whole text.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	return s.Change(string(params.TextDocument.URI), whole.Text)
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	return s.CloseDocument(string(params.TextDocument.URI))
}

func (s *Server) semanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	data, err := s.Tokens(string(params.TextDocument.URI))
	if err != nil || data == nil {
		return nil, err
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

func (s *Server) semanticTokensRange(ctx *glsp.Context, params *protocol.SemanticTokensRangeParams) (any, error) {
	start, end := int(params.Range.Start.Line), int(params.Range.End.Line)+1
	data, err := s.RangeTokens(string(params.TextDocument.URI), start, end)
	if err != nil || data == nil {
		return nil, err
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

// filetype picks the filetype for a document from its language identifier,
// then its path. It returns "" when neither has a rule table.
func (s *Server) filetype(uri, languageID string) string {
	if ft, ok := languageIDs[languageID]; ok {
		languageID = ft
	}
	if _, err := s.reg.Table(languageID); err == nil {
		return languageID
	}
	path := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		path = u.Path
	}
	if ft, ok := runtime.LanguageForFile(path); ok {
		if _, err := s.reg.Table(ft); err == nil {
			return ft
		}
	}
	return ""
}

// Open starts highlighting a document. Documents without a rule table are
// ignored. Opening an open URI replaces it.
func (s *Server) Open(uri, languageID, text string) error {
	ft := s.filetype(uri, languageID)
	if ft == "" {
		log.Debugf("no rules for %s (%s)", uri, languageID)
		return nil
	}
	return s.loop.Do(func() error {
		s.nextID++
		doc, err := document.New(s.nextID, ft, []byte(text))
		if err != nil {
			return err
		}
		sink := props.NewMemorySink()
		sink.SetText(doc.ID(), doc.Lines())
		h, err := hilite.New(s.reg, doc, ft, sink, s.loop, s.opts...)
		if err != nil {
			return err
		}
		b := &buffer{doc: doc, sink: sink, h: h}
		s.docs[uri] = b
		s.parse(uri, b)
		return nil
	})
}

// Change replaces the text of an open document.
func (s *Server) Change(uri, text string) error {
	return s.loop.Do(func() error {
		b, ok := s.docs[uri]
		if !ok {
			return nil
		}
		b.doc.SetText([]byte(text))
		b.sink.SetText(b.doc.ID(), b.doc.Lines())
		s.parse(uri, b)
		return nil
	})
}

// CloseDocument forgets a document.
func (s *Server) CloseDocument(uri string) error {
	return s.loop.Do(func() error {
		delete(s.docs, uri)
		return nil
	})
}

func (s *Server) parse(uri string, b *buffer) {
	post := func(fn func()) { s.loop.Schedule(0, fn) }
	b.doc.ParseAsync(context.Background(), post, func(err error) {
		log.Errorf("%s: %s", uri, err)
	})
}

// Tokens returns the encoded semantic tokens of a document, or nil when it
// is not open. It waits for the running pass, up to the server's wait
// time, and then answers with the annotations made so far.
func (s *Server) Tokens(uri string) ([]protocol.UInteger, error) {
	return s.tokens(uri, nil)
}

// RangeTokens is Tokens for 0-based lines [start, end). The range becomes
// the document's viewport so a running pass walks it first.
func (s *Server) RangeTokens(uri string, start, end int) ([]protocol.UInteger, error) {
	return s.tokens(uri, &syntax.LineRange{Start: start, End: end})
}

func (s *Server) tokens(uri string, view *syntax.LineRange) ([]protocol.UInteger, error) {
	if view != nil {
		err := s.loop.Do(func() error {
			if b, ok := s.docs[uri]; ok {
				b.doc.SetViewports(*view)
				b.h.HandleWindowScrolled()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(s.wait)
	for {
		var data []protocol.UInteger
		done := false
		err := s.loop.Do(func() error {
			b, ok := s.docs[uri]
			if !ok {
				done = true
				return nil
			}
			ready := b.doc.Current() && b.h.Idle() && b.h.State() == pass.Complete
			if !ready && time.Now().Before(deadline) {
				return nil
			}
			if !ready {
				log.Debugf("%s: answering before the pass finished", uri)
			}
			lines := b.doc.Lines()
			anns := b.sink.Annotations(b.doc.ID())
			if view != nil {
				data = EncodeRange(lines, anns, s.legend, view.Start, view.End)
			} else {
				data = EncodeTokens(lines, anns, s.legend)
			}
			done = true
			return nil
		})
		if err != nil || done {
			return data, err
		}
		time.Sleep(5 * time.Millisecond)
	}
}
