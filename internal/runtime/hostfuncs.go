package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
)

// sourceStore remembers the source and grammar of every tree a script
// parses, keyed by root node pointer, since smacker/go-tree-sitter nodes
// cannot reach their tree.
type sourceStore struct {
	mu      sync.RWMutex
	sources map[uintptr][]byte          // root node ptr → source bytes
	langs   map[uintptr]*sitter.Language // root node ptr → language
}

func newSourceStore() *sourceStore {
	return &sourceStore{
		sources: make(map[uintptr][]byte),
		langs:   make(map[uintptr]*sitter.Language),
	}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	root := tree.RootNode()
	key := uintptr(unsafe.Pointer(root))
	s.mu.Lock()
	s.sources[key] = src
	s.langs[key] = lang
	s.mu.Unlock()
}

// rootOf walks a node up to its root via Parent().
func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) sourceForNode(node *sitter.Node) ([]byte, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	src, ok := s.sources[key]
	s.mu.RUnlock()
	return src, ok
}

func (s *sourceStore) languageForNode(node *sitter.Node) (*sitter.Language, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	lang, ok := s.langs[key]
	s.mu.RUnlock()
	return lang, ok
}

// toNode unwraps a proxied *sitter.Node argument.
func toNode(obj object.Object) (*sitter.Node, error) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, fmt.Errorf("expected proxy (Node), got %s", obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("expected *sitter.Node, got %T", proxy.Interface())
	}
	return node, nil
}

// proxyOr proxies v, or returns a script error naming fn.
func proxyOr(fn string, v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// makeParseSrcFn creates "parse_src".
//
// parse_src(source, filetype) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		filetype, err := toString(args[1])
		if err != nil {
			return object.Errorf("parse_src: filetype: %v", err)
		}
		lang, found := ParserForLanguage(filetype)
		if !found {
			return object.Errorf("parse_src: unsupported filetype %q", filetype)
		}

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(lang)
		tree, err := parser.ParseCtx(ctx, nil, []byte(src))
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		ss.store(tree, []byte(src), lang)
		return proxyOr("parse_src", tree)
	})
}

// makeNodeTextFn creates "node_text". Scripts cannot hand a []byte to
// node.Content, so the source is looked up from the parse that produced
// the node.
//
// node_text(node) → string
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, err := toNode(args[0])
		if err != nil {
			return object.Errorf("node_text: %v", err)
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("node_text: node was not produced by parse_src")
		}
		return object.NewString(node.Content(src))
	})
}

// makeQueryFn creates "query", which runs a tree-sitter query below node
// and returns one map per match from capture name to node.
//
// query(pattern, node) → []map[string]Node
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, err := toNode(args[1])
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		lang, haveLang := ss.languageForNode(node)
		src, haveSrc := ss.sourceForNode(node)
		if !haveLang || !haveSrc {
			return object.Errorf("query: node was not produced by parse_src")
		}

		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			m, ok := cursor.NextMatch()
			if !ok {
				break
			}
			m = cursor.FilterPredicates(m, src)
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				name := q.CaptureNameForId(c.Index)
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: capture %q: %v", name, err)
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child". A missing field yields nil rather
// than a proxied nil pointer.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, err := toNode(args[0])
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		return proxyOr("node_child", child)
	})
}

// makeIndentOfFn creates "indent_of", the width of a line's leading
// blanks.
//
// indent_of(line) → int
func makeIndentOfFn() *object.Builtin {
	return object.NewBuiltin("indent_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("indent_of", 1, len(args))
		}
		line, err := toString(args[0])
		if err != nil {
			return object.Errorf("indent_of: %v", err)
		}
		return object.NewInt(int64(len(line) - len(strings.TrimLeft(line, " \t"))))
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	log commonlog.Logger
}

func (l *logObject) Info(msg string) {
	l.log.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.log.Warning(msg)
}

func (l *logObject) Error(msg string) {
	l.log.Error(msg)
}
