// Package match compiles highlight rules into a trie keyed by ancestor path
// elements and resolves a node's canonical path to the best matching label.
//
// The trie is built from each rule's segments in reverse (leaf first), so a
// lookup starts at a concrete node and walks outward through its ancestors,
// stopping as soon as no trie edge extends the match.
package match

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("hilite.match")

// Elem is one element of a canonical path: the node kind and the field name
// the node occupies in its parent ("" for none).
type Elem struct {
	Field string
	Kind  string
}

// key identifies a trie edge. A repeat edge (the `kind+` form) is distinct
// from the plain edge for the same kind, so rules sharing a prefix never
// inherit each other's repetition.
type key struct {
	field  string
	kind   string
	repeat bool
}

// matches reports whether an edge keyed by k accepts e. A bare-kind key
// accepts the kind under any field.
func (k key) matches(e Elem) bool {
	return k.kind == e.Kind && (k.field == "" || k.field == e.Field)
}

// Node is a trie node. A node with a non-empty Label terminates a match;
// any node may also have children extending the match to further ancestors.
// A node is immutable once Build returns.
type Node struct {
	Label string
	Embed string

	children map[key]*Node

	// via is the key of the edge that reaches this node. When repeat is
	// set, further ancestors accepted by via are consumed without leaving
	// the node (the `kind+` form).
	via    key
	repeat bool

	kinds map[string]bool // root only: every kind that starts a rule
}

// Build compiles rules into a new trie. Rules that fail to compile are
// skipped and reported; the remaining rules are still built. When two rules
// share the same path, the later one's label wins.
func Build(rules []Rule) (*Node, []error) {
	root := &Node{kinds: make(map[string]bool)}
	var errs []error
	for _, r := range rules {
		if r.Label == "" {
			errs = append(errs, &RuleError{Line: r.Line, Rule: r.Pattern, Reason: "missing label"})
			continue
		}
		segs, err := compilePattern(r.Pattern)
		if err != nil {
			errs = append(errs, &RuleError{Line: r.Line, Rule: r.Pattern, Reason: err.Error()})
			continue
		}
		node := root
		for i := len(segs) - 1; i >= 0; i-- {
			s := segs[i]
			k := key{field: s.field, kind: s.kind, repeat: s.repeat}
			child := node.children[k]
			if child == nil {
				child = &Node{via: k, repeat: s.repeat}
				if node.children == nil {
					node.children = make(map[key]*Node)
				}
				node.children[k] = child
			}
			node = child
		}
		node.Label = r.Label
		node.Embed = r.Embed
		root.kinds[segs[len(segs)-1].kind] = true
	}
	for _, err := range errs {
		log.Warningf("skipping rule: %s", err)
	}
	return root, errs
}

// HasKind reports whether any rule ends in kind. Only meaningful on a root.
func (n *Node) HasKind(kind string) bool {
	return n.kinds[kind]
}

// Find returns the best match for a canonical path (root first, leaf last),
// or nil when not even the leaf element matches a rule.
//
// The match consuming the longest unbroken run of ancestors wins. On equal
// length, the field-qualified edge beats the bare-kind edge, a plain edge
// beats a repeat edge for the same kind, and both beat staying on a repeat
// node.
func (n *Node) Find(path []Elem) *Node {
	if n == nil || len(path) == 0 {
		return nil
	}
	m, _ := n.search(path, len(path)-1, 0)
	return m
}

// search extends the match at n with path[idx] and its ancestors. consumed
// is the number of path elements already matched to reach n. It returns the
// deepest labelled node found below n and how many elements it consumed.
func (n *Node) search(path []Elem, idx, consumed int) (*Node, int) {
	e := path[idx]
	var (
		best      *Node
		bestDepth int
	)
	try := func(next *Node) {
		var (
			m *Node
			d int
		)
		if next.Label != "" {
			m, d = next, consumed+1
		}
		if idx > 0 {
			if dm, dd := next.search(path, idx-1, consumed+1); dm != nil && dd > d {
				m, d = dm, dd
			}
		}
		if m != nil && d > bestDepth {
			best, bestDepth = m, d
		}
	}

	if e.Field != "" {
		for _, rep := range []bool{false, true} {
			if c := n.children[key{field: e.Field, kind: e.Kind, repeat: rep}]; c != nil {
				try(c)
			}
		}
	}
	for _, rep := range []bool{false, true} {
		if c := n.children[key{kind: e.Kind, repeat: rep}]; c != nil {
			try(c)
		}
	}
	if n.repeat && n.via.matches(e) {
		try(n)
	}
	return best, bestDepth
}
