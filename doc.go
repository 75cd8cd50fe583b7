// Package hilite classifies the nodes of tree-sitter syntax trees into
// highlight labels and keeps a buffer's label annotations in step with its
// incrementally reparsed tree, without blocking the loop that owns the
// buffer.
//
// # Rules
//
// Labels come from per-filetype rule tables. A rule names a node kind and,
// optionally, the ancestors it must sit under, leaf last:
//
//	class_definition
//	    identifier      ClassName
//	call.attribute+
//	    identifier      CalledMethod
//	module.expression_statement
//	    string          DocString   embed:python
//
// A node gets the label of the rule matching the longest run of its
// ancestors. Tables for Python, Bash and Go are built in (see package
// rules); [WithRulesDir] replaces them.
//
// # Passes
//
// A [Highlighter] binds a [Registry] to one [Document]. Each new tree
// starts a pass that walks the tree one top-level node at a time, sends
// labelled ranges to a sink in batches, and yields to the scheduler once
// its time slice is spent. Trees that arrive mid-pass are remembered and
// trigger a whole-buffer pass when the current one ends.
//
//	reg := hilite.NewRegistry()
//	doc, _ := document.New(1, "python", src)
//	h, err := hilite.New(reg, doc, "python", sink, loop)
//	if err != nil { ... }
//	err = doc.Parse(ctx) // the pass starts from the tree notification
//
// [Highlight] runs one pass synchronously, and [Engine] highlights files on
// disk into a SQLite store, skipping files whose content and rules have
// not changed.
//
// # Embedded languages
//
// A rule marked embed:<tag> hands matching nodes to the handler registered
// for (filetype, tag). The handler finds code blocks in the node's lines,
// such as reST literal blocks in a docstring, parses each, and classifies
// the result with the embedded language's table. See [Registry.Configure].
package hilite
