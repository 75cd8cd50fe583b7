package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/hilite"
	"github.com/jward/hilite/internal/document"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/syntax"
)

var flagLine int

var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Print the parse tree with each node's path and label",
	Long: `Prints every node of the file's parse tree together with its canonical path
(root first, field:kind for fields) and the label the rule table gives it. Nodes
without a label have no matching rule.`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().StringVar(&flagFiletype, "filetype", "", "filetype to use instead of detecting it from the extension")
	treeCmd.Flags().IntVar(&flagLine, "line", 0, "only print nodes touching this 1-based line")
}

func runTree(cmd *cobra.Command, args []string) error {
	path := args[0]
	ft, err := filetypeFor(path)
	if err != nil {
		return outputError("tree", err)
	}
	reg := hilite.NewRegistry(hilite.WithRulesDir(rulesDir()))
	defer reg.Close()
	table, err := reg.Table(ft)
	if err != nil {
		return outputError("tree", err)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return outputError("tree", err)
	}
	doc, err := document.New(1, ft, src)
	if err != nil {
		return outputError("tree", err)
	}
	if err := doc.Parse(context.Background()); err != nil {
		return outputError("tree", err)
	}

	nodes := treeNodes(doc.CurrentTree(), table, flagLine)
	return outputResult(CLIResult{Command: "tree", Results: nodes})
}

// treeNodes lists the nodes of tree in pre-order with the labels table
// resolves for them. A positive line keeps only nodes touching it.
func treeNodes(tree syntax.Tree, table *match.Node, line int) []CLITreeNode {
	var out []CLITreeNode
	var visit func(n syntax.Node, field string, path []match.Elem, depth int)
	visit = func(n syntax.Node, field string, path []match.Elem, depth int) {
		r := props.FromPoints(n.StartPoint(), n.EndPoint())
		if line <= 0 || r.TouchesLines(line, line+1) {
			node := CLITreeNode{
				Depth:     depth,
				Path:      pathString(path),
				Kind:      n.Kind(),
				Field:     field,
				StartLine: r.StartLine,
				StartCol:  r.StartCol,
				EndLine:   r.EndLine,
				EndCol:    r.EndCol,
			}
			if m := table.Find(path); m != nil {
				node.Label = m.Label
				node.Embed = m.Embed
			}
			out = append(out, node)
		}
		for i := 0; i < n.ChildCount(); i++ {
			child := n.Child(i)
			f := n.FieldNameForChild(i)
			visit(child, f, append(path[:len(path):len(path)], match.Elem{Field: f, Kind: child.Kind()}), depth+1)
		}
	}
	root := tree.Root()
	visit(root, "", []match.Elem{{Kind: root.Kind()}}, 0)
	return out
}

// pathString writes a canonical path the way rule patterns spell it.
func pathString(path []match.Elem) string {
	parts := make([]string, len(path))
	for i, e := range path {
		if e.Field != "" {
			parts[i] = e.Field + ":" + e.Kind
		} else {
			parts[i] = e.Kind
		}
	}
	return strings.Join(parts, ".")
}
