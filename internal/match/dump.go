package match

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dump writes an indented view of the trie, leaf kinds at the top level and
// ancestors nested below them. Repeat nodes are marked with `+ ...`.
func Dump(w io.Writer, root *Node) {
	dumpChildren(w, root, 0)
}

func dumpChildren(w io.Writer, n *Node, depth int) {
	keys := make([]key, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		if keys[i].field != keys[j].field {
			return keys[i].field < keys[j].field
		}
		return !keys[i].repeat && keys[j].repeat
	})
	pad := strings.Repeat("    ", depth)
	for _, k := range keys {
		child := n.children[k]
		name := k.kind
		if k.field != "" {
			name = k.field + ":" + k.kind
		}
		if child.repeat {
			name += "+ ..."
		}
		switch {
		case child.Label != "" && child.Embed != "":
			fmt.Fprintf(w, "%s%s -> %s (embed:%s)\n", pad, name, child.Label, child.Embed)
		case child.Label != "":
			fmt.Fprintf(w, "%s%s -> %s\n", pad, name, child.Label)
		default:
			fmt.Fprintf(w, "%s%s\n", pad, name)
		}
		dumpChildren(w, child, depth+1)
	}
}
