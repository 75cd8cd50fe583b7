package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor/object"

	"github.com/jward/hilite/internal/embed"
)

// ScriptFinder locates embedded blocks with a Risor script. The script
// sees the host node's lines as the global `lines` (a list of strings)
// and must evaluate to a list of maps with keys "offset", "count" and,
// optionally, "indent":
//
//	blocks := []
//	for i := 0; i < len(lines); i++ {
//	    if lines[i] == "```" { ... }
//	}
//	blocks
//
// A failing script yields no blocks; the host is then labelled whole.
type ScriptFinder struct {
	rt     *Runtime
	name   string
	source string
	ctx    context.Context
}

var _ embed.Finder = (*ScriptFinder)(nil)

// NewScriptFinder loads the finder script at path through the runtime's
// script loader.
func (r *Runtime) NewScriptFinder(ctx context.Context, path string) (*ScriptFinder, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return &ScriptFinder{rt: r, name: path, source: src, ctx: ctx}, nil
}

// NewInlineFinder returns a ScriptFinder for script source.
func (r *Runtime) NewInlineFinder(ctx context.Context, name, source string) *ScriptFinder {
	return &ScriptFinder{rt: r, name: name, source: source, ctx: ctx}
}

func (f *ScriptFinder) FindEmbeddedCode(lines []string) []embed.Block {
	result, err := f.rt.eval(f.ctx, f.source, f.name, map[string]any{
		"lines": stringList(lines),
	})
	if err != nil {
		f.rt.log.Warningf("finder %s: %v", f.name, err)
		return nil
	}
	blocks, err := toBlocks(result, len(lines))
	if err != nil {
		f.rt.log.Warningf("finder %s: %v", f.name, err)
		return nil
	}
	return blocks
}

// toBlocks converts a script result into blocks. Blocks are sorted by
// offset; a block that leaves the host or overlaps its predecessor makes
// the whole result invalid.
func toBlocks(result object.Object, nLines int) ([]embed.Block, error) {
	if result == nil || result == object.Nil {
		return nil, nil
	}
	items, err := extractList(result)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}

	blocks := make([]embed.Block, 0, len(items))
	for i, item := range items {
		m, err := extractMap(item)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		var b embed.Block
		if b.Offset, err = getInt(m, "offset"); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if b.Count, err = getInt(m, "count"); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if b.Indent, err = getIntDefault(m, "indent", 0); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if b.Offset < 0 || b.Count < 1 || b.Indent < 0 || b.Offset+b.Count > nLines {
			return nil, fmt.Errorf("block %d: %+v outside %d line(s)", i, b, nLines)
		}
		blocks = append(blocks, b)
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Offset < blocks[j].Offset })
	for i := 1; i < len(blocks); i++ {
		prev := blocks[i-1]
		if blocks[i].Offset < prev.Offset+prev.Count {
			return nil, fmt.Errorf("blocks at offsets %d and %d overlap", prev.Offset, blocks[i].Offset)
		}
	}
	return blocks, nil
}
