package hilite

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/hilite/internal/config"
	"github.com/jward/hilite/internal/embed"
	"github.com/jward/hilite/internal/match"
	"github.com/jward/hilite/internal/runtime"
)

func TestRegistry_BuiltinTables(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	root, err := reg.Table("python")
	require.NoError(t, err)
	m := root.Find([]match.Elem{{Kind: "module"}, {Kind: "class_definition"}, {Field: "name", Kind: "identifier"}})
	require.NotNil(t, m)
	assert.Equal(t, "ClassName", m.Label)

	assert.Equal(t, []string{"bash", "go", "python"}, reg.Filetypes())
	assert.Contains(t, reg.Labels(), "DocString")
	assert.Contains(t, reg.TableLabels("python"), "ClassName")
	assert.Nil(t, reg.TableLabels("bash"))
}

func TestRegistry_UnknownFiletype(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	_, err := reg.Table("cobol")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFiletype))
}

func TestRegistry_RulesFS(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(WithRulesFS(fstest.MapFS{
		"python.rules": {Data: []byte("identifier  Name\nbad:  X\n")},
	}))

	errs, err := reg.LoadAll()
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "python.rules: line 2")

	root, err := reg.Table("python")
	require.NoError(t, err)
	assert.Equal(t, "Name", root.Find([]match.Elem{{Kind: "identifier"}}).Label)
	assert.Equal(t, []string{"python"}, reg.Filetypes())
}

func TestRegistry_SetRulesSwapsTable(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	old, err := reg.Table("python")
	require.NoError(t, err)

	errs := reg.SetRules("python", []byte("identifier  Name\n"))
	require.Empty(t, errs)
	cur, err := reg.Table("python")
	require.NoError(t, err)

	assert.NotSame(t, old, cur)
	assert.Equal(t, "Identifier", old.Find([]match.Elem{{Kind: "identifier"}}).Label)
	assert.Equal(t, "Name", cur.Find([]match.Elem{{Kind: "identifier"}}).Label)
}

func TestRegistry_SetRulesNewFiletype(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.Empty(t, reg.SetRules("toy", []byte("word  Word\n")))

	root, err := reg.Table("toy")
	require.NoError(t, err)
	assert.Equal(t, "Word", root.Find([]match.Elem{{Kind: "word"}}).Label)
	assert.Contains(t, reg.Filetypes(), "toy")
}

func TestRegistry_NoteUnknownKind(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	assert.True(t, reg.NoteUnknownKind("python", "lambda_parameters"))
	assert.False(t, reg.NoteUnknownKind("python", "lambda_parameters"))
	assert.True(t, reg.NoteUnknownKind("bash", "lambda_parameters"))
	assert.Equal(t, []string{"lambda_parameters"}, reg.UnknownKinds("python"))

	// A rebuilt table starts over.
	reg.SetRules("python", []byte("identifier  Name\n"))
	assert.Empty(t, reg.UnknownKinds("python"))
	assert.True(t, reg.NoteUnknownKind("python", "lambda_parameters"))
}

func TestRegistry_Hash(t *testing.T) {
	t.Parallel()
	a := NewRegistry()
	b := NewRegistry()
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), 64)

	// Loading a table does not change the hash; changing its text does.
	before := a.Hash()
	_, err := a.Table("python")
	require.NoError(t, err)
	assert.Equal(t, before, a.Hash())

	a.SetRules("python", []byte("identifier  Name\n"))
	assert.NotEqual(t, before, a.Hash())
}

func TestRegistry_Configure(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	defer reg.Close()

	scripts := fstest.MapFS{
		"finders/heredoc.risor": {Data: []byte("[]")},
	}
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts))

	err := reg.Configure(context.Background(), []config.Embed{
		{Host: "python", Tag: "python", Language: "python", Finder: config.FinderReST},
		{Host: "python", Tag: "shell", Language: "bash", Finder: config.FinderFence, Info: []string{"sh"}},
		{Host: "bash", Tag: "heredoc", Language: "python", Finder: config.FinderScript, Script: "finders/heredoc.risor"},
	}, rt)
	require.NoError(t, err)

	h := reg.Handlers().Lookup("python", "python")
	require.NotNil(t, h)
	assert.Equal(t, "python", h.Filetype)
	assert.IsType(t, embed.ReSTFinder{}, h.Finder)
	p, ok := h.Parser.(*runtime.Parser)
	require.True(t, ok)
	assert.True(t, p.Strict)

	h = reg.Handlers().Lookup("python", "shell")
	require.NotNil(t, h)
	assert.Equal(t, embed.FenceFinder{Info: []string{"sh"}}, h.Finder)

	h = reg.Handlers().Lookup("bash", "heredoc")
	require.NotNil(t, h)
	assert.IsType(t, &runtime.ScriptFinder{}, h.Finder)
}

func TestRegistry_ConfigureErrors(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	defer reg.Close()

	err := reg.Configure(context.Background(), []config.Embed{
		{Host: "python", Tag: "x", Language: "cobol", Finder: config.FinderReST},
		{Host: "python", Tag: "y", Language: "python", Finder: config.FinderScript, Script: "missing.risor"},
		{Host: "python", Tag: "z", Language: "python", Finder: config.FinderFence},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "had 2 error(s)")
	assert.Contains(t, err.Error(), `no grammar for filetype "cobol"`)
	assert.Contains(t, err.Error(), "needs a script runtime")

	// The valid entry is still registered.
	assert.NotNil(t, reg.Handlers().Lookup("python", "z"))
}
