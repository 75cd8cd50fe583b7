package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/commonlog"
)

const pythonSource = `def greet(name):
    """Say hello.

    Example::

        greet("x")
    """
    return "hello " + name


class Greeter:
    def run(self):
        pass
`

// parsePythonSource parses src with tree-sitter directly and registers it
// in a Runtime's source store.
func parsePythonSource(t *testing.T, src string) (*sitter.Tree, *Runtime) {
	t.Helper()

	rt := NewRuntime("")
	lang, ok := ParserForLanguage("python")
	require.True(t, ok)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	rt.sources.store(tree, []byte(src), lang)
	return tree, rt
}

func listStrings(t *testing.T, obj object.Object) []string {
	t.Helper()
	items, err := extractList(obj)
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, item := range items {
		out[i], err = toString(item)
		require.NoError(t, err)
	}
	return out
}

type recordingLogger struct {
	commonlog.MockLogger
	lines []string
}

func (l *recordingLogger) Info(msg string, kv ...any)    { l.lines = append(l.lines, "info: "+msg) }
func (l *recordingLogger) Warning(msg string, kv ...any) { l.lines = append(l.lines, "warn: "+msg) }

func (l *recordingLogger) Warningf(format string, args ...any) {
	l.lines = append(l.lines, "warnf: "+format)
}

// --- Language detection tests ---

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"script.py", "python", true},
		{"stubs.pyi", "python", true},
		{"build.sh", "bash", true},
		{"env.bash", "bash", true},
		{"main.go", "go", true},
		{"app.js", "javascript", true},
		{"app.ts", "typescript", true},
		{"lib.rs", "rust", true},
		{"util.h", "c", true},
		{"README.rst", "", false},
		{"Makefile", "", false},
		{"path/to/TOOL.PY", "python", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParserForLanguage(t *testing.T) {
	t.Parallel()

	for _, ft := range Filetypes() {
		t.Run(ft, func(t *testing.T) {
			t.Parallel()
			l, ok := ParserForLanguage(ft)
			assert.True(t, ok)
			assert.NotNil(t, l)
		})
	}

	_, ok := ParserForLanguage("cobol")
	assert.False(t, ok)
}

func TestFiletypes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"bash", "c", "go", "javascript", "python", "rust", "typescript"}, Filetypes())
}

// --- Parser tests ---

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	p, err := NewParser("python")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "python", p.Filetype())

	tree, err := p.Parse(context.Background(), []byte(pythonSource))
	require.NoError(t, err)
	root := tree.Root()
	assert.Equal(t, "module", root.Kind())
	require.Equal(t, 2, root.ChildCount())
	assert.Equal(t, "function_definition", root.Child(0).Kind())
	assert.Equal(t, "class_definition", root.Child(1).Kind())
	assert.Equal(t, 10, root.Child(1).StartPoint().Row)
}

func TestParser_Reused(t *testing.T) {
	t.Parallel()

	p, err := NewParser("bash")
	require.NoError(t, err)
	defer p.Close()

	for _, src := range []string{"echo hi\n", "x=1\nls -l\n"} {
		tree, err := p.Parse(context.Background(), []byte(src))
		require.NoError(t, err)
		assert.Equal(t, "program", tree.Root().Kind())
	}
}

func TestParser_Strict(t *testing.T) {
	t.Parallel()

	broken := []byte("def (:\n")

	lenient, err := NewParser("python")
	require.NoError(t, err)
	defer lenient.Close()
	tree, err := lenient.Parse(context.Background(), broken)
	require.NoError(t, err)
	assert.NotNil(t, tree.Root())

	strict, err := NewParser("python")
	require.NoError(t, err)
	defer strict.Close()
	strict.Strict = true
	_, err = strict.Parse(context.Background(), broken)
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = strict.Parse(context.Background(), []byte("x = 1\n"))
	assert.NoError(t, err)
}

func TestParser_UnknownFiletype(t *testing.T) {
	t.Parallel()
	_, err := NewParser("cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cobol"`)
}

func TestParser_Closed(t *testing.T) {
	t.Parallel()

	p, err := NewParser("python")
	require.NoError(t, err)
	p.Close()
	p.Close()
	_, err = p.Parse(context.Background(), []byte("x = 1\n"))
	assert.Error(t, err)
}

// --- host function tests ---

func TestNodeText_FunctionName(t *testing.T) {
	tree, rt := parsePythonSource(t, pythonSource)
	defer tree.Close()

	fn := tree.RootNode().NamedChild(0)
	name := fn.ChildByFieldName("name")
	require.NotNil(t, name)

	proxy, err := object.NewProxy(name)
	require.NoError(t, err)

	result := makeNodeTextFn(rt.sources).Call(context.Background(), proxy)
	s, err := toString(result)
	require.NoError(t, err)
	assert.Equal(t, "greet", s)
}

func TestNodeText_UnknownTree(t *testing.T) {
	tree, _ := parsePythonSource(t, pythonSource)
	defer tree.Close()

	proxy, err := object.NewProxy(tree.RootNode())
	require.NoError(t, err)

	result := makeNodeTextFn(newSourceStore()).Call(context.Background(), proxy)
	assert.Equal(t, object.ERROR, result.Type())
}

func TestIndentOf(t *testing.T) {
	t.Parallel()

	fn := makeIndentOfFn()
	tests := []struct {
		line string
		want int64
	}{
		{"", 0},
		{"x", 0},
		{"    x", 4},
		{"\t  x", 3},
		{"   ", 3},
	}
	for _, tt := range tests {
		got := fn.Call(context.Background(), object.NewString(tt.line))
		n, err := toInt64(got)
		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.want, n, "line %q", tt.line)
	}

	bad := fn.Call(context.Background(), object.NewInt(3))
	assert.Equal(t, object.ERROR, bad.Type())
}

// --- Risor integration tests (via RunSource) ---

func TestRunSource_QueryFunctionNames(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src(src, "python")
root := tree.RootNode()
matches := query("(function_definition name: (identifier) @name)", root)
names := []
for i := 0; i < len(matches); i++ {
    names.append(node_text(matches[i]["name"]))
}
names
`
	result, err := rt.RunSource(context.Background(), script, map[string]any{
		"src": pythonSource,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"greet", "run"}, listStrings(t, result))
}

func TestRunSource_NodeChild(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src(src, "python")
cls := tree.RootNode().NamedChild(1)
missing := node_child(cls, "superclasses")
assert(missing == nil, "expected nil superclasses")
node_text(node_child(cls, "name"))
`
	result, err := rt.RunSource(context.Background(), script, map[string]any{
		"src": pythonSource,
	})
	require.NoError(t, err)
	s, err := toString(result)
	require.NoError(t, err)
	assert.Equal(t, "Greeter", s)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src(src, "python")
query("(not_a_real_node_type @x)", tree.RootNode())
`
	_, err := rt.RunSource(context.Background(), script, map[string]any{
		"src": pythonSource,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestRunSource_UnsupportedFiletype(t *testing.T) {
	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `parse_src("x", "cobol")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported filetype")
}

func TestRunSource_LogGoesToLogger(t *testing.T) {
	l := &recordingLogger{}
	rt := NewRuntime("", WithScriptLogger(l))

	_, err := rt.RunSource(context.Background(), `
log.Info("scanning")
log.Warn("odd block")
`, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"info: scanning", "warn: odd block"}, l.lines)
}

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sum.risor"), []byte(`1 + 1`), 0644))

	rt := NewRuntime(dir)
	result, err := rt.RunScript(context.Background(), "sum.risor", nil)
	require.NoError(t, err)
	n, err := toInt64(result)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(t.TempDir())
	_, err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

// --- script loading tests ---

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"finders/python_rst.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript(FinderScriptPath("python", "rst"))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/finders/python_rst.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript(filepath.Join(dir, "test.risor"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFinderScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("finders", "python_rst.risor"), FinderScriptPath("python", "rst"))
}

// --- Importer wiring tests ---

func TestImport_FSImporter(t *testing.T) {
	mapFS := fstest.MapFS{
		"fences.risor": &fstest.MapFile{Data: []byte(`
func is_fence(line) {
	return line == "~~~"
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import fences

assert(fences.is_fence("~~~"), "expected a fence")
assert(!fences.is_fence("x"), "expected no fence")
`
	_, err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// The imported module refers to the host-provided indent_of global.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.risor"), []byte(`
func depth(line) {
	return indent_of(line)
}
`), 0644))

	rt := NewRuntime(dir)

	script := `
import helper

result := helper.depth("    x")
assert(result == 4, 'expected 4, got {result}')
`
	_, err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestNewRuntime_Importer(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("/some/dir")
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.buildImporter(nil))

	assert.Nil(t, NewRuntime("").buildImporter(nil))
}
