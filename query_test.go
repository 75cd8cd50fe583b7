package hilite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return &QueryBuilder{store: s}, s
}

func insertBuffer(t *testing.T, s *store.Store, path, filetype string, anns ...props.Annotation) int64 {
	t.Helper()
	id, err := s.UpsertBuffer(&store.Buffer{Path: path, Filetype: filetype, ContentHash: "h", HighlightedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAnnotations(int(id), anns))
	return id
}

func TestLabelsAt_NarrowestFirst(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	insertBuffer(t, s, "/a.py", "python",
		ann("DocString", 2, 5, 6, 8),
		ann("CalledFunction", 4, 9, 4, 14),
		ann("Keyword", 1, 1, 1, 4),
	)

	got, err := q.LabelsAt("/a.py", 4, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Location{File: "/a.py", Label: "CalledFunction", StartLine: 4, StartCol: 9, EndLine: 4, EndCol: 14}, got[0])
	assert.Equal(t, "DocString", got[1].Label)

	// End columns are exclusive.
	got, err = q.LabelsAt("/a.py", 4, 14)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "DocString", got[0].Label)

	// Before the start column of the first line.
	got, err = q.LabelsAt("/a.py", 2, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLabelsAt_UnknownFile(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	got, err := q.LabelsAt("/missing.py", 1, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindLabel(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	insertBuffer(t, s, "/src/a.py", "python", ann("Keyword", 1, 1, 1, 4), ann("Keyword", 3, 1, 3, 4), ann("Comment", 2, 1, 2, 5))
	insertBuffer(t, s, "/src/sub/b.py", "python", ann("Keyword", 1, 1, 1, 4))
	insertBuffer(t, s, "/src_utils/c.sh", "bash", ann("Keyword", 1, 1, 1, 3))

	res, err := q.FindLabel("Keyword", LocationFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount)
	require.Len(t, res.Items, 4)
	assert.Equal(t, "/src/a.py", res.Items[0].File)
	assert.Equal(t, 3, res.Items[1].StartLine)

	res, err = q.FindLabel("Keyword", LocationFilter{Filetype: "bash"}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "/src_utils/c.sh", res.Items[0].File)

	res, err = q.FindLabel("Keyword", LocationFilter{PathPrefix: "/src"}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)

	res, err = q.FindLabel("Keyword", LocationFilter{}, Pagination{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 3, res.Items[0].StartLine)
	assert.Equal(t, "/src/sub/b.py", res.Items[1].File)
}

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   Pagination
		want Pagination
	}{
		{Pagination{}, Pagination{Offset: 0, Limit: defaultLimit}},
		{Pagination{Offset: -3, Limit: 10}, Pagination{Offset: 0, Limit: 10}},
		{Pagination{Limit: 10000}, Pagination{Limit: maxLimit}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.normalize())
	}
}

func TestEngine_Query(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	py := writeFile(t, dir, "a.py", "import os\n")
	got, err := e.HighlightFile(t.Context(), py, "")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	locs, err := e.Query().LabelsAt(py, 1, 9)
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, "ImportedName", locs[0].Label)
}
