package hilite

import (
	"fmt"
	"strings"

	"github.com/jward/hilite/internal/store"
)

// QueryBuilder answers questions about the annotations in an Engine's
// store.
type QueryBuilder struct {
	store *store.Store
}

// Query returns a QueryBuilder over the engine's store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Location is one stored annotation and the file holding it.
type Location struct {
	File      string
	Label     string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Pagination controls offset+limit paging on list results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// LocationFilter narrows FindLabel.
type LocationFilter struct {
	Filetype   string // exact match
	PathPrefix string // files under this directory
}

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE matching.
// "internal/store" -> "internal/store/" to prevent matching "internal/store_utils/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// LabelsAt returns the annotations of file covering the 1-based position
// (line, col), narrowest first. It returns nil for files not in the store.
func (q *QueryBuilder) LabelsAt(file string, line, col int) ([]Location, error) {
	b, err := q.store.BufferByPath(file)
	if err != nil {
		return nil, fmt.Errorf("labels at: lookup buffer: %w", err)
	}
	if b == nil {
		return nil, nil
	}

	// The position must fall within the span; end_col is exclusive.
	rows, err := q.store.DB().Query(
		`SELECT label, start_line, start_col, end_line, end_col FROM annotations
		 WHERE buffer_id = ? AND start_line <= ? AND end_line >= ?
		   AND (start_line < ? OR start_col <= ?)
		   AND (end_line > ? OR end_col > ?)
		 ORDER BY end_line - start_line, end_col - start_col, label`,
		b.ID, line, line,
		line, col,
		line, col,
	)
	if err != nil {
		return nil, fmt.Errorf("labels at: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		loc := Location{File: b.Path}
		if err := rows.Scan(&loc.Label, &loc.StartLine, &loc.StartCol, &loc.EndLine, &loc.EndCol); err != nil {
			return nil, fmt.Errorf("labels at: scan: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// FindLabel returns the stored annotations carrying label, ordered by file
// and position.
func (q *QueryBuilder) FindLabel(label string, filter LocationFilter, page Pagination) (*PagedResult[Location], error) {
	page = page.normalize()

	where := []string{"a.label = ?"}
	args := []any{label}
	if filter.Filetype != "" {
		where = append(where, "b.filetype = ?")
		args = append(args, filter.Filetype)
	}
	if prefix := normalizePathPrefix(filter.PathPrefix); prefix != "" {
		where = append(where, "b.path LIKE ?")
		args = append(args, prefix+"%")
	}
	from := " FROM annotations a JOIN buffers b ON b.id = a.buffer_id WHERE " + strings.Join(where, " AND ")

	var total int
	if err := q.store.DB().QueryRow("SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("find label: count: %w", err)
	}

	rows, err := q.store.DB().Query(
		"SELECT b.path, a.label, a.start_line, a.start_col, a.end_line, a.end_col"+from+
			" ORDER BY b.path, a.start_line, a.start_col LIMIT ? OFFSET ?",
		append(args, page.Limit, page.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("find label: %w", err)
	}
	defer rows.Close()

	result := &PagedResult[Location]{TotalCount: total}
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.File, &loc.Label, &loc.StartLine, &loc.StartCol, &loc.EndLine, &loc.EndCol); err != nil {
			return nil, fmt.Errorf("find label: scan: %w", err)
		}
		result.Items = append(result.Items, loc)
	}
	return result, rows.Err()
}
