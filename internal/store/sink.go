package store

import (
	"fmt"

	"github.com/jward/hilite/internal/props"
)

// Store is a props.Sink: buffer numbers are buffer row ids.
var _ props.Sink = (*Store)(nil)

// RemoveAnnotations deletes annotations touching lines [lineStart, lineEnd).
func (s *Store) RemoveAnnotations(buf, lineStart, lineEnd int) error {
	_, err := s.db.Exec(
		"DELETE FROM annotations WHERE buffer_id = ? AND start_line < ? AND last_line >= ?",
		buf, lineEnd, lineStart,
	)
	if err != nil {
		return fmt.Errorf("remove annotations: %w", err)
	}
	return nil
}

// AddAnnotations stores label over every range in one transaction. A
// malformed range rejects the whole call.
func (s *Store) AddAnnotations(buf int, label string, ranges []props.Range) error {
	for _, r := range ranges {
		if r.StartLine < 1 || r.StartCol < 1 || r.EndLine < r.StartLine ||
			(r.EndLine == r.StartLine && r.EndCol < r.StartCol) {
			return fmt.Errorf("%w: %s %s", props.ErrInvalidRange, label, r)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("add annotations: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO annotations (buffer_id, label, start_line, start_col, end_line, end_col, last_line) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("add annotations: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range ranges {
		if _, err := stmt.Exec(buf, label, r.StartLine, r.StartCol, r.EndLine, r.EndCol, r.LastLine()); err != nil {
			return fmt.Errorf("add annotations: %s %s: %w", label, r, err)
		}
	}
	return tx.Commit()
}

// Annotations returns the annotations of buf sorted by position.
func (s *Store) Annotations(buf int) ([]props.Annotation, error) {
	rows, err := s.db.Query(
		"SELECT label, start_line, start_col, end_line, end_col FROM annotations WHERE buffer_id = ?", buf,
	)
	if err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}
	defer rows.Close()

	var out []props.Annotation
	for rows.Next() {
		var a props.Annotation
		if err := rows.Scan(&a.Label, &a.StartLine, &a.StartCol, &a.EndLine, &a.EndCol); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}
	props.SortAnnotations(out)
	return out, nil
}

// LabelCounts returns how many annotations of each label buf holds.
func (s *Store) LabelCounts(buf int) (map[string]int, error) {
	rows, err := s.db.Query(
		"SELECT label, COUNT(*) FROM annotations WHERE buffer_id = ? GROUP BY label", buf,
	)
	if err != nil {
		return nil, fmt.Errorf("label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// ReplaceAnnotations swaps the annotations of buf for anns in one
// transaction.
func (s *Store) ReplaceAnnotations(buf int, anns []props.Annotation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace annotations: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM annotations WHERE buffer_id = ?", buf); err != nil {
		return fmt.Errorf("replace annotations: %w", err)
	}
	for _, a := range anns {
		_, err := tx.Exec(
			"INSERT INTO annotations (buffer_id, label, start_line, start_col, end_line, end_col, last_line) VALUES (?, ?, ?, ?, ?, ?, ?)",
			buf, a.Label, a.StartLine, a.StartCol, a.EndLine, a.EndCol, a.LastLine(),
		)
		if err != nil {
			return fmt.Errorf("replace annotations: %s %s: %w", a.Label, a.Range, err)
		}
	}
	return tx.Commit()
}
