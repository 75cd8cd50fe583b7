package store

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"
)

// Buffer is one highlighted file.
type Buffer struct {
	ID            int64
	Path          string
	Filetype      string
	ContentHash   string
	LineCount     int
	HighlightedAt time.Time
}

// ContentHash returns the hash recorded for buffer text.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// UpsertBuffer inserts b, or updates the row with the same path. b.ID is
// set to the row id.
func (s *Store) UpsertBuffer(b *Buffer) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
INSERT INTO buffers (path, filetype, content_hash, line_count, highlighted_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  filetype = excluded.filetype,
  content_hash = excluded.content_hash,
  line_count = excluded.line_count,
  highlighted_at = excluded.highlighted_at
RETURNING id`,
		b.Path, b.Filetype, b.ContentHash, b.LineCount, b.HighlightedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert buffer: %w", err)
	}
	b.ID = id
	return id, nil
}

// BufferByPath returns the buffer stored for path, or nil.
func (s *Store) BufferByPath(path string) (*Buffer, error) {
	return s.scanBuffer(s.db.QueryRow(
		"SELECT id, path, filetype, content_hash, line_count, highlighted_at FROM buffers WHERE path = ?", path,
	))
}

// BufferByID returns the buffer with id, or nil.
func (s *Store) BufferByID(id int64) (*Buffer, error) {
	return s.scanBuffer(s.db.QueryRow(
		"SELECT id, path, filetype, content_hash, line_count, highlighted_at FROM buffers WHERE id = ?", id,
	))
}

func (s *Store) scanBuffer(row *sql.Row) (*Buffer, error) {
	b := &Buffer{}
	var hash sql.NullString
	var lines sql.NullInt64
	var at sql.NullTime
	err := row.Scan(&b.ID, &b.Path, &b.Filetype, &hash, &lines, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan buffer: %w", err)
	}
	b.ContentHash = hash.String
	b.LineCount = int(lines.Int64)
	b.HighlightedAt = at.Time
	return b, nil
}

// BuffersByFiletype lists buffers of one filetype ordered by path.
func (s *Store) BuffersByFiletype(filetype string) ([]*Buffer, error) {
	rows, err := s.db.Query(
		"SELECT id, path, filetype, content_hash, line_count, highlighted_at FROM buffers WHERE filetype = ? ORDER BY path", filetype,
	)
	if err != nil {
		return nil, fmt.Errorf("buffers by filetype: %w", err)
	}
	defer rows.Close()

	var out []*Buffer
	for rows.Next() {
		b := &Buffer{}
		var hash sql.NullString
		var lines sql.NullInt64
		var at sql.NullTime
		if err := rows.Scan(&b.ID, &b.Path, &b.Filetype, &hash, &lines, &at); err != nil {
			return nil, fmt.Errorf("scan buffer: %w", err)
		}
		b.ContentHash = hash.String
		b.LineCount = int(lines.Int64)
		b.HighlightedAt = at.Time
		out = append(out, b)
	}
	return out, rows.Err()
}
