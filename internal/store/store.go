package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("hilite.store")

// Store is the SQLite data access layer for buffers, their annotations and
// cached highlight snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// last_line is the last line holding text of the range (see
// props.Range.LastLine); removal by line range filters on it.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS buffers (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  filetype        TEXT NOT NULL,
  content_hash    TEXT,
  line_count      INTEGER,
  highlighted_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS annotations (
  id              INTEGER PRIMARY KEY,
  buffer_id       INTEGER NOT NULL REFERENCES buffers(id),
  label           TEXT NOT NULL,
  start_line      INTEGER NOT NULL,
  start_col       INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  end_col         INTEGER NOT NULL,
  last_line       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  buffer_id       INTEGER PRIMARY KEY REFERENCES buffers(id),
  content_hash    TEXT NOT NULL,
  rules_hash      TEXT NOT NULL,
  data            BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buffers_filetype ON buffers(filetype);
CREATE INDEX IF NOT EXISTS idx_annotations_buffer_lines ON annotations(buffer_id, start_line, last_line);
CREATE INDEX IF NOT EXISTS idx_annotations_label ON annotations(label);
`

// DeleteBufferData transactionally removes a buffer and everything stored
// for it.
func (s *Store) DeleteBufferData(bufferID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM annotations WHERE buffer_id = ?",
		"DELETE FROM snapshots WHERE buffer_id = ?",
		"DELETE FROM buffers WHERE id = ?",
	} {
		if _, err := tx.Exec(q, bufferID); err != nil {
			return fmt.Errorf("delete buffer data: %w", err)
		}
	}
	return tx.Commit()
}
