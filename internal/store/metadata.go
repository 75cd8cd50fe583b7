package store

import (
	"database/sql"
	"fmt"
)

// RulesHashKey is the metadata key holding the hash of the rule tables the
// stored annotations were produced with.
const RulesHashKey = "rules_hash"

// GetMetadata returns the value stored under key, or "" if there is none.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// RulesChanged reports whether the stored rules hash differs from
// current. A database without a stored hash counts as changed.
func (s *Store) RulesChanged(current string) bool {
	stored, err := s.GetMetadata(RulesHashKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != current
}

// StoreRulesHash records the rules hash and drops every snapshot made with
// other rules.
func (s *Store) StoreRulesHash(hash string) error {
	if err := s.SetMetadata(RulesHashKey, hash); err != nil {
		return err
	}
	res, err := s.db.Exec("DELETE FROM snapshots WHERE rules_hash <> ?", hash)
	if err != nil {
		return fmt.Errorf("drop stale snapshots: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Infof("dropped %d snapshot(s) made with other rules", n)
	}
	return nil
}
