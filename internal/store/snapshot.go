package store

import (
	"database/sql"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/jward/hilite/internal/props"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the complete annotation set of a buffer, keyed by the
// content and rules it was computed from.
type Snapshot struct {
	ContentHash string         `cbor:"1,keyasint"`
	RulesHash   string         `cbor:"2,keyasint"`
	Spans       []SnapshotSpan `cbor:"3,keyasint,omitempty"`
}

// SnapshotSpan is one annotation inside a Snapshot.
type SnapshotSpan struct {
	Label     string `cbor:"1,keyasint"`
	StartLine int    `cbor:"2,keyasint"`
	StartCol  int    `cbor:"3,keyasint"`
	EndLine   int    `cbor:"4,keyasint"`
	EndCol    int    `cbor:"5,keyasint"`
}

// NewSnapshot builds a Snapshot from annotations.
func NewSnapshot(contentHash, rulesHash string, anns []props.Annotation) *Snapshot {
	snap := &Snapshot{ContentHash: contentHash, RulesHash: rulesHash}
	for _, a := range anns {
		snap.Spans = append(snap.Spans, SnapshotSpan{
			Label:     a.Label,
			StartLine: a.StartLine,
			StartCol:  a.StartCol,
			EndLine:   a.EndLine,
			EndCol:    a.EndCol,
		})
	}
	return snap
}

// Annotations converts the snapshot back to annotations.
func (s *Snapshot) Annotations() []props.Annotation {
	out := make([]props.Annotation, len(s.Spans))
	for i, sp := range s.Spans {
		out[i] = props.Annotation{
			Label: sp.Label,
			Range: props.Range{StartLine: sp.StartLine, StartCol: sp.StartCol, EndLine: sp.EndLine, EndCol: sp.EndCol},
		}
	}
	return out
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// SaveSnapshot stores snap as the snapshot of bufferID, replacing any
// earlier one.
func (s *Store) SaveSnapshot(bufferID int64, snap *Snapshot) error {
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	_, err = s.db.Exec(`
INSERT INTO snapshots (buffer_id, content_hash, rules_hash, data) VALUES (?, ?, ?, ?)
ON CONFLICT(buffer_id) DO UPDATE SET
  content_hash = excluded.content_hash,
  rules_hash = excluded.rules_hash,
  data = excluded.data`,
		bufferID, snap.ContentHash, snap.RulesHash, data,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot of bufferID if it was made from the
// given content and rules, or nil.
func (s *Store) LoadSnapshot(bufferID int64, contentHash, rulesHash string) (*Snapshot, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM snapshots WHERE buffer_id = ? AND content_hash = ? AND rules_hash = ?",
		bufferID, contentHash, rulesHash,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		log.Warningf("buffer %d: discarding unreadable snapshot: %v", bufferID, err)
		return nil, nil
	}
	return snap, nil
}
