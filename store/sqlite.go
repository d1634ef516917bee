package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/sigbus"

	_ "modernc.org/sqlite"
)

// ErrStoreClosed is returned by every method once Close has been called.
var ErrStoreClosed = fmt.Errorf("sqlite store: closed")

// SQLiteStore is a durable SignalStore backed by SQLite, suitable for
// single-process production use. Signals are stored as id (unique), type,
// source and ts columns plus an opaque JSON blob, so Save and GetUnacked round-trip a
// signal's fields without needing to know its payload's concrete type.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLite opens (or creates) a SQLite-backed store at path. Use ":memory:"
// for an ephemeral in-process store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			rowid_order INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			ts TEXT NOT NULL,
			data BLOB NOT NULL,
			acked INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_signals_acked ON signals(acked)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements SignalStore.
func (s *SQLiteStore) Save(sig sigbus.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	payload := rawRecord{
		ID:     sig.ID(),
		Type:   sig.Type(),
		Source: sig.Source(),
		Ts:     sig.Timestamp(),
		Data:   sig.DataBytes(),
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO signals (id, type, source, ts, data, acked)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			source = excluded.source,
			ts = excluded.ts,
			data = excluded.data
	`, sig.ID(), sig.Type(), sig.Source(), sig.Timestamp().UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

// MarkAcked implements SignalStore.
func (s *SQLiteStore) MarkAcked(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`UPDATE signals SET acked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark acked: %w", err)
	}
	return nil
}

// GetUnacked implements SignalStore. Iteration order follows the
// auto-increment rowid, i.e. save order.
func (s *SQLiteStore) GetUnacked() ([]sigbus.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT data FROM signals WHERE acked = 0 ORDER BY rowid_order
	`)
	if err != nil {
		return nil, fmt.Errorf("query unacked signals: %w", err)
	}
	defer rows.Close()

	var out []sigbus.Signal
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig, err := decodeRaw(blob)
		if err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle. Further calls to any
// other method return ErrStoreClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// rawRecord is the on-disk encoding of a stored signal.
type rawRecord struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Ts     time.Time       `json:"ts"`
	Data   json.RawMessage `json:"data"`
}

// rawSignal reconstructs a sigbus.Signal read back from the store, without
// needing to know the original payload's concrete Go type.
type rawSignal struct {
	rec     rawRecord
	decoded any
}

func decodeRaw(blob []byte) (*rawSignal, error) {
	var rec rawRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	var decoded any
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &decoded); err != nil {
			return nil, err
		}
	}
	return &rawSignal{rec: rec, decoded: decoded}, nil
}

func (r *rawSignal) ID() string           { return r.rec.ID }
func (r *rawSignal) Type() string         { return r.rec.Type }
func (r *rawSignal) Timestamp() time.Time { return r.rec.Ts }
func (r *rawSignal) Source() string       { return r.rec.Source }
func (r *rawSignal) Data() any            { return r.decoded }
func (r *rawSignal) DataBytes() []byte    { return r.rec.Data }

var _ sigbus.Signal = (*rawSignal)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
