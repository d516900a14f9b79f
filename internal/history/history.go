// Package history keeps a queryable decision history in sqlite. It is
// a Sink alongside the JSONL audit chain: the chain proves integrity,
// the history answers questions.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kinship-net/kinship/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	decision_id   TEXT PRIMARY KEY,
	ts            TEXT NOT NULL,
	layer         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	actor         TEXT NOT NULL,
	from_space    TEXT NOT NULL DEFAULT '',
	to_space      TEXT NOT NULL DEFAULT '',
	band          TEXT NOT NULL DEFAULT '',
	decision      TEXT NOT NULL,
	reasons       TEXT NOT NULL,
	redacted      INTEGER NOT NULL,
	band_min      TEXT NOT NULL DEFAULT '',
	model_version TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_actor ON decisions(actor, ts);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);
`

// Store is the sqlite-backed decision history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// One writer at a time keeps modernc sqlite happy without WAL
	// tuning; decision volume is low.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DefaultPath returns the default history database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kinship", "history.db")
	}
	return filepath.Join(home, ".kinship", "history.db")
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts a decision event. Implements audit.Sink. Duplicate
// decision IDs are ignored so replaying a log is idempotent.
func (s *Store) Record(ev audit.Event) error {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	reasons, err := json.Marshal(ev.Reasons)
	if err != nil {
		return fmt.Errorf("history: marshal reasons: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO decisions
		(decision_id, ts, layer, operation, actor, from_space, to_space,
		 band, decision, reasons, redacted, band_min, model_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.DecisionID, ev.Timestamp, ev.Layer, ev.Operation, ev.Actor,
		ev.FromSpace, ev.ToSpace, ev.Band, ev.Decision, string(reasons),
		boolToInt(ev.Redacted), ev.BandMin, ev.ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("history: insert decision: %w", err)
	}
	return nil
}

// Recent returns the most recent decisions, newest first.
func (s *Store) Recent(limit int) ([]audit.Event, error) {
	return s.query(`
		SELECT decision_id, ts, layer, operation, actor, from_space,
		       to_space, band, decision, reasons, redacted, band_min,
		       model_version
		FROM decisions ORDER BY ts DESC, decision_id DESC LIMIT ?`, limit)
}

// ByActor returns the actor's most recent decisions, newest first.
func (s *Store) ByActor(actor string, limit int) ([]audit.Event, error) {
	return s.query(`
		SELECT decision_id, ts, layer, operation, actor, from_space,
		       to_space, band, decision, reasons, redacted, band_min,
		       model_version
		FROM decisions WHERE actor = ?
		ORDER BY ts DESC, decision_id DESC LIMIT ?`, actor, limit)
}

// DenyCount counts DENY decisions recorded since the cutoff.
func (s *Store) DenyCount(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM decisions
		WHERE decision = 'DENY' AND ts >= ?`,
		since.UTC().Format(time.RFC3339)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count denies: %w", err)
	}
	return n, nil
}

func (s *Store) query(q string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query decisions: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var ev audit.Event
		var reasons string
		var redacted int
		if err := rows.Scan(&ev.DecisionID, &ev.Timestamp, &ev.Layer,
			&ev.Operation, &ev.Actor, &ev.FromSpace, &ev.ToSpace, &ev.Band,
			&ev.Decision, &reasons, &redacted, &ev.BandMin, &ev.ModelVersion); err != nil {
			return nil, fmt.Errorf("history: scan decision: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &ev.Reasons); err != nil {
			return nil, fmt.Errorf("history: decode reasons: %w", err)
		}
		ev.Redacted = redacted != 0
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate decisions: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Fanout duplicates events to several sinks, failing on the first
// error so the caller notices a broken sink.
type Fanout []audit.Sink

// Record implements audit.Sink.
func (f Fanout) Record(ev audit.Event) error {
	for _, s := range f {
		if err := s.Record(ev); err != nil {
			return err
		}
	}
	return nil
}
