// Package history persists execution outcomes in a local sqlite database
// so operators can inspect what ran, what failed, and how long it took.
// The script source itself is never stored, only its content hash.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Execution is one recorded runner call.
type Execution struct {
	ID          string
	Timestamp   string
	SourceHash  string
	Success     bool
	Error       string
	DurationMS  int64
	StdoutBytes int
	StderrBytes int
}

// Store is a sqlite-backed record of executions.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	ts           TEXT NOT NULL,
	source_hash  TEXT NOT NULL,
	success      INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	duration_ms  INTEGER NOT NULL,
	stdout_bytes INTEGER NOT NULL,
	stderr_bytes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_ts ON executions(ts);
`

// DefaultPath returns ~/.taskgate/history.db, creating the directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".taskgate")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("history: create directory: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one execution and returns its ID, generating one when the
// caller did not supply it.
func (s *Store) Record(e Execution) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	success := 0
	if e.Success {
		success = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO executions (id, ts, source_hash, success, error, duration_ms, stdout_bytes, stderr_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.SourceHash, success, e.Error, e.DurationMS, e.StdoutBytes, e.StderrBytes,
	)
	if err != nil {
		return "", fmt.Errorf("history: record: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to limit executions, newest first.
func (s *Store) Recent(limit int) ([]Execution, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, source_hash, success, error, duration_ms, stdout_bytes, stderr_bytes
		 FROM executions ORDER BY ts DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var success int
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.SourceHash, &success,
			&e.Error, &e.DurationMS, &e.StdoutBytes, &e.StderrBytes); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Success = success != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats summarizes the store.
type Stats struct {
	Total  int
	Failed int
}

// Stats returns execution counts.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(1 - success), 0) FROM executions`,
	).Scan(&st.Total, &st.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
