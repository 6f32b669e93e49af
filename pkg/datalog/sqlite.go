package datalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite records runs into a local database so multiple experiments
// can share one file and be queried afterwards.
type SQLite struct {
	db    *sql.DB
	runID int64
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			columns TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rows (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			t REAL NOT NULL,
			"values" TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS rows_run_t ON rows(run_id, t);
	`)
	return err
}

// Begin implements Recorder: starts a new run.
func (s *SQLite) Begin(columns []string) error {
	cols, err := json.Marshal(columns)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`INSERT INTO runs (started_at, columns) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), string(cols))
	if err != nil {
		return err
	}
	s.runID, err = res.LastInsertId()
	return err
}

// Append implements Recorder.
func (s *SQLite) Append(t float64, values []float64) error {
	vals, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO rows (run_id, t, "values") VALUES (?, ?, ?)`,
		s.runID, t, string(vals))
	return err
}

// Close implements Recorder. Idempotent.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Runs lists recorded run IDs, newest first. Used by analysis tools.
func (s *SQLite) Runs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
