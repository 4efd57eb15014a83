// Package recorder persists run summaries to a SQLite database for later
// inspection. It is write-only from the pipeline's point of view: recorded
// runs are never consulted by a later backfill.
package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"histfill/internal/domain"
)

// SQLiteRecorder appends one row per backfill run to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (or creates) the database at dbPath and runs
// migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			mode        TEXT NOT NULL,
			start_date  TEXT,
			end_date    TEXT,
			tickers     INTEGER,
			row_count   INTEGER,
			files       INTEGER,
			ok_count    INTEGER,
			err_count   INTEGER,
			errors_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_recorded ON runs(recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun appends the summary of one completed run.
func (r *SQLiteRecorder) RecordRun(mode string, summary *domain.RunSummary) error {
	errorsJSON, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("encoding errors: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO runs
			(recorded_at, mode, start_date, end_date, tickers, row_count, files, ok_count, err_count, errors_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(),
		mode,
		summary.StartDate,
		summary.EndDate,
		summary.TickerCount,
		summary.Rows,
		len(summary.FilesWritten),
		len(summary.Results),
		len(summary.Errors),
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// RunCount returns the number of recorded runs.
func (r *SQLiteRecorder) RunCount() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
