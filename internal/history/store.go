// Package history persists run summaries across sessions, so repeated
// invocations on the same codebase can be compared over time.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed workflow session.
type Run struct {
	ID          int64
	SessionID   string
	TargetDir   string
	Iterations  int
	TotalEvents int
	SuccessRate float64
	FinalScore  float64
	Completed   bool
	CreatedAt   time.Time
}

// Store is a SQLite-backed archive of run summaries.
type Store struct {
	db *sql.DB
}

// Open creates or opens the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore creates the runs table if it doesn't exist, then returns a
// Store backed by the provided *sql.DB.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT    NOT NULL,
			target_dir   TEXT    NOT NULL,
			iterations   INTEGER NOT NULL,
			total_events INTEGER NOT NULL,
			success_rate REAL    NOT NULL,
			final_score  REAL    NOT NULL,
			completed    INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_target_ts
		ON runs (target_dir, created_at)
	`); err != nil {
		return nil, fmt.Errorf("create runs index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a single run summary row.
func (s *Store) Record(run Run) error {
	completed := 0
	if run.Completed {
		completed = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (session_id, target_dir, iterations, total_events, success_rate, final_score, completed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SessionID, run.TargetDir, run.Iterations, run.TotalEvents,
		run.SuccessRate, run.FinalScore, completed, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the last limit runs for targetDir, most recent first.
// An empty targetDir matches all runs.
func (s *Store) Recent(targetDir string, limit int) ([]Run, error) {
	query := `SELECT id, session_id, target_dir, iterations, total_events, success_rate, final_score, completed, created_at
	          FROM runs`
	args := []any{}
	if targetDir != "" {
		query += ` WHERE target_dir = ?`
		args = append(args, targetDir)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var completed int
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.TargetDir, &r.Iterations,
			&r.TotalEvents, &r.SuccessRate, &r.FinalScore, &completed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Completed = completed != 0
		r.CreatedAt = time.Unix(0, createdAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent runs rows: %w", err)
	}
	return runs, nil
}

// TargetStats computes the run count and average final score for targetDir.
// Returns zero values when no rows exist.
func (s *Store) TargetStats(targetDir string) (count int, avgScore float64, err error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(final_score), 0.0) FROM runs WHERE target_dir = ?`,
		targetDir,
	)
	if err = row.Scan(&count, &avgScore); err != nil {
		return 0, 0, fmt.Errorf("target stats query: %w", err)
	}
	return count, avgScore, nil
}
