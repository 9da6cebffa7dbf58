// Package history persists committed mode transitions.
//
// Every transition the orchestrator applies is recorded with its trigger and
// per-subsystem actuation outcome so `governor history` can answer "why are my
// fans loud" after the fact. Recording is best-effort; a store failure never
// blocks actuation.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"governor/internal/posture"
)

// Entry is one committed mode transition.
type Entry struct {
	ID         int64
	RunID      string
	OccurredAt time.Time
	From       posture.Mode
	To         posture.Mode
	Trigger    string
	// Outcomes holds "ok" or the error text per subsystem.
	Outcomes map[posture.Subsystem]string
}

// Store manages transition persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    from_mode TEXT NOT NULL,
    to_mode TEXT NOT NULL,
    trigger TEXT NOT NULL,
    power_plan TEXT NOT NULL DEFAULT '',
    gpu_limit TEXT NOT NULL DEFAULT '',
    fan_profile TEXT NOT NULL DEFAULT '',
    pause_flag TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transitions_occurred_at ON transitions (occurred_at);
`

// Open initializes or connects to the history database in the log directory.
func Open(logDir string) (*Store, error) {
	dbPath := filepath.Join(logDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Record inserts one transition row.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return errors.New("history store unavailable")
	}
	occurred := entry.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transitions (
            run_id, occurred_at, from_mode, to_mode, trigger,
            power_plan, gpu_limit, fan_profile, pause_flag
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		occurred.UTC().Format(time.RFC3339Nano),
		string(entry.From),
		string(entry.To),
		entry.Trigger,
		entry.Outcomes[posture.SubsystemPowerPlan],
		entry.Outcomes[posture.SubsystemGPULimit],
		entry.Outcomes[posture.SubsystemFanProfile],
		entry.Outcomes[posture.SubsystemPauseFlag],
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns the newest transitions, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, occurred_at, from_mode, to_mode, trigger,
            power_plan, gpu_limit, fan_profile, pause_flag
         FROM transitions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			occurredAt string
			fromMode   string
			toMode     string
			powerPlan  string
			gpuLimit   string
			fanProfile string
			pauseFlag  string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&occurredAt,
			&fromMode,
			&toMode,
			&entry.Trigger,
			&powerPlan,
			&gpuLimit,
			&fanProfile,
			&pauseFlag,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, occurredAt); err == nil {
			entry.OccurredAt = parsed
		}
		entry.From = posture.Mode(fromMode)
		entry.To = posture.Mode(toMode)
		entry.Outcomes = map[posture.Subsystem]string{
			posture.SubsystemPowerPlan:  powerPlan,
			posture.SubsystemGPULimit:   gpuLimit,
			posture.SubsystemFanProfile: fanProfile,
			posture.SubsystemPauseFlag:  pauseFlag,
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
