// Package statsdb persists pool statistics snapshots to a SQLite database
// so operators can track allocator behavior over time.
package statsdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/pmemctl/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at  TEXT NOT NULL,
	enabled   INTEGER NOT NULL,
	allocated INTEGER NOT NULL,
	freed     INTEGER NOT NULL,
	active    INTEGER NOT NULL
);
`

// Recorder appends and queries statistics snapshots.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record appends one snapshot. A zero TakenAt is stamped with the current
// time. Per-arena stats are not persisted; the history tracks the global
// counters only.
func (r *Recorder) Record(snap api.StatsSnapshot) error {
	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}
	enabled := 0
	if snap.Enabled {
		enabled = 1
	}
	_, err := r.db.Exec(
		"INSERT INTO snapshots (taken_at, enabled, allocated, freed, active) VALUES (?, ?, ?, ?, ?)",
		takenAt.Format(time.RFC3339Nano), enabled, int64(snap.Allocated), int64(snap.Freed), int64(snap.Active),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// History returns up to limit snapshots, newest first. limit <= 0 means all.
func (r *Recorder) History(limit int) ([]api.StatsSnapshot, error) {
	query := "SELECT taken_at, enabled, allocated, freed, active FROM snapshots ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.StatsSnapshot
	for rows.Next() {
		var (
			takenAt string
			enabled int
			snap    api.StatsSnapshot
		)
		if err := rows.Scan(&takenAt, &enabled, &snap.Allocated, &snap.Freed, &snap.Active); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Enabled = enabled != 0
		if ts, perr := time.Parse(time.RFC3339Nano, takenAt); perr == nil {
			snap.TakenAt = ts
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
