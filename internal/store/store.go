// Package store keeps a local history of headline KPIs so the dashboard can
// show trends across restarts. The derivation pipeline itself is stateless;
// this is a best-effort side channel only.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for KPI snapshots.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            captured_at TIMESTAMP NOT NULL,
            total_tapes INTEGER NOT NULL,
            archived_total INTEGER NOT NULL,
            blocked_queue INTEGER NOT NULL,
            backlog INTEGER NOT NULL,
            avg_queue_age_days REAL NOT NULL,
            avg_drift_minutes REAL NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON snapshots(captured_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is one recorded KPI row.
type Snapshot struct {
	ID              int64     `json:"id"`
	CapturedAt      time.Time `json:"capturedAt"`
	TotalTapes      int       `json:"totalTapes"`
	ArchivedTotal   int       `json:"archivedTotal"`
	BlockedQueue    int       `json:"blockedQueue"`
	Backlog         int       `json:"backlog"`
	AvgQueueAgeDays float64   `json:"avgQueueAgeDays"`
	AvgDriftMinutes float64   `json:"avgDriftMinutes"`
}

func (s *Store) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (captured_at, total_tapes, archived_total, blocked_queue, backlog, avg_queue_age_days, avg_drift_minutes)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.CapturedAt, snap.TotalTapes, snap.ArchivedTotal, snap.BlockedQueue,
		snap.Backlog, snap.AvgQueueAgeDays, snap.AvgDriftMinutes)
	return err
}

// ListSnapshots returns the most recent rows, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, captured_at, total_tapes, archived_total, blocked_queue, backlog, avg_queue_age_days, avg_drift_minutes
         FROM snapshots ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.CapturedAt, &snap.TotalTapes, &snap.ArchivedTotal,
			&snap.BlockedQueue, &snap.Backlog, &snap.AvgQueueAgeDays, &snap.AvgDriftMinutes); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
