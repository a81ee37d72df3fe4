package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kinocore/kinocore/internal/persistence/sqlite"
)

const schemaVersion = 1

// SQLiteStore implements Store using SQLite. This is the default durable
// backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite progress store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("progress store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS progress_entries (
		viewer_key TEXT NOT NULL,
		movie_id INTEGER NOT NULL,
		seconds REAL NOT NULL,
		duration REAL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (viewer_key, movie_id)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress_entries(updated_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, viewerKey string, movieID int64) (*Entry, error) {
	query := `SELECT seconds, duration, updated_at FROM progress_entries WHERE viewer_key = ? AND movie_id = ?`
	var (
		e            Entry
		duration     sql.NullFloat64
		updatedAtStr string
	)
	err := s.db.QueryRowContext(ctx, query, viewerKey, movieID).Scan(&e.Seconds, &duration, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Duration = duration.Float64
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
	return &e, nil
}

func (s *SQLiteStore) Put(ctx context.Context, viewerKey string, movieID int64, e *Entry) error {
	clean := sanitize(e)
	query := `
	INSERT INTO progress_entries (viewer_key, movie_id, seconds, duration, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(viewer_key, movie_id) DO UPDATE SET
		seconds = excluded.seconds,
		duration = excluded.duration,
		updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		viewerKey, movieID, clean.Seconds, clean.Duration, clean.UpdatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, viewerKey string, movieID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM progress_entries WHERE viewer_key = ? AND movie_id = ?", viewerKey, movieID)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, viewerKey string) (map[int64]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT movie_id, seconds, duration, updated_at FROM progress_entries WHERE viewer_key = ?", viewerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]Entry)
	for rows.Next() {
		var (
			movieID      int64
			e            Entry
			duration     sql.NullFloat64
			updatedAtStr string
		)
		if err := rows.Scan(&movieID, &e.Seconds, &duration, &updatedAtStr); err != nil {
			return nil, err
		}
		e.Duration = duration.Float64
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
		out[movieID] = e
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
