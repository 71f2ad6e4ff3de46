package watcher

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists watcher.Watcher state (segment_count plus a log of
// emitted key URIs) across process restarts, keyed by manifest URL. It is
// the sidecar the live-poll driver wires in so a restarted process resumes
// at the right segment position instead of re-downloading the whole
// window. Grounded on the teacher's use of modernc.org/sqlite for small,
// embedded, single-writer state (internal/plex's DVR schedule store),
// repurposed here for watcher checkpoints instead of recording schedules.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) a SQLite database at path and
// ensures its schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("watcher: open store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("watcher: migrate store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS watchers (
	manifest_url  TEXT PRIMARY KEY,
	segment_count INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS emitted_keys (
	manifest_url TEXT NOT NULL,
	key_uri      TEXT NOT NULL,
	emitted_at   TEXT NOT NULL
);
`

func (s *Store) Close() error { return s.db.Close() }

// LoadSegmentCount returns the persisted segment_count for manifestURL, or
// 0 if no row exists yet.
func (s *Store) LoadSegmentCount(ctx context.Context, manifestURL string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT segment_count FROM watchers WHERE manifest_url = ?`, manifestURL).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("watcher: load segment count: %w", err)
	}
	return n, nil
}

// SaveSegmentCount upserts the current segment_count for manifestURL.
func (s *Store) SaveSegmentCount(ctx context.Context, manifestURL string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchers (manifest_url, segment_count, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(manifest_url) DO UPDATE SET segment_count = excluded.segment_count, updated_at = excluded.updated_at
	`, manifestURL, count, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("watcher: save segment count: %w", err)
	}
	return nil
}

// RecordKeyEmission appends a forensic log entry for an emitted key URI.
// This never drives dedup decisions (spec requires every KEY occurrence to
// re-emit); it exists purely so an operator can audit key rotations after
// the fact.
func (s *Store) RecordKeyEmission(ctx context.Context, manifestURL, keyURI string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emitted_keys (manifest_url, key_uri, emitted_at) VALUES (?, ?, ?)
	`, manifestURL, keyURI, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("watcher: record key emission: %w", err)
	}
	return nil
}
