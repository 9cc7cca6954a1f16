package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mangameta/internal/metadata"
)

// timestampLayout is fixed width so fetched_at compares correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed metadata cache.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is a cached record with the time it was fetched.
type Entry struct {
	Metadata  *metadata.Metadata
	FetchedAt time.Time
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("metastore: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; one connection keeps them applied.
	db.SetMaxOpenConns(1)

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

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached record for id.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool, error) {
	var payload, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, fetched_at FROM gallery_metadata WHERE gallery_id = ?", id,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query metadata %s: %w", id, err)
	}

	var meta metadata.Metadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached metadata %s: %w", id, err)
	}
	ts, err := time.Parse(timestampLayout, fetchedAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse fetched_at for %s: %w", id, err)
	}
	return Entry{Metadata: &meta, FetchedAt: ts}, true, nil
}

// Put stores meta, replacing any existing record with the same id.
func (s *Store) Put(ctx context.Context, meta *metadata.Metadata, fetchedAt time.Time) error {
	if meta == nil || strings.TrimSpace(meta.ID) == "" {
		return errors.New("metastore: metadata without id")
	}
	payload, err := metadata.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO gallery_metadata (gallery_id, payload, fetched_at) VALUES (?, ?, ?)
         ON CONFLICT(gallery_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		meta.ID, string(payload), fetchedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("store metadata %s: %w", meta.ID, err)
	}
	return nil
}

// Purge removes records fetched before cutoff. A zero cutoff removes everything.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if cutoff.IsZero() {
		res, err = s.db.ExecContext(ctx, "DELETE FROM gallery_metadata")
	} else {
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM gallery_metadata WHERE fetched_at < ?",
			cutoff.UTC().Format(timestampLayout))
	}
	if err != nil {
		return 0, fmt.Errorf("purge metadata: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM gallery_metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("count metadata: %w", err)
	}
	return n, nil
}
