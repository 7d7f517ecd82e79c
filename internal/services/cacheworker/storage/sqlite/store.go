// Package sqlite provides SQLite-backed cache storage so generations and the
// active registration survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/dailytasks/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed cache generations.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a cache SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Names lists generation names in creation order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM cache_generations ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return names, nil
}

// Has reports whether a generation exists.
func (s *Store) Has(ctx context.Context, name string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM cache_generations WHERE name = ?`, strings.TrimSpace(name)).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check generation: %w", err)
	}
	return true, nil
}

// DeleteGeneration removes a generation and its entries in one transaction.
func (s *Store) DeleteGeneration(ctx context.Context, name string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete generation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE generation = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM cache_generations WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete generation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete generation rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete generation: %w", err)
	}
	return affected > 0, nil
}

// Match returns the entry stored under key in a generation.
func (s *Store) Match(ctx context.Context, name, key string) (storage.Entry, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Entry{}, err
	}
	var (
		entry      storage.Entry
		headerJSON string
		storedAt   int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT request_key, url, status, header_json, body, stored_at
FROM cache_entries
WHERE generation = ? AND request_key = ?
`, strings.TrimSpace(name), key).Scan(
		&entry.Key,
		&entry.URL,
		&entry.Status,
		&headerJSON,
		&entry.Body,
		&storedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Entry{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Entry{}, fmt.Errorf("match entry: %w", err)
	}
	entry.Header = http.Header{}
	if err := json.Unmarshal([]byte(headerJSON), &entry.Header); err != nil {
		return storage.Entry{}, fmt.Errorf("decode entry header: %w", err)
	}
	entry.StoredAt = time.UnixMilli(storedAt).UTC()
	return entry, nil
}

// Put stores one entry, creating the generation when missing.
func (s *Store) Put(ctx context.Context, name string, entry storage.Entry) error {
	return s.PutAll(ctx, name, []storage.Entry{entry})
}

// PutAll writes every entry in a single transaction.
func (s *Store) PutAll(ctx context.Context, name string, entries []storage.Entry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.ErrGenerationRequired
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Key) == "" {
			return storage.ErrKeyRequired
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put entries: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO cache_generations (name, seq, created_at)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cache_generations), ?)
ON CONFLICT(name) DO NOTHING
`, name, now.UnixMilli()); err != nil {
		return fmt.Errorf("ensure generation: %w", err)
	}

	for _, entry := range entries {
		header := entry.Header
		if header == nil {
			header = http.Header{}
		}
		headerJSON, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("encode entry header: %w", err)
		}
		body := entry.Body
		if body == nil {
			body = []byte{}
		}
		storedAt := entry.StoredAt
		if storedAt.IsZero() {
			storedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cache_entries (generation, request_key, url, status, header_json, body, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(generation, request_key) DO UPDATE SET
	url = excluded.url,
	status = excluded.status,
	header_json = excluded.header_json,
	body = excluded.body,
	stored_at = excluded.stored_at
`,
			name,
			entry.Key,
			entry.URL,
			entry.Status,
			string(headerJSON),
			body,
			storedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("put entry %s: %w", entry.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put entries: %w", err)
	}
	return nil
}

// ActiveRegistration returns the persisted registration.
func (s *Store) ActiveRegistration(ctx context.Context) (storage.Registration, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Registration{}, err
	}
	var (
		registration storage.Registration
		activatedAt  int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT version, cache_prefix, shell, activated_at FROM worker_registration WHERE id = 1
`).Scan(&registration.Version, &registration.CachePrefix, &registration.Shell, &activatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Registration{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	registration.ActivatedAt = time.UnixMilli(activatedAt).UTC()
	return registration, nil
}

// SetActiveRegistration replaces the persisted registration.
func (s *Store) SetActiveRegistration(ctx context.Context, registration storage.Registration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(registration.Version) == "" {
		return fmt.Errorf("registration version is required")
	}
	if registration.ActivatedAt.IsZero() {
		registration.ActivatedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO worker_registration (id, version, cache_prefix, shell, activated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	version = excluded.version,
	cache_prefix = excluded.cache_prefix,
	shell = excluded.shell,
	activated_at = excluded.activated_at
`,
		strings.TrimSpace(registration.Version),
		strings.TrimSpace(registration.CachePrefix),
		strings.TrimSpace(registration.Shell),
		registration.ActivatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set registration: %w", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
