package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_name TEXT NOT NULL,
	url        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	header     TEXT NOT NULL DEFAULT '{}',
	body       BLOB,
	stored_at  TEXT NOT NULL,
	PRIMARY KEY (cache_name, url)
);

CREATE TABLE IF NOT EXISTS cache_claims (
	cache_name TEXT PRIMARY KEY,
	claimed_at TEXT NOT NULL
);
`

// Entry is one stored response.
type Entry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Store persists named caches in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the cache database at path.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// one connection keeps :memory: databases and write transactions coherent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// CacheNames lists every cache that holds entries or has been claimed.
func (s *Store) CacheNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_name FROM cache_entries
		UNION
		SELECT cache_name FROM cache_claims
		ORDER BY cache_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PutAll stores entries under cache in a single transaction: either all of
// them land or none do.
func (s *Store) PutAll(ctx context.Context, cache string, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cache_entries (cache_name, url, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_name, url) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		hdr, err := json.Marshal(e.Header)
		if err != nil {
			return fmt.Errorf("encode header for %s: %w", e.URL, err)
		}
		stored := e.StoredAt
		if stored.IsZero() {
			stored = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, cache, e.URL, e.Status, string(hdr), e.Body, stored.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("store %s: %w", e.URL, err)
		}
	}
	return tx.Commit()
}

// Match returns the entry stored for url, or nil when there is none.
func (s *Store) Match(ctx context.Context, cache, url string) (*Entry, error) {
	var (
		e      = Entry{URL: url}
		hdr    string
		stored string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, header, body, stored_at FROM cache_entries
		WHERE cache_name = ? AND url = ?`, cache, url).Scan(&e.Status, &hdr, &e.Body, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hdr), &e.Header); err != nil {
		return nil, fmt.Errorf("decode header for %s: %w", url, err)
	}
	e.StoredAt, _ = time.Parse(time.RFC3339Nano, stored)
	return &e, nil
}

// Count returns how many entries cache holds.
func (s *Store) Count(ctx context.Context, cache string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE cache_name = ?`, cache).Scan(&n)
	return n, err
}

// DeleteCache drops a cache and its claim.
func (s *Store) DeleteCache(ctx context.Context, cache string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, cache); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_claims WHERE cache_name = ?`, cache); err != nil {
		return err
	}
	return tx.Commit()
}

// Claim marks cache as the one serving requests.
func (s *Store) Claim(ctx context.Context, cache string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_claims (cache_name, claimed_at) VALUES (?, ?)
		ON CONFLICT(cache_name) DO UPDATE SET claimed_at = excluded.claimed_at`,
		cache, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Claimed reports whether cache has been claimed.
func (s *Store) Claimed(ctx context.Context, cache string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_claims WHERE cache_name = ?`, cache).Scan(&n)
	return n > 0, err
}
