package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createTables = `
CREATE TABLE IF NOT EXISTS stores (
	name TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	store TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	header TEXT NOT NULL,
	body BLOB NOT NULL,
	encoding TEXT NOT NULL,
	size INTEGER NOT NULL,
	type TEXT NOT NULL,
	stored_at INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	PRIMARY KEY (store, method, url)
);
`

// SQLite is a Storage persisted in a SQLite database file.
type SQLite struct {
	db    *sql.DB
	codec *bodyCodec
}

// SQLiteOption configures a SQLite storage.
type SQLiteOption func(*sqliteOptions)

type sqliteOptions struct {
	compress bool
}

// WithCompression toggles zstd compression of entry bodies. Defaults to true.
// Entries written either way remain readable.
func WithCompression(enabled bool) SQLiteOption {
	return func(o *sqliteOptions) {
		o.compress = enabled
	}
}

// OpenSQLite opens (and creates if needed) the cache database at path.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache db path is required")
	}
	o := sqliteOptions{compress: true}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	s := &SQLite{db: db}
	if o.compress {
		codec, err := newBodyCodec()
		if err != nil {
			db.Close()
			return nil, err
		}
		s.codec = codec
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	s.codec.close()
	return s.db.Close()
}

func (s *SQLite) Open(ctx context.Context, name string) (Cache, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)`,
		name, time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &sqliteCache{s: s, name: name}, nil
}

func (s *SQLite) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stores WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has cache %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *SQLite) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE store = ?`, name); err != nil {
		return false, fmt.Errorf("delete cache %q entries: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *SQLite) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM stores ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list caches: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats returns entry counts and uncompressed body sizes per cache.
func (s *SQLite) Stats(ctx context.Context) ([]StoreStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, COUNT(e.url), COALESCE(SUM(e.size), 0)
		FROM stores s LEFT JOIN entries e ON e.store = s.name
		GROUP BY s.name
		ORDER BY s.created_at, s.rowid`)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	var out []StoreStats
	for rows.Next() {
		var st StoreStats
		if err := rows.Scan(&st.Name, &st.Entries, &st.Bytes); err != nil {
			return nil, fmt.Errorf("cache stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type sqliteCache struct {
	s    *SQLite
	name string
}

func (c *sqliteCache) Name() string { return c.name }

func (c *sqliteCache) Match(ctx context.Context, key Key) (*Entry, error) {
	var (
		status   int
		header   string
		body     []byte
		encoding string
		typ      string
		storedAt int64
	)
	err := c.s.db.QueryRowContext(ctx,
		`SELECT status, header, body, encoding, type, stored_at FROM entries
		 WHERE store = ? AND method = ? AND url = ?`,
		c.name, key.Method, key.URL,
	).Scan(&status, &header, &body, &encoding, &typ, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", key, err)
	}

	h, err := decodeHeader(header)
	if err != nil {
		return nil, err
	}
	plain, err := c.s.codec.decode(body, encoding)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", key, err)
	}
	return &Entry{
		Status:   status,
		Header:   h,
		Body:     plain,
		Type:     typ,
		StoredAt: time.Unix(0, storedAt).UTC(),
	}, nil
}

func (c *sqliteCache) Put(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return errNilEntry
	}
	header, err := encodeHeader(entry.Header)
	if err != nil {
		return err
	}
	body, encoding := c.s.codec.encode(entry.Body)
	if body == nil {
		body = []byte{}
	}
	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	// Writes through a handle whose store was deleted are dropped, matching
	// the in-memory behaviour of a detached cache.
	_, err = c.s.db.ExecContext(ctx,
		`INSERT INTO entries (store, method, url, status, header, body, encoding, size, type, stored_at, seq)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE store = ?)
		 WHERE EXISTS (SELECT 1 FROM stores WHERE name = ?)
		 ON CONFLICT (store, method, url) DO UPDATE SET
		   status = excluded.status, header = excluded.header, body = excluded.body,
		   encoding = excluded.encoding, size = excluded.size, type = excluded.type,
		   stored_at = excluded.stored_at`,
		c.name, key.Method, key.URL, entry.Status, header, body, encoding,
		len(entry.Body), entry.Type, storedAt.UnixNano(), c.name, c.name,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (c *sqliteCache) Delete(ctx context.Context, key Key) (bool, error) {
	res, err := c.s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE store = ? AND method = ? AND url = ?`,
		c.name, key.Method, key.URL,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *sqliteCache) Keys(ctx context.Context) ([]Key, error) {
	rows, err := c.s.db.QueryContext(ctx,
		`SELECT method, url FROM entries WHERE store = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", c.name, err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Method, &k.URL); err != nil {
			return nil, fmt.Errorf("keys %q: %w", c.name, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
