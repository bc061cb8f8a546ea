package cachestore

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, opts ...SQLiteOption) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache_test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory":       NewMemory(),
		"sqlite":       newTestSQLite(t),
		"sqlite-plain": newTestSQLite(t, WithCompression(false)),
	}
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key{Method: "GET", URL: "https://example.com/"}, NewKey("", "https://example.com/"))
	assert.Equal(t, Key{Method: "POST", URL: "/x"}, NewKey(" post ", "/x"))
	assert.Equal(t, "GET /a", NewKey("get", "/a").String())
}

func TestStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.Has(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Open(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			_, err = s.Open(ctx, "portfolio-cache-v2")
			require.NoError(t, err)
			_, err = s.Open(ctx, "portfolio-cache-v1")
			require.NoError(t, err)

			names, err := s.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"portfolio-cache-v1", "portfolio-cache-v2"}, names)

			deleted, err := s.Delete(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.Delete(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			assert.False(t, deleted)

			ok, err = s.Has(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPutMatchReplace(t *testing.T) {
	ctx := context.Background()
	body := bytes.Repeat([]byte("<p>hello offline world</p>"), 64)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Open(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			assert.Equal(t, "portfolio-cache-v1", c.Name())

			key := NewKey(http.MethodGet, "http://localhost:8080/index.html")
			_, err = c.Match(ctx, key)
			require.ErrorIs(t, err, ErrNotFound)

			h := http.Header{}
			h.Set("Content-Type", "text/html")
			require.NoError(t, c.Put(ctx, key, &Entry{Status: 200, Header: h, Body: body, Type: "basic"}))

			got, err := c.Match(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 200, got.Status)
			assert.Equal(t, "text/html", got.Header.Get("Content-Type"))
			assert.Equal(t, body, got.Body)
			assert.Equal(t, "basic", got.Type)
			assert.False(t, got.StoredAt.IsZero())

			require.NoError(t, c.Put(ctx, key, &Entry{Status: 200, Body: []byte("v2"), Type: "basic"}))
			got, err = c.Match(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got.Body)

			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Key{key}, keys)

			ok, err := c.Delete(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			_, err = c.Match(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMatchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemory().Open(ctx, "c")
	require.NoError(t, err)
	key := NewKey("GET", "/a")
	require.NoError(t, c.Put(ctx, key, &Entry{Status: 200, Body: []byte("abc")}))

	got, err := c.Match(ctx, key)
	require.NoError(t, err)
	got.Body[0] = 'z'

	again, err := c.Match(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Body)
}

func TestPutNilEntry(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Open(ctx, "c")
			require.NoError(t, err)
			assert.Error(t, c.Put(ctx, NewKey("GET", "/a"), nil))
		})
	}
}

func TestDeleteRemovesEntries(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Open(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			require.NoError(t, c.Put(ctx, NewKey("GET", "/a"), &Entry{Status: 200, Body: []byte("a")}))

			_, err = s.Delete(ctx, "portfolio-cache-v1")
			require.NoError(t, err)

			c, err = s.Open(ctx, "portfolio-cache-v1")
			require.NoError(t, err)
			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestPurgeStale(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, n := range []string{"portfolio-cache-v9", "other-cache", "portfolio-cache-v10", "portfolio-cache-v11"} {
				_, err := s.Open(ctx, n)
				require.NoError(t, err)
			}

			deleted, err := PurgeStale(ctx, s, "portfolio-cache-", "portfolio-cache-v11")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"portfolio-cache-v9", "portfolio-cache-v10"}, deleted)

			names, err := s.Names(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"other-cache", "portfolio-cache-v11"}, names)
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Open(ctx, "a")
			require.NoError(t, err)
			require.NoError(t, c.Put(ctx, NewKey("GET", "/1"), &Entry{Status: 200, Body: []byte("12345")}))
			require.NoError(t, c.Put(ctx, NewKey("GET", "/2"), &Entry{Status: 200, Body: []byte("123")}))
			_, err = s.Open(ctx, "b")
			require.NoError(t, err)

			stats, err := Stats(ctx, s)
			require.NoError(t, err)
			require.Len(t, stats, 2)
			assert.Equal(t, StoreStats{Name: "a", Entries: 2, Bytes: 8}, stats[0])
			assert.Equal(t, StoreStats{Name: "b"}, stats[1])
		})
	}
}

// reportingMemory answers Stats itself instead of being walked entry by entry.
type reportingMemory struct {
	*Memory
	calls int
}

func (r *reportingMemory) Stats(context.Context) ([]StoreStats, error) {
	r.calls++
	return []StoreStats{{Name: "reported", Entries: 7, Bytes: 42}}, nil
}

func TestStatsUsesReporter(t *testing.T) {
	var _ StatsReporter = (*SQLite)(nil)

	r := &reportingMemory{Memory: NewMemory()}
	stats, err := Stats(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []StoreStats{{Name: "reported", Entries: 7, Bytes: 42}}, stats)
}

func TestConcurrentPutsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Open(ctx, "c")
			require.NoError(t, err)
			key := NewKey("GET", "/race")

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, c.Put(ctx, key, &Entry{Status: 200, Body: []byte("same")}))
				}()
			}
			wg.Wait()

			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 1)
		})
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	c, err := s.Open(ctx, "portfolio-cache-v1")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, NewKey("GET", "/"), &Entry{Status: 200, Body: []byte("shell")}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, WithCompression(false))
	require.NoError(t, err)
	defer s.Close()
	c, err = s.Open(ctx, "portfolio-cache-v1")
	require.NoError(t, err)
	got, err := c.Match(ctx, NewKey("GET", "/"))
	require.NoError(t, err)
	assert.Equal(t, []byte("shell"), got.Body)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}
