package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/cachestore"
)

func TestListCaches(t *testing.T) {
	ctx := context.Background()
	storage := cachestore.NewMemory()

	var buf bytes.Buffer
	require.NoError(t, listCaches(ctx, &buf, storage, "portfolio-cache-", "portfolio-cache-v3"))
	assert.Equal(t, "No cache stores.\n", buf.String())

	seedStores(t, storage, "portfolio-cache-v2", "portfolio-cache-v3", "other-app")
	buf.Reset()
	require.NoError(t, listCaches(ctx, &buf, storage, "portfolio-cache-", "portfolio-cache-v3"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "NAME")
	assert.Contains(t, string(lines[1]), "portfolio-cache-v2")
	assert.Contains(t, string(lines[1]), "stale")
	assert.Contains(t, string(lines[2]), "current")
	assert.NotContains(t, string(lines[3]), "stale")
}

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	storage := cachestore.NewMemory()
	seedStores(t, storage, "portfolio-cache-v3")

	var buf bytes.Buffer
	require.NoError(t, listKeys(ctx, &buf, storage, "portfolio-cache-v3"))
	assert.Equal(t, "GET http://portfolio.test/\n", buf.String())

	err := listKeys(ctx, &buf, storage, "missing")
	assert.ErrorIs(t, err, cachestore.ErrNotFound)
	ok, err := storage.Has(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearCaches(t *testing.T) {
	ctx := context.Background()
	storage := cachestore.NewMemory()
	seedStores(t, storage, "portfolio-cache-v2", "other-app")

	n, err := clearCaches(ctx, storage)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := storage.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCacheCommandPurge(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	dbPath := filepath.Join(dir, "caches.db")
	t.Setenv("PORTFOLIO_DB_PATH", dbPath)
	t.Setenv("PORTFOLIO_CACHE_VERSION", "v3")

	s, err := cachestore.OpenSQLite(dbPath)
	require.NoError(t, err)
	seedStores(t, s, "portfolio-cache-v1", "portfolio-cache-v3", "other-app")
	require.NoError(t, s.Close())

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newCacheCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	out := run("purge")
	assert.Contains(t, out, "Deleted portfolio-cache-v1")
	assert.Contains(t, out, "1 stale caches removed, portfolio-cache-v3 kept.")

	out = run("list")
	assert.NotContains(t, out, "portfolio-cache-v1")
	assert.Contains(t, out, "portfolio-cache-v3")
	assert.Contains(t, out, "other-app")

	out = run("keys", "other-app")
	assert.Equal(t, "GET http://portfolio.test/\n", out)

	out = run("clear")
	assert.Equal(t, "All cache stores cleared (2).\n", out)
	assert.Equal(t, "No cache stores.\n", run("list"))
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
