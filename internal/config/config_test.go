package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/offline"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"PORT", "PORTFOLIO_DB_PATH", "PORTFOLIO_CACHE_VERSION"} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "portfolio.db", cfg.DBPath)
	assert.Equal(t, "portfolio-cache-v11", cfg.CacheName())
	assert.Equal(t, offline.DefaultFontHosts, cfg.Offline.FontHosts)
	assert.Equal(t, offline.DefaultManifest, cfg.Offline.Manifest)
	assert.True(t, cfg.Offline.Compress)
	assert.Equal(t, 4, cfg.Offline.InstallConcurrency)
}

func TestLoadEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("PORTFOLIO_CACHE_VERSION", "v12")
	t.Setenv("PORTFOLIO_FONT_HOSTS", "fonts.example.com,static.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "portfolio-cache-v12", cfg.CacheName())
	assert.Equal(t, []string{"fonts.example.com", "static.example.com"}, cfg.Offline.FontHosts)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("SITE_ORIGIN", "https://zach.dev")
	content := `
port: "7000"
offline:
  origin: ${SITE_ORIGIN}
  version: v20
  manifest:
    - /
    - /index.html
  install_concurrency: 2
`
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "https://zach.dev", cfg.Offline.Origin)
	assert.Equal(t, "portfolio-cache-v20", cfg.CacheName())
	assert.Equal(t, []string{"/", "/index.html"}, cfg.Offline.Manifest)
	assert.Equal(t, 2, cfg.Offline.InstallConcurrency)

	oc, err := cfg.OfflineController(nil)
	require.NoError(t, err)
	assert.Equal(t, "portfolio-cache-v20", oc.CacheName())
	assert.Equal(t, "zach.dev", oc.Origin.Host)
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("offline: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestOfflineControllerInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Offline.Version = ""
	_, err = cfg.OfflineController(nil)
	assert.ErrorIs(t, err, offline.ErrInvalidConfig)
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
