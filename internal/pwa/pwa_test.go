package pwa

import (
	"bytes"
	"encoding/json"
	"net/url"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/offline"
)

func testConfig(t *testing.T) offline.Config {
	t.Helper()
	origin, err := url.Parse("https://zach.dev")
	require.NoError(t, err)
	cfg := offline.DefaultConfig(origin)
	cfg.Assets = fstest.MapFS{
		"static/js/app.js":     {Data: []byte("")},
		"static/css/site.css":  {Data: []byte("")},
		"static/icons/x.png":   {Data: []byte("")},
		"templates/index.html": {Data: []byte("")},
	}
	return cfg
}

func TestExpandManifest(t *testing.T) {
	got := ExpandManifest(testConfig(t))
	assert.Equal(t, []string{
		"/",
		"/index.html",
		"/manifest.webmanifest",
		"/static/icons/icon-192.png",
		"/static/icons/icon-512.png",
		"/static/js/app.js",
		"/static/css/site.css",
		"https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&display=swap",
	}, got)
}

func TestServiceWorker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Version = "v42"

	var buf bytes.Buffer
	require.NoError(t, ServiceWorker(&buf, cfg))
	out := buf.String()

	assert.Contains(t, out, `const CACHE_NAME = "portfolio-cache-v42";`)
	assert.Contains(t, out, `const CACHE_PREFIX = "portfolio-cache-";`)
	assert.Contains(t, out, `const FONT_HOSTS = ["fonts.googleapis.com","fonts.gstatic.com"];`)
	assert.Contains(t, out, `"/static/js/app.js"`)
	assert.NotContains(t, out, `/static/js/*`)
	assert.Contains(t, out, "self.clients.claim()")
	// The offline page is embedded as an escaped string literal.
	assert.Contains(t, out, `\u003ch1\u003e`)
	assert.NotContains(t, out, "<h1>")
}

func TestDefaultManifestJSON(t *testing.T) {
	m := DefaultManifest("Zach Kordas-Potter", "Portfolio")
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "standalone", back["display"])
	assert.Equal(t, "/", back["start_url"])
	assert.Len(t, back["icons"], 2)
}
