// Package pwa renders the browser-side PWA packaging: the service worker
// script and the web app manifest. The script is generated from the same
// offline.Config the Go controller runs with, so bumping the cache version
// in one place updates both.
package pwa

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/Zachkp/portfolio/internal/offline"
)

// Manifest is a web app manifest document.
type Manifest struct {
	Name            string `json:"name"`
	ShortName       string `json:"short_name"`
	Description     string `json:"description,omitempty"`
	StartURL        string `json:"start_url"`
	Scope           string `json:"scope"`
	Display         string `json:"display"`
	BackgroundColor string `json:"background_color"`
	ThemeColor      string `json:"theme_color"`
	Icons           []Icon `json:"icons"`
}

// Icon is one manifest icon.
type Icon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

// DefaultManifest describes the portfolio site.
func DefaultManifest(name, description string) Manifest {
	return Manifest{
		Name:            name,
		ShortName:       "Portfolio",
		Description:     description,
		StartURL:        "/",
		Scope:           "/",
		Display:         "standalone",
		BackgroundColor: "#0f172a",
		ThemeColor:      "#6366f1",
		Icons: []Icon{
			{Src: "/static/icons/icon-192.png", Sizes: "192x192", Type: "image/png"},
			{Src: "/static/icons/icon-512.png", Sizes: "512x512", Type: "image/png", Purpose: "any maskable"},
		},
	}
}

var swTemplate = template.Must(template.New("sw.js").Funcs(template.FuncMap{
	"literal": jsLiteral,
}).Parse(serviceWorkerSource))

type swData struct {
	CacheName   string
	Prefix      string
	Manifest    []string
	FontHosts   []string
	Shell       []string
	OfflineHTML string
	Placeholder string
}

// ServiceWorker writes the service worker script for cfg. Glob manifest
// entries are expanded against cfg.Assets, since the browser cannot.
func ServiceWorker(w io.Writer, cfg offline.Config) error {
	data := swData{
		CacheName:   cfg.CacheName(),
		Prefix:      cfg.Prefix,
		Manifest:    ExpandManifest(cfg),
		FontHosts:   cfg.FontHosts,
		Shell:       cfg.Shell,
		OfflineHTML: string(offline.OfflinePage()),
		Placeholder: string(offline.PlaceholderSVG()),
	}
	if err := swTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render service worker: %w", err)
	}
	return nil
}

func jsLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExpandManifest lists the URLs the browser worker pre-caches. Same-origin
// entries become root-relative paths so the script works on any host the
// site is served from.
func ExpandManifest(cfg offline.Config) []string {
	resolved, _ := cfg.ExpandManifest()
	out := make([]string, 0, len(resolved))
	for _, u := range resolved {
		if cfg.SameOrigin(u) {
			out = append(out, u.RequestURI())
			continue
		}
		out = append(out, u.String())
	}
	return out
}
