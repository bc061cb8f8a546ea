package offline

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("offline: invalid config")

const (
	DefaultPrefix  = "portfolio-cache-"
	DefaultVersion = "v11"
)

// DefaultFontHosts are the cross-origin hosts whose responses may be cached.
var DefaultFontHosts = []string{"fonts.googleapis.com", "fonts.gstatic.com"}

// DefaultManifest is the set of core assets pre-cached at install time.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.webmanifest",
	"/static/icons/icon-192.png",
	"/static/icons/icon-512.png",
	"/static/js/*",
	"/static/css/*",
	"https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&display=swap",
}

// DefaultShell lists the cached documents tried, in order, for navigations.
var DefaultShell = []string{"/index.html", "/"}

// Config describes one version of the cache controller.
type Config struct {
	// Prefix is shared by every version's cache name.
	Prefix string
	// Version is appended to Prefix. Bumping it invalidates all older caches.
	Version string
	// Origin is the scheme and host the controller governs.
	Origin *url.URL
	// Manifest entries are fetched and cached on install. Relative entries
	// resolve against Origin; relative entries containing * or [ are globs
	// expanded against Assets. A ? starts the query string, not a glob.
	Manifest []string
	// Assets is the site's static file tree, rooted at the URL root.
	Assets fs.FS
	// FontHosts are the only cross-origin hosts the controller intercepts.
	FontHosts []string
	// Shell is tried in order when a navigation misses the cache.
	Shell []string
	// InstallConcurrency bounds parallel manifest fetches.
	InstallConcurrency int
}

// DefaultConfig returns the controller defaults for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Prefix:             DefaultPrefix,
		Version:            DefaultVersion,
		Origin:             origin,
		Manifest:           append([]string(nil), DefaultManifest...),
		FontHosts:          append([]string(nil), DefaultFontHosts...),
		Shell:              append([]string(nil), DefaultShell...),
		InstallConcurrency: 4,
	}
}

// CacheName is the name of the current cache store.
func (c Config) CacheName() string {
	return c.Prefix + c.Version
}

// Validate reports whether the config can drive a controller.
func (c Config) Validate() error {
	switch {
	case c.Prefix == "":
		return fmt.Errorf("%w: cache prefix is empty", ErrInvalidConfig)
	case c.Version == "":
		return fmt.Errorf("%w: cache version is empty", ErrInvalidConfig)
	case c.Origin == nil || c.Origin.Host == "":
		return fmt.Errorf("%w: origin is required", ErrInvalidConfig)
	case c.Origin.Scheme != "http" && c.Origin.Scheme != "https":
		return fmt.Errorf("%w: origin scheme %q is not http(s)", ErrInvalidConfig, c.Origin.Scheme)
	}
	return nil
}

// isFontHost reports whether host is allow-listed. Matching ignores case.
func (c Config) isFontHost(host string) bool {
	for _, h := range c.FontHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

// SameOrigin compares scheme, host and port of u with the configured origin.
func (c Config) SameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.Origin.Scheme) &&
		strings.EqualFold(u.Hostname(), c.Origin.Hostname()) &&
		effectivePort(u) == effectivePort(c.Origin)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

// resolve turns a manifest or shell entry into an absolute URL.
func (c Config) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return c.Origin.ResolveReference(u), nil
}

// ExpandManifest resolves the manifest into absolute URLs, in manifest order
// and without duplicates. Glob entries are expanded against Assets; entries
// that fail to parse or match nothing are returned in skipped.
func (c Config) ExpandManifest() (urls []*url.URL, skipped []string) {
	seen := make(map[string]bool)
	add := func(ref string) bool {
		u, err := c.resolve(ref)
		if err != nil {
			return false
		}
		if s := u.String(); !seen[s] {
			seen[s] = true
			urls = append(urls, u)
		}
		return true
	}

	for _, entry := range c.Manifest {
		if isAbsoluteURL(entry) || !strings.ContainsAny(entry, "*[") {
			if !add(entry) {
				skipped = append(skipped, entry)
			}
			continue
		}
		if c.Assets == nil {
			skipped = append(skipped, entry)
			continue
		}
		matches, err := fs.Glob(c.Assets, strings.TrimPrefix(entry, "/"))
		if err != nil || len(matches) == 0 {
			skipped = append(skipped, entry)
			continue
		}
		for _, m := range matches {
			add("/" + m)
		}
	}
	return urls, skipped
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
