// Package cachestore provides named collections of captured HTTP responses.
//
// A Storage holds any number of caches, each identified by a name that
// usually embeds a version tag (for example "portfolio-cache-v11"). A Cache
// maps request keys to response snapshots. Entries are never mutated in
// place; a Put with the same key replaces the stored entry wholesale.
package cachestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned by Match when no entry exists for a key.
var ErrNotFound = errors.New("cachestore: entry not found")

var errNilEntry = errors.New("cachestore: nil entry")

// Storage is a set of named caches.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Open returns the cache with the given name, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)

	// Has reports whether a cache with the given name exists.
	Has(ctx context.Context, name string) (bool, error)

	// Delete removes the named cache and every entry in it.
	// It reports false if no such cache existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Names lists cache names in creation order.
	Names(ctx context.Context) ([]string, error)
}

// Cache is a single named collection of entries.
//
// Implementations must be safe for concurrent use. Concurrent Puts for the
// same key race and the last write wins.
type Cache interface {
	Name() string
	Match(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, key Key, entry *Entry) error
	Delete(ctx context.Context, key Key) (bool, error)
	Keys(ctx context.Context) ([]Key, error)
}

// Key identifies a cached request by method and absolute URL.
type Key struct {
	Method string
	URL    string
}

// NewKey builds a Key, normalizing the method to upper case.
// An empty method means GET.
func NewKey(method, url string) Key {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return Key{Method: method, URL: url}
}

func (k Key) String() string {
	return k.Method + " " + k.URL
}

// Entry is a captured response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	Type     string
	StoredAt time.Time
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Header = e.Header.Clone()
	if e.Body != nil {
		out.Body = append([]byte(nil), e.Body...)
	}
	return &out
}

// StoreStats summarizes one named cache.
type StoreStats struct {
	Name    string `json:"name"`
	Entries int64  `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// StatsReporter is implemented by storages that can summarize their caches
// without reading every entry.
type StatsReporter interface {
	Stats(ctx context.Context) ([]StoreStats, error)
}

// Stats collects per-cache counts for any Storage, using StatsReporter when
// the storage provides it.
func Stats(ctx context.Context, s Storage) ([]StoreStats, error) {
	if r, ok := s.(StatsReporter); ok {
		return r.Stats(ctx)
	}
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoreStats, 0, len(names))
	for _, name := range names {
		c, err := s.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return nil, err
		}
		st := StoreStats{Name: name, Entries: int64(len(keys))}
		for _, k := range keys {
			e, err := c.Match(ctx, k)
			if err != nil {
				continue
			}
			st.Bytes += int64(len(e.Body))
		}
		out = append(out, st)
	}
	return out, nil
}

// Stale returns the names that share prefix but are not current.
func Stale(names []string, prefix, current string) []string {
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) && name != current {
			out = append(out, name)
		}
	}
	return out
}

// PurgeStale deletes every cache whose name starts with prefix and is not
// current. It returns the deleted names.
func PurgeStale(ctx context.Context, s Storage, prefix, current string) ([]string, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, name := range Stale(names, prefix, current) {
		ok, err := s.Delete(ctx, name)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}
