package cachestore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Storage.
type Memory struct {
	mu     sync.RWMutex
	caches map[string]*memoryCache
	order  []string
}

// NewMemory returns an empty in-memory Storage.
func NewMemory() *Memory {
	return &Memory{caches: make(map[string]*memoryCache)}
}

func (m *Memory) Open(_ context.Context, name string) (Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[name]; ok {
		return c, nil
	}
	c := &memoryCache{name: name, entries: make(map[Key]*Entry)}
	m.caches[name] = c
	m.order = append(m.order, name)
	return c, nil
}

func (m *Memory) Has(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.caches[name]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[name]; !ok {
		return false, nil
	}
	delete(m.caches, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	return true, nil
}

func (m *Memory) Names(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order), nil
}

type memoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[Key]*Entry
	order   []Key
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(_ context.Context, key Key) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (c *memoryCache) Put(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return errNilEntry
	}
	e := entry.Clone()
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = e
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key Key) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	c.order = slices.DeleteFunc(c.order, func(k Key) bool { return k == key })
	return true, nil
}

func (c *memoryCache) Keys(_ context.Context) ([]Key, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order), nil
}
