package cache

import (
	"context"
	"sync"
	"time"
)

const (
	sweepInterval     = time.Minute
	defaultMaxEntries = 100_000
)

type memoryEntry struct {
	value   string
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryCache is the default Cache when no Redis is configured. Expired
// entries are dropped on access and by a background sweep. When full, Set
// sweeps first and then evicts arbitrary entries to stay within the bound.
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]memoryEntry
	maxEntries int
	now        func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache() *MemoryCache {
	return newMemoryCache(defaultMaxEntries, sweepInterval)
}

func newMemoryCache(maxEntries int, every time.Duration) *MemoryCache {
	m := &MemoryCache{
		items:      make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if every > 0 {
		go m.sweepLoop(every)
	}
	return m
}

var _ Cache = (*MemoryCache)(nil)

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrMiss
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	now := m.now()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.sweepLocked(now)
		for k := range m.items {
			if len(m.items) < m.maxEntries {
				break
			}
			delete(m.items, k)
		}
	}
	m.items[key] = e
	return nil
}

func (m *MemoryCache) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	m.mu.Lock()
	for _, k := range keys {
		if _, ok := m.items[k]; ok {
			delete(m.items, k)
			n++
		}
	}
	m.mu.Unlock()
	return n, nil
}

// Sweep drops every expired entry and reports how many were removed.
func (m *MemoryCache) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryCache) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *MemoryCache) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

// Close stops the background sweep. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return nil
}
