package kv

import (
	"context"
	"path"
	"sync"
	"time"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

func (i *item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore is the in-process KeyValueStore. It is safe for concurrent use
// and backs both the rate limiter and the cache when no remote store is
// configured, and serves as the degraded-mode fallback when one is.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*item
	sets  map[string]map[string]struct{}

	janitorStop chan struct{}
	janitorOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*item),
		sets:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || it.expired(time.Now()) {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := &item{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = it
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.items, key)
		delete(m.sets, key)
	}
	m.mu.Unlock()
	return nil
}

// Keys matches live keys against a glob pattern ('*' wildcard), mirroring the
// semantics of the remote store's KEYS command.
func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key, it := range m.items {
		if it.expired(now) {
			continue
		}
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members, nil
}

func (m *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	if set, ok := m.sets[key]; ok {
		for _, member := range members {
			delete(set, member)
		}
		if len(set) == 0 {
			delete(m.sets, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// StartJanitor launches the periodic sweep that evicts expired entries. It
// returns a stop function; call it on shutdown so tests and short-lived
// processes leave no ticking goroutine behind.
func (m *MemoryStore) StartJanitor(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	stopCh := make(chan struct{})
	m.mu.Lock()
	m.janitorStop = stopCh
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep(time.Now())
			case <-stopCh:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
	}
}

func (m *MemoryStore) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, it := range m.items {
		if it.expired(now) {
			delete(m.items, key)
		}
	}
}

// Len reports the number of stored entries, expired ones included until the
// next sweep. Used by tests and the health probe.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
