package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/inkstone/newsroom/internal/core/ports"
)

// cacheEntry is the stored envelope around a cached payload. Freshness is
// judged against Timestamp, not against the store's own TTL: the store keeps
// the entry alive through the stale window, the envelope decides how it may
// be served.
type cacheEntry struct {
	Data         json.RawMessage `json:"data"`
	TimestampMs  int64           `json:"timestamp_ms"`
	TTLSeconds   int             `json:"ttl_seconds"`
	StaleSeconds int             `json:"stale_seconds,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}

func (e *cacheEntry) freshUntil() time.Time {
	return time.UnixMilli(e.TimestampMs).Add(time.Duration(e.TTLSeconds) * time.Second)
}

func (e *cacheEntry) servableUntil() time.Time {
	return e.freshUntil().Add(time.Duration(e.StaleSeconds) * time.Second)
}

// CacheService implements ports.CacheService over an injected KeyValueStore.
// All store failures are logged and degrade to a miss or a no-op; the cache
// is an optimization, never a source of truth.
type CacheService struct {
	store  ports.KeyValueStore
	clock  ports.Clock
	logger *logrus.Logger
	prefix string

	// loads coalesces synchronous loader calls on a cold miss.
	loads singleflight.Group
	// refreshMu guards refreshing: the set of keys with a background refresh
	// in flight. One refresh per key; later stale hits attach by skipping.
	refreshMu  sync.Mutex
	refreshing map[string]struct{}
	// refreshTimeout bounds a background refresh so the in-flight set cannot
	// grow without bound on a hung loader.
	refreshTimeout time.Duration

	// wg tracks background refreshes so tests and shutdown can drain them.
	wg sync.WaitGroup
}

func NewCacheService(store ports.KeyValueStore, clock ports.Clock, logger *logrus.Logger, prefix string) *CacheService {
	if clock == nil {
		clock = ports.SystemClock()
	}
	if prefix == "" {
		prefix = "cache"
	}
	return &CacheService{
		store:          store,
		clock:          clock,
		logger:         logger,
		prefix:         prefix,
		refreshing:     make(map[string]struct{}),
		refreshTimeout: 30 * time.Second,
	}
}

func (s *CacheService) fullKey(namespace, key string) string {
	return s.prefix + ":" + namespace + ":" + key
}

func (s *CacheService) tagKey(tag string) string {
	return s.prefix + ":tag:" + tag
}

// Aside implements the cache-aside lookup with stale-while-revalidate.
func (s *CacheService) Aside(ctx context.Context, namespace, key string, loader ports.CacheLoader, opts ports.CacheOptions) ([]byte, error) {
	fk := s.fullKey(namespace, key)
	now := s.clock.Now()

	entry, ok := s.readEntry(ctx, fk)
	if ok {
		if now.Before(entry.freshUntil()) {
			return entry.Data, nil
		}
		if now.Before(entry.servableUntil()) {
			s.scheduleRefresh(fk, namespace, key, loader, opts)
			return entry.Data, nil
		}
	}

	// Cold miss (or expired beyond the stale window): load synchronously,
	// coalescing concurrent callers onto one loader call.
	v, err, _ := s.loads.Do(fk, func() (any, error) {
		if entry, ok := s.readEntry(ctx, fk); ok && s.clock.Now().Before(entry.servableUntil()) {
			return []byte(entry.Data), nil
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		s.writeEntry(ctx, fk, raw, opts)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// scheduleRefresh starts one background reload for fk unless one is already
// in flight. The refresh is deliberately decoupled from the originating
// request: it runs on its own context with a timeout, and its failure leaves
// the old entry in place without reaching any caller.
func (s *CacheService) scheduleRefresh(fk, namespace, key string, loader ports.CacheLoader, opts ports.CacheOptions) {
	s.refreshMu.Lock()
	if _, inflight := s.refreshing[fk]; inflight {
		s.refreshMu.Unlock()
		return
	}
	s.refreshing[fk] = struct{}{}
	s.refreshMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.refreshMu.Lock()
			delete(s.refreshing, fk)
			s.refreshMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()

		value, err := loader(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{"namespace": namespace, "key": key}).Warn("background cache refresh failed; serving stale entry")
			}
			return
		}
		raw, err := json.Marshal(value)
		if err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{"namespace": namespace, "key": key}).Warn("background cache refresh produced unmarshalable value")
			}
			return
		}
		s.writeEntry(ctx, fk, raw, opts)
	}()
}

// WaitForRefreshes blocks until in-flight background refreshes finish.
func (s *CacheService) WaitForRefreshes() {
	s.wg.Wait()
}

// Get implements ports.CacheService.
func (s *CacheService) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	entry, ok := s.readEntry(ctx, s.fullKey(namespace, key))
	if !ok || !s.clock.Now().Before(entry.servableUntil()) {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Set implements ports.CacheService.
func (s *CacheService) Set(ctx context.Context, namespace, key string, value any, opts ports.CacheOptions) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.writeEntry(ctx, s.fullKey(namespace, key), raw, opts)
	return nil
}

// Delete implements ports.CacheService.
func (s *CacheService) Delete(ctx context.Context, namespace, key string) error {
	s.deleteKeys(ctx, s.fullKey(namespace, key))
	return nil
}

// InvalidateByTag removes every entry registered under tag, then the tag set
// itself. The index is advisory: keys listed there that no longer exist are
// simply skipped by the store delete.
func (s *CacheService) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tk := s.tagKey(tag)
	members, err := s.store.SMembers(ctx, tk)
	if err != nil {
		s.logStoreError("cache invalidate-by-tag failed", err)
		return 0, nil
	}
	for _, fk := range members {
		s.deleteEntryOnly(ctx, fk)
	}
	if err := s.store.Delete(ctx, tk); err != nil {
		s.logStoreError("cache tag cleanup failed", err)
	}
	return len(members), nil
}

// InvalidateByPattern removes entries in namespace matching a glob pattern.
func (s *CacheService) InvalidateByPattern(ctx context.Context, namespace, pattern string) (int, error) {
	keys, err := s.store.Keys(ctx, s.prefix+":"+namespace+":"+pattern)
	if err != nil {
		s.logStoreError("cache invalidate-by-pattern failed", err)
		return 0, nil
	}
	s.deleteKeys(ctx, keys...)
	return len(keys), nil
}

// Clear removes everything under this cache's prefix. Other keys in a shared
// store, including rate limiter state, stay untouched.
func (s *CacheService) Clear(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, s.prefix+":*")
	if err != nil {
		s.logStoreError("cache clear failed", err)
		return nil
	}
	if len(keys) > 0 {
		if err := s.store.Delete(ctx, keys...); err != nil {
			s.logStoreError("cache clear failed", err)
		}
	}
	return nil
}

func (s *CacheService) readEntry(ctx context.Context, fk string) (*cacheEntry, bool) {
	raw, ok, err := s.store.Get(ctx, fk)
	if err != nil {
		s.logStoreError("cache read failed; treating as miss", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logStoreError("cache entry corrupt; treating as miss", err)
		return nil, false
	}
	return &entry, true
}

// writeEntry stores the envelope and registers its tags. Tag index updates
// ride along with the write; a failed index update is tolerated because the
// index only narrows deletion, it never grants hits.
func (s *CacheService) writeEntry(ctx context.Context, fk string, data json.RawMessage, opts ports.CacheOptions) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	entry := cacheEntry{
		Data:         data,
		TimestampMs:  s.clock.Now().UnixMilli(),
		TTLSeconds:   int(ttl.Seconds()),
		StaleSeconds: int(opts.StaleWhileRevalidate.Seconds()),
		Tags:         opts.Tags,
	}
	raw, err := json.Marshal(&entry)
	if err != nil {
		s.logStoreError("cache entry marshal failed", err)
		return
	}
	storeTTL := ttl + opts.StaleWhileRevalidate
	if err := s.store.Set(ctx, fk, raw, storeTTL); err != nil {
		s.logStoreError("cache write failed", err)
		return
	}
	for _, tag := range opts.Tags {
		if err := s.store.SAdd(ctx, s.tagKey(tag), fk); err != nil {
			s.logStoreError("cache tag index update failed", err)
		}
	}
}

// deleteKeys removes entries and scrubs each from its tags' index sets.
func (s *CacheService) deleteKeys(ctx context.Context, fks ...string) {
	for _, fk := range fks {
		if entry, ok := s.readEntry(ctx, fk); ok {
			for _, tag := range entry.Tags {
				if err := s.store.SRem(ctx, s.tagKey(tag), fk); err != nil {
					s.logStoreError("cache tag scrub failed", err)
				}
			}
		}
		s.deleteEntryOnly(ctx, fk)
	}
}

func (s *CacheService) deleteEntryOnly(ctx context.Context, fk string) {
	if err := s.store.Delete(ctx, fk); err != nil {
		s.logStoreError("cache delete failed", err)
	}
}

func (s *CacheService) logStoreError(msg string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).Warn(msg)
	}
}

// AsideAs is the typed convenience over CacheService.Aside: it unmarshals the
// cached JSON payload into T.
func AsideAs[T any](ctx context.Context, cache ports.CacheService, namespace, key string, loader func(ctx context.Context) (T, error), opts ports.CacheOptions) (T, error) {
	var zero T
	raw, err := cache.Aside(ctx, namespace, key, func(ctx context.Context) (any, error) {
		return loader(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// CacheKey joins key parts with ':' in one place so call sites stay uniform.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
