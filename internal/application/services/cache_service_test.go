package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone/newsroom/internal/core/ports"
	"github.com/inkstone/newsroom/internal/infrastructure/kv"
	"github.com/inkstone/newsroom/test/mocks"
)

func newTestCache(t *testing.T) (*CacheService, *kv.MemoryStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := kv.NewMemoryStore()
	return NewCacheService(store, ports.ClockFunc(clock.Now), testLogger(), "newsroom"), store, clock
}

func staticLoader(value any, calls *atomic.Int32) ports.CacheLoader {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestCacheAsideFreshHitSkipsLoader(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32
	opts := ports.CacheOptions{TTL: time.Minute}

	first, err := cache.Aside(ctx, "posts", "42", staticLoader("hello", &calls), opts)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(first))

	second, err := cache.Aside(ctx, "posts", "42", staticLoader("hello", &calls), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheAsideLoaderErrorIsNotCached(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()
	opts := ports.CacheOptions{TTL: time.Minute}

	boom := errors.New("source down")
	_, err := cache.Aside(ctx, "posts", "42", func(ctx context.Context) (any, error) {
		return nil, boom
	}, opts)
	require.ErrorIs(t, err, boom)

	// The failure left nothing behind: the next lookup runs the loader,
	// which now succeeds.
	var calls atomic.Int32
	raw, err := cache.Aside(ctx, "posts", "42", staticLoader("recovered", &calls), opts)
	require.NoError(t, err)
	assert.JSONEq(t, `"recovered"`, string(raw))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheAsideStaleWhileRevalidate(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()
	opts := ports.CacheOptions{TTL: time.Minute, StaleWhileRevalidate: 5 * time.Minute}

	var calls atomic.Int32
	_, err := cache.Aside(ctx, "posts", "42", staticLoader("v1", &calls), opts)
	require.NoError(t, err)

	// Stale but inside the revalidate window: the old value comes back
	// immediately and one refresh runs in the background.
	clock.Advance(2 * time.Minute)
	release := make(chan struct{})
	slowLoader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "v2", nil
	}

	for i := 0; i < 3; i++ {
		raw, err := cache.Aside(ctx, "posts", "42", slowLoader, opts)
		require.NoError(t, err)
		assert.JSONEq(t, `"v1"`, string(raw))
	}

	close(release)
	cache.WaitForRefreshes()

	// Exactly one of the three stale hits triggered a refresh.
	assert.Equal(t, int32(2), calls.Load())

	raw, err := cache.Aside(ctx, "posts", "42", slowLoader, opts)
	require.NoError(t, err)
	assert.JSONEq(t, `"v2"`, string(raw))
}

func TestCacheAsideBackgroundRefreshFailureKeepsStaleValue(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()
	opts := ports.CacheOptions{TTL: time.Minute, StaleWhileRevalidate: 5 * time.Minute}

	var calls atomic.Int32
	_, err := cache.Aside(ctx, "posts", "42", staticLoader("v1", &calls), opts)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	raw, err := cache.Aside(ctx, "posts", "42", func(ctx context.Context) (any, error) {
		return nil, errors.New("source down")
	}, opts)
	require.NoError(t, err)
	assert.JSONEq(t, `"v1"`, string(raw))
	cache.WaitForRefreshes()

	// The failed refresh never reached a caller and the old entry survives.
	raw, ok, err := cache.Get(ctx, "posts", "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"v1"`, string(raw))
}

func TestCacheAsideReloadsPastStaleWindow(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()
	opts := ports.CacheOptions{TTL: time.Minute, StaleWhileRevalidate: time.Minute}

	var calls atomic.Int32
	_, err := cache.Aside(ctx, "posts", "42", staticLoader("v1", &calls), opts)
	require.NoError(t, err)

	// Beyond TTL+stale the entry is unservable: the load is synchronous.
	clock.Advance(3 * time.Minute)
	raw, err := cache.Aside(ctx, "posts", "42", staticLoader("v2", &calls), opts)
	require.NoError(t, err)
	assert.JSONEq(t, `"v2"`, string(raw))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheAsideCoalescesConcurrentMisses(t *testing.T) {
	cache, _, _ := newTestCache(t)
	opts := ports.CacheOptions{TTL: time.Minute}

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := cache.Aside(context.Background(), "posts", "42", loader, opts)
			assert.NoError(t, err)
			assert.JSONEq(t, `"shared"`, string(raw))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheInvalidateByTag(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "posts", "1", "a", ports.CacheOptions{TTL: time.Minute, Tags: []string{"all:posts"}}))
	require.NoError(t, cache.Set(ctx, "posts", "2", "b", ports.CacheOptions{TTL: time.Minute, Tags: []string{"all:posts"}}))
	require.NoError(t, cache.Set(ctx, "profiles", "9", "c", ports.CacheOptions{TTL: time.Minute, Tags: []string{"all:profiles"}}))

	n, err := cache.InvalidateByTag(ctx, "all:posts")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := cache.Get(ctx, "posts", "1")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "posts", "2")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "profiles", "9")
	assert.True(t, ok)

	// The tag index was consumed along with its entries.
	n, err = cache.InvalidateByTag(ctx, "all:posts")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCacheDeleteScrubsTagIndex(t *testing.T) {
	cache, store, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "posts", "1", "a", ports.CacheOptions{TTL: time.Minute, Tags: []string{"all:posts"}}))
	require.NoError(t, cache.Delete(ctx, "posts", "1"))

	members, err := store.SMembers(ctx, "newsroom:tag:all:posts")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestCacheInvalidateByPattern(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()
	opts := ports.CacheOptions{TTL: time.Minute}

	require.NoError(t, cache.Set(ctx, "posts", "list:page:1", "a", opts))
	require.NoError(t, cache.Set(ctx, "posts", "list:page:2", "b", opts))
	require.NoError(t, cache.Set(ctx, "posts", "detail:42", "c", opts))

	n, err := cache.InvalidateByPattern(ctx, "posts", "list:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := cache.Get(ctx, "posts", "list:page:1")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "posts", "detail:42")
	assert.True(t, ok)
}

func TestCacheClearLeavesForeignKeysAlone(t *testing.T) {
	cache, store, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "posts", "1", "a", ports.CacheOptions{TTL: time.Minute}))
	require.NoError(t, store.Set(ctx, "ratelimit:standard:/posts:1.2.3.4", []byte(`{"count":3}`), time.Minute))

	require.NoError(t, cache.Clear(ctx))

	_, ok, _ := cache.Get(ctx, "posts", "1")
	assert.False(t, ok)
	_, ok, err := store.Get(ctx, "ratelimit:standard:/posts:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheDegradesToMissOnStoreFailure(t *testing.T) {
	cache := NewCacheService(mocks.FailingStore{}, nil, testLogger(), "newsroom")
	ctx := context.Background()

	var calls atomic.Int32
	for i := 0; i < 2; i++ {
		raw, err := cache.Aside(ctx, "posts", "42", staticLoader("direct", &calls), ports.CacheOptions{TTL: time.Minute})
		require.NoError(t, err)
		assert.JSONEq(t, `"direct"`, string(raw))
	}
	// Every lookup fell through to the loader.
	assert.Equal(t, int32(2), calls.Load())
}

func TestAsideAsUnmarshalsTypedValue(t *testing.T) {
	cache, _, _ := newTestCache(t)

	type article struct {
		Title string `json:"title"`
		Views int    `json:"views"`
	}
	got, err := AsideAs(context.Background(), cache, "posts", "42", func(ctx context.Context) (*article, error) {
		return &article{Title: "hello", Views: 7}, nil
	}, ports.CacheOptions{TTL: time.Minute})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Title)
	assert.Equal(t, 7, got.Views)
}

func TestCacheKeyJoinsParts(t *testing.T) {
	assert.Equal(t, "list:page:1:limit:20", CacheKey("list", "page", "1", "limit", "20"))
}

func TestCacheEntryEnvelopeFreshness(t *testing.T) {
	raw, err := json.Marshal(&cacheEntry{
		Data:         json.RawMessage(`"x"`),
		TimestampMs:  1000,
		TTLSeconds:   60,
		StaleSeconds: 120,
	})
	require.NoError(t, err)

	var entry cacheEntry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, time.UnixMilli(1000).Add(time.Minute), entry.freshUntil())
	assert.Equal(t, time.UnixMilli(1000).Add(3*time.Minute), entry.servableUntil())
}
