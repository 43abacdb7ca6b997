package kv

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/ports"
)

// FallbackStore fronts a remote store with an in-process one. When the remote
// store errors, the operation is retried against the fallback so the
// governance layer keeps working on local state instead of failing requests.
// The degraded-mode transition is logged once per episode, not per operation.
type FallbackStore struct {
	primary  ports.KeyValueStore
	fallback ports.KeyValueStore
	logger   *logrus.Logger

	mu       sync.Mutex
	degraded bool
}

func NewFallbackStore(primary, fallback ports.KeyValueStore, logger *logrus.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackStore) noteFailure(err error) {
	f.mu.Lock()
	first := !f.degraded
	f.degraded = true
	f.mu.Unlock()
	if first && f.logger != nil {
		f.logger.WithError(err).Warn("remote key-value store unavailable; degraded to in-process store")
	}
}

func (f *FallbackStore) noteSuccess() {
	f.mu.Lock()
	recovered := f.degraded
	f.degraded = false
	f.mu.Unlock()
	if recovered && f.logger != nil {
		f.logger.Info("remote key-value store recovered")
	}
}

func (f *FallbackStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := f.primary.Get(ctx, key)
	if err != nil {
		f.noteFailure(err)
		return f.fallback.Get(ctx, key)
	}
	f.noteSuccess()
	return val, ok, nil
}

func (f *FallbackStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.primary.Set(ctx, key, value, ttl); err != nil {
		f.noteFailure(err)
		return f.fallback.Set(ctx, key, value, ttl)
	}
	f.noteSuccess()
	return nil
}

func (f *FallbackStore) Delete(ctx context.Context, keys ...string) error {
	if err := f.primary.Delete(ctx, keys...); err != nil {
		f.noteFailure(err)
		return f.fallback.Delete(ctx, keys...)
	}
	f.noteSuccess()
	return nil
}

func (f *FallbackStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := f.primary.Keys(ctx, pattern)
	if err != nil {
		f.noteFailure(err)
		return f.fallback.Keys(ctx, pattern)
	}
	f.noteSuccess()
	return keys, nil
}

func (f *FallbackStore) SAdd(ctx context.Context, key string, members ...string) error {
	if err := f.primary.SAdd(ctx, key, members...); err != nil {
		f.noteFailure(err)
		return f.fallback.SAdd(ctx, key, members...)
	}
	f.noteSuccess()
	return nil
}

func (f *FallbackStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := f.primary.SMembers(ctx, key)
	if err != nil {
		f.noteFailure(err)
		return f.fallback.SMembers(ctx, key)
	}
	f.noteSuccess()
	return members, nil
}

func (f *FallbackStore) SRem(ctx context.Context, key string, members ...string) error {
	if err := f.primary.SRem(ctx, key, members...); err != nil {
		f.noteFailure(err)
		return f.fallback.SRem(ctx, key, members...)
	}
	f.noteSuccess()
	return nil
}
