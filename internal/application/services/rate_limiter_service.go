package services

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/ratelimit"
	"github.com/inkstone/newsroom/internal/core/ports"
)

// RateLimiterService implements ports.RateLimiterService over an injected
// KeyValueStore. State is read-modify-write per key, serialized in-process by
// a per-key lock. Across processes sharing one store, concurrent checks on
// the same key may slightly under-count; acceptable for abuse mitigation,
// not for billing-grade accounting.
type RateLimiterService struct {
	store  ports.KeyValueStore
	clock  ports.Clock
	logger *logrus.Logger
	locks  keyedMutex
	prefix string
}

func NewRateLimiterService(store ports.KeyValueStore, clock ports.Clock, logger *logrus.Logger) *RateLimiterService {
	if clock == nil {
		clock = ports.SystemClock()
	}
	return &RateLimiterService{store: store, clock: clock, logger: logger, prefix: "ratelimit"}
}

// Check consumes one unit of quota for key under policy. Denial is a false
// Allowed, never an error; when the store is unavailable the limiter fails
// open and logs a degraded-mode event.
func (s *RateLimiterService) Check(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error) {
	storeKey := s.prefix + ":" + policy.Name + ":" + key

	unlock := s.locks.lock(storeKey)
	defer unlock()

	now := s.clock.Now()
	entry, live, err := s.loadEntry(ctx, storeKey)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).WithField("key", storeKey).Warn("rate limiter store unavailable; allowing request (fail-open)")
		}
		return ratelimit.Result{
			Allowed:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit,
			ResetAt:   now.Add(policy.Window()),
		}, nil
	}

	var result ratelimit.Result
	var next ratelimit.Entry
	switch policy.Strategy {
	case ratelimit.StrategySlidingWindow:
		result, next = checkSlidingWindow(entry, live, policy, now)
	case ratelimit.StrategyTokenBucket:
		result, next = checkTokenBucket(entry, live, policy, now)
	default:
		result, next = checkFixedWindow(entry, live, policy, now)
	}

	ttl := time.UnixMilli(next.ResetAtMs).Sub(now)
	if policy.Strategy == ratelimit.StrategyTokenBucket {
		// A bucket key stays useful until the bucket is full again.
		ttl = 2 * policy.Window()
	}
	if err := s.storeEntry(ctx, storeKey, next, ttl); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("key", storeKey).Warn("rate limiter failed to persist entry")
	}
	return result, nil
}

func (s *RateLimiterService) loadEntry(ctx context.Context, key string) (ratelimit.Entry, bool, error) {
	var entry ratelimit.Entry
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return entry, false, err
	}
	if !ok {
		return entry, false, nil
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt state: start the key over rather than denying traffic.
		return ratelimit.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *RateLimiterService) storeEntry(ctx context.Context, key string, entry ratelimit.Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.store.Set(ctx, key, raw, ttl)
}

// checkFixedWindow counts requests inside boundary-aligned windows. The
// counter resets hard at each boundary, so a client can burst up to 2x the
// limit straddling one; that is accepted fixed-window behavior.
func checkFixedWindow(entry ratelimit.Entry, live bool, policy ratelimit.Policy, now time.Time) (ratelimit.Result, ratelimit.Entry) {
	windowMs := policy.Window().Milliseconds()
	boundary := now.UnixMilli() / windowMs * windowMs
	resetMs := boundary + windowMs

	count := 1
	if live && entry.ResetAtMs == resetMs {
		count = entry.Count + 1
	}

	reset := time.UnixMilli(resetMs)
	if count > policy.Limit {
		return denied(policy, reset, now), ratelimit.Entry{Count: entry.Count, ResetAtMs: resetMs}
	}
	return ratelimit.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetAt:   reset,
	}, ratelimit.Entry{Count: count, ResetAtMs: resetMs}
}

// checkSlidingWindow decays the previous count proportionally to how much of
// the old window remains, then slides the window forward. An approximation of
// an exact sliding log: older traffic fades out smoothly instead of being
// tracked per timestamp.
func checkSlidingWindow(entry ratelimit.Entry, live bool, policy ratelimit.Policy, now time.Time) (ratelimit.Result, ratelimit.Entry) {
	windowMs := policy.Window().Milliseconds()
	nowMs := now.UnixMilli()

	count := 1
	if live && entry.ResetAtMs > nowMs {
		remaining := entry.ResetAtMs - nowMs
		carried := int(math.Floor(float64(entry.Count) * float64(remaining) / float64(windowMs)))
		count = carried + 1
	}

	if count > policy.Limit {
		// Deny without sliding: admitting the slide here would push the
		// reset time out forever under sustained pressure.
		return denied(policy, time.UnixMilli(entry.ResetAtMs), now), entry
	}
	resetMs := nowMs + windowMs
	return ratelimit.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetAt:   time.UnixMilli(resetMs),
	}, ratelimit.Entry{Count: count, ResetAtMs: resetMs}
}

// checkTokenBucket refills limit/window tokens per second since the last
// refill, capped at limit, and spends one per request.
func checkTokenBucket(entry ratelimit.Entry, live bool, policy ratelimit.Policy, now time.Time) (ratelimit.Result, ratelimit.Entry) {
	nowMs := now.UnixMilli()
	refillPerSec := float64(policy.Limit) / float64(policy.WindowSeconds)

	tokens := float64(policy.Limit)
	if live {
		elapsed := float64(nowMs-entry.LastRefillMs) / 1000.0
		if elapsed < 0 {
			elapsed = 0
		}
		tokens = entry.Tokens + elapsed*refillPerSec
		if tokens > float64(policy.Limit) {
			tokens = float64(policy.Limit)
		}
	}

	next := ratelimit.Entry{LastRefillMs: nowMs}
	if tokens < 1 {
		next.Tokens = tokens
		next.ResetAtMs = nowMs + fullAgainMs(policy.Limit, tokens, refillPerSec)
		res := denied(policy, time.UnixMilli(next.ResetAtMs), now)
		res.RetryAfterSeconds = int(math.Ceil((1 - tokens) / refillPerSec))
		if res.RetryAfterSeconds < 1 {
			res.RetryAfterSeconds = 1
		}
		return res, next
	}

	next.Tokens = tokens - 1
	next.ResetAtMs = nowMs + fullAgainMs(policy.Limit, next.Tokens, refillPerSec)
	return ratelimit.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: int(next.Tokens),
		ResetAt:   time.UnixMilli(next.ResetAtMs),
	}, next
}

// fullAgainMs is how long until the bucket refills completely; it doubles as
// the reset header value for token buckets.
func fullAgainMs(limit int, tokens, refillPerSec float64) int64 {
	return int64(math.Ceil((float64(limit) - tokens) / refillPerSec * 1000))
}

func denied(policy ratelimit.Policy, reset time.Time, now time.Time) ratelimit.Result {
	retry := int(math.Ceil(reset.Sub(now).Seconds()))
	if retry < 1 {
		retry = 1
	}
	return ratelimit.Result{
		Allowed:           false,
		Limit:             policy.Limit,
		Remaining:         0,
		ResetAt:           reset,
		RetryAfterSeconds: retry,
	}
}

// keyedMutex serializes checks per store key so concurrent requests in one
// process cannot lose updates to the same entry.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
