package ratelimit

import "time"

// Strategy selects the counting algorithm a policy uses.
type Strategy string

const (
	// StrategyFixedWindow resets counters hard at window boundaries. Cheap,
	// but allows up to a 2x burst straddling a boundary; that edge burst is
	// accepted behavior for this strategy, not a bug.
	StrategyFixedWindow Strategy = "fixed_window"
	// StrategySlidingWindow decays the previous window's count proportionally
	// as the window slides. An approximation of a true sliding log, good
	// enough for abuse mitigation (not billing-grade accounting).
	StrategySlidingWindow Strategy = "sliding_window"
	// StrategyTokenBucket refills continuously at limit/window tokens per
	// second, giving smooth throughput with burst tolerance.
	StrategyTokenBucket Strategy = "token_bucket"
)

// KeyBy selects the request attribute used to derive the limiter key.
type KeyBy string

const (
	KeyByIP     KeyBy = "ip"
	KeyByUser   KeyBy = "user"
	KeyByAPIKey KeyBy = "api_key"
	KeyByIPUser KeyBy = "ip_user"
)

// Policy is an immutable rate limit configuration.
type Policy struct {
	Name          string
	Limit         int
	WindowSeconds int
	Strategy      Strategy
	KeyBy         KeyBy
}

func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Presets are the named policies routes attach to. They are plain Policy
// values; nothing special-cases a preset beyond its fields.
var Presets = map[string]Policy{
	"standard": {Name: "standard", Limit: 100, WindowSeconds: 60, Strategy: StrategySlidingWindow, KeyBy: KeyByIPUser},
	"auth":     {Name: "auth", Limit: 10, WindowSeconds: 60, Strategy: StrategyFixedWindow, KeyBy: KeyByIP},
	"public":   {Name: "public", Limit: 300, WindowSeconds: 60, Strategy: StrategySlidingWindow, KeyBy: KeyByIP},
	"write":    {Name: "write", Limit: 30, WindowSeconds: 60, Strategy: StrategySlidingWindow, KeyBy: KeyByUser},
	"search":   {Name: "search", Limit: 60, WindowSeconds: 60, Strategy: StrategyTokenBucket, KeyBy: KeyByIPUser},
	"upload":   {Name: "upload", Limit: 20, WindowSeconds: 300, Strategy: StrategyFixedWindow, KeyBy: KeyByUser},
	"admin":    {Name: "admin", Limit: 200, WindowSeconds: 60, Strategy: StrategySlidingWindow, KeyBy: KeyByUser},
	"webhook":  {Name: "webhook", Limit: 120, WindowSeconds: 60, Strategy: StrategyTokenBucket, KeyBy: KeyByAPIKey},
}

// Result is the outcome of one quota check. Checking consumes quota; a deny
// is a false Allowed, never an error.
type Result struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
}

// Entry is the stored per-key limiter state. Count semantics depend on the
// strategy; Tokens and LastRefillAt are only meaningful for token buckets.
type Entry struct {
	Count        int     `json:"count"`
	ResetAtMs    int64   `json:"reset_at_ms"`
	Tokens       float64 `json:"tokens,omitempty"`
	LastRefillMs int64   `json:"last_refill_ms,omitempty"`
}
