package helpers

// Echo context keys set by middleware and read back by handlers. Kept in one
// place so producers and consumers cannot drift.
const (
	RequestContextKey = "request_context"
	IdentityKey       = "identity"
)
