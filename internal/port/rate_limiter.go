package port

import "context"

// RateLimiter applies a per-key request ceiling over a sliding time window.
// Used by the admission gateway in front of the inventory service.
type RateLimiter interface {
	// Allow records one request for key and reports whether it fits within
	// the window. Errors mean the limiter itself failed, not that the
	// request was rejected.
	Allow(ctx context.Context, key string) (bool, error)
}
