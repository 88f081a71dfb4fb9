// Package limiter defines interfaces and implementations for throttling
// repeated authorization failures at the crypto boundary.
package limiter

import (
	"context"
	"time"
)

// Limiter controls boundary auth attempts and temporary lockouts per caller.
type Limiter interface {
	// Allow reports whether requests are currently allowed and optional retry-after.
	Allow(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful authorization.
	Success(ctx context.Context, caller string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error)
}
