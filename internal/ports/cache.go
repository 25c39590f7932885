package ports

import (
	"context"
	"time"
)

// ThrottleStore counts recent hits per key for the edge rate limiter.
// Allow reports whether the caller is within limit for the window and records
// the hit. Implementations must be safe for concurrent use across instances.
type ThrottleStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
