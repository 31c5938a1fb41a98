// Package cache provides key/value stores with per-key expiry for
// read-through caching.
package cache

import (
	"context"
	"time"
)

// Store is a byte cache. A non-positive ttl stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
