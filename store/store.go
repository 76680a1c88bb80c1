// Package store defines the byte-store abstraction behind both cache
// tiers: a fast volatile tier (Ristretto, BigCache) and a durable tier
// that survives process restarts (local file, Redis).
//
// Implementations MUST be byte-for-byte transparent: Get must return
// exactly the same []byte that was previously passed to Set for a key.
// Durable stores have no native expiry obligations - all freshness
// logic lives above this interface, and implementations are free to
// ignore the TTL hint entirely.
//
// The keyspaces "profile:<ns>:", "photo:<ns>:" and "meta:<ns>:" are
// owned by profilecache. Foreign writes under those prefixes may be
// treated as corruption by strict envelope validation and deleted.
package store

import (
	"context"
	"time"
)

// Store is a minimal byte store. Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl is a hint; stores without per-entry expiry
	// ignore it. Returns ok=false when the store rejected the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
