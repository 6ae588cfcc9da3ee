package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// IStore defines the shared key-value store contract.
//
// Only atomic single-key operations are offered: set, increment,
// set-with-expiry. There are no multi-key transactions, so a logical event
// that touches several keys is only eventually consistent across them. A
// crash mid-update can leave keys diverged; acceptable for aggregate
// reporting, and every writer states it where it applies.
// -----------------------------------------------------------------------------

type IStore interface {

	// Get returns the value at key, or a helpers.NotFoundError when absent
	// (including expired keys).
	Get(ctx context.Context, key string) (string, error)

	// -----------------------------------------------------------------------------

	// Set writes a value with no expiry.
	Set(ctx context.Context, key, value string) error

	// -----------------------------------------------------------------------------

	// SetWithTTL writes a value that expires after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	// SetNX writes only if key is absent; reports whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// -----------------------------------------------------------------------------

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// -----------------------------------------------------------------------------

	// IncrBy atomically adds n to the integer at key (0 when absent).
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// -----------------------------------------------------------------------------

	// IncrByFloat atomically adds f to the float at key (0 when absent).
	IncrByFloat(ctx context.Context, key string, f float64) (float64, error)

	// -----------------------------------------------------------------------------

	// Keys returns the non-expired keys matching a glob pattern, e.g. "tick:latest:*".
	Keys(ctx context.Context, pattern string) ([]string, error)

	// -----------------------------------------------------------------------------

	// Ping checks connectivity for the health endpoint.
	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection or buffers.
	Close() error
}
