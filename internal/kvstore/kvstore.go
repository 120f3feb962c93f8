// Package kvstore provides the minimal key-value abstraction that every
// other signal depends on. Signal logic takes a Store as a parameter, never a global.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by any driver method when the backing store
// cannot be reached. Callers (the policy pipeline's KV-gate) decide whether
// to fail open or fail closed; kvstore itself never decides.
var ErrUnavailable = errors.New("kvstore: unavailable")

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: not found")

// Store is the narrow get/set/delete/list interface every driver implements.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound if absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with an optional TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. It is not an error if key does not exist.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix. Used sparingly (admin,
	// tests); production signal logic never scans.
	List(ctx context.Context, prefix string) ([]string, error)
	// Ping checks store reachability; used by the /health route and the
	// pipeline's KV-availability gate.
	Ping(ctx context.Context) error
}

// Incrementer is the narrow distributed-rate-backend interface: a single
// increment-and-get plus a read-only current-usage method, so a failure
// falls back to the local KV counter. The local path uses the Store itself
// through this interface (Memory and Postgres both implement it; a Store
// that does not makes the local path return ErrUnavailable); a future
// remote backend (e.g. Redis INCR+EXPIRE) would implement just this
// interface.
type Incrementer interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CurrentUsage(ctx context.Context, key string) (int64, error)
}
