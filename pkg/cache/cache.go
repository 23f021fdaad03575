// Package cache stores computed layouts so repeated requests for the same
// workflow and settings skip the pipeline.
//
// Three backends implement [Cache]:
//
//   - [NullCache] never stores anything (caching disabled)
//   - [FileCache] keeps entries as JSON files, for the CLI
//   - [RedisCache] shares entries between server replicas
//
// Keys come from a [Keyer]. Values are opaque bytes; the pipeline stores
// serialized results.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with expiry. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was present.
	// A missing or expired key is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Entry lifetimes. Layouts are pure functions of their input, so they only
// expire to bound storage.
const (
	TTLLayout     = 7 * 24 * time.Hour
	TTLValidation = 24 * time.Hour
)
