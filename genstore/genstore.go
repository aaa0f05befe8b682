// Package genstore keeps monotonically increasing generation counters.
//
// tagcache uses two families of counters: one per query key (fences writes of
// in-flight results after a reset or eviction) and a few per tag (a tag
// invalidation is a bump; an entry is fresh while every counter it observed is
// unchanged).
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore (default) for in-process gens, or RedisGenStore to share
// invalidations between processes.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// BumpMany increments every key and returns the new generations.
	BumpMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
