// Package cache provides a TTL-keyed cache for inference results. Keys are
// deterministic hashes of normalized inputs so identical requests collapse to
// one entry regardless of field order or casing.
package cache

import (
	"context"
	"time"
)

// Entry is one cached value with its absolute expiry. Entries are stored by
// value: a reader never observes a half-written entry, and a writer finishing
// after a reader started simply wins the next read.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Store is the injectable key-value backend. The memory store serves a single
// process; the Redis store is shared across instances.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Reset(ctx context.Context) error
	Close() error
}

// Cache enforces TTL semantics over a Store.
type Cache struct {
	store Store
	now   func() time.Time
}

// New creates a cache over the given store.
func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Get returns the cached value, or ok=false on a miss. A read after the
// entry's expiry is a miss and discards the entry.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	if !c.now().Before(entry.ExpiresAt) {
		_ = c.store.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set stores the value for ttl. Last writer wins.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.Set(ctx, key, Entry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Reset discards every entry.
func (c *Cache) Reset(ctx context.Context) error {
	return c.store.Reset(ctx)
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}
