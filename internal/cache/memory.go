package cache

import (
	"context"
	"hash/fnv"
	"sync"
)

const shardCount = 64

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// MemoryStore is an in-process Store with sharded locks so unrelated keys
// never contend. Reads never block on writes to other shards, and entries are
// copied by value so no reader sees a torn write.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Set implements Store. Last writer wins.
func (s *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = entry
	sh.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.entries = make(map[string]Entry)
		sh.mu.Unlock()
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
