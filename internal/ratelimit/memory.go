package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// MemoryStore is an in-process WindowStore. Identifiers are spread over
// sharded mutexes so unrelated callers never serialize on one lock. A
// background sweep drops identifiers whose windows have emptied.
type MemoryStore struct {
	shards        [shardCount]*shard
	sweepInterval time.Duration
	sweepWindow   time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewMemoryStore creates a memory store. sweepWindow should be at least as
// long as the longest window any caller uses; entries older than it are
// dropped by the periodic sweep.
func NewMemoryStore(sweepInterval, sweepWindow time.Duration) *MemoryStore {
	s := &MemoryStore{
		sweepInterval: sweepInterval,
		sweepWindow:   sweepWindow,
		stop:          make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	if sweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

func (s *MemoryStore) shardFor(identifier string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return s.shards[h.Sum32()%shardCount]
}

// Admit implements WindowStore.
func (s *MemoryStore) Admit(_ context.Context, identifier string, now time.Time, window time.Duration, maxRequests int) (Result, error) {
	sh := s.shardFor(identifier)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cutoff := now.Add(-window)
	timestamps := sh.windows[identifier]

	// Keep only timestamps strictly inside (now-window, now].
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= maxRequests {
		// maxRequests <= 0 denies even an empty window.
		resetAt := now.Add(window)
		if len(kept) > 0 {
			sh.windows[identifier] = kept
			resetAt = kept[0].Add(window)
		} else {
			delete(sh.windows, identifier)
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	kept = append(kept, now)
	sh.windows[identifier] = kept
	return Result{
		Allowed:   true,
		Remaining: maxRequests - len(kept),
		ResetAt:   kept[0].Add(window),
	}, nil
}

// Reset implements WindowStore.
func (s *MemoryStore) Reset(_ context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.windows = make(map[string][]time.Time)
		sh.mu.Unlock()
	}
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

// sweep removes identifiers whose recorded timestamps are all older than the
// sweep window, bounding memory for one-off callers.
func (s *MemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-s.sweepWindow)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for identifier, timestamps := range sh.windows {
			live := false
			for _, ts := range timestamps {
				if ts.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(sh.windows, identifier)
			}
		}
		sh.mu.Unlock()
	}
}
