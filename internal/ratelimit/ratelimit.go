// Package ratelimit provides sliding-window admission control per caller
// identifier. The window is the half-open interval (now-window, now], so a
// burst landing exactly on the boundary is never counted twice across slides.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of an admission check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// WindowStore records request timestamps per identifier. Implementations must
// be safe for concurrent callers on the same identifier: an admission is
// atomic, never lost and never double-counted.
type WindowStore interface {
	// Admit purges timestamps at or before now-window, then admits and
	// records now if fewer than maxRequests remain.
	Admit(ctx context.Context, identifier string, now time.Time, window time.Duration, maxRequests int) (Result, error)
	// Reset discards all recorded windows.
	Reset(ctx context.Context) error
	Close() error
}

// Limiter is a constructed, disposable rate limiter suitable for dependency
// injection. The backing store decides whether limiting is per-process
// (memory) or shared across instances (Redis).
type Limiter struct {
	store WindowStore
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store WindowStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Admit checks and records one request for the identifier.
func (l *Limiter) Admit(ctx context.Context, identifier string, window time.Duration, maxRequests int) (Result, error) {
	return l.store.Admit(ctx, identifier, l.now(), window, maxRequests)
}

// Reset discards all recorded state.
func (l *Limiter) Reset(ctx context.Context) error {
	return l.store.Reset(ctx)
}

// Close releases the backing store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
