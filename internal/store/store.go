// Package store provides persistence for match, connection and audit records.
// Two implementations exist: an in-memory store for tests and single-process
// runs, and a PostgreSQL store for deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/neurobridge/matchcore/internal/types"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict indicates an optimistic-concurrency update lost a race:
// the record changed since it was read.
var ErrVersionConflict = errors.New("record version conflict")

// ErrDuplicateActivePair indicates a non-terminal match record already exists
// for the (candidate, job) pair.
var ErrDuplicateActivePair = errors.New("active match already exists for pair")

// MatchStore persists MatchRecords. Update applies an optimistic version
// check: it succeeds only when the stored version equals expectedVersion,
// and bumps the version on success.
type MatchStore interface {
	Create(ctx context.Context, record *types.MatchRecord) error
	Get(ctx context.Context, id uuid.UUID) (*types.MatchRecord, error)
	// FindActiveByPair returns the non-terminal record for the pair, or
	// ErrNotFound when none exists.
	FindActiveByPair(ctx context.Context, candidateID, jobID uuid.UUID) (*types.MatchRecord, error)
	Update(ctx context.Context, record *types.MatchRecord, expectedVersion int64) error
	// ListExpired returns non-terminal records whose ExpiresAt is before now.
	ListExpired(ctx context.Context, now time.Time) ([]*types.MatchRecord, error)
}

// ConnectionStore persists ConnectionRecords.
type ConnectionStore interface {
	Create(ctx context.Context, record *types.ConnectionRecord) error
	Get(ctx context.Context, id uuid.UUID) (*types.ConnectionRecord, error)
	Update(ctx context.Context, record *types.ConnectionRecord) error
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	ActorID   string
	EventType types.EventType
	From      time.Time
	To        time.Time
}

// AuditStore persists AuditEntries. Append and Query are the only
// operations; entries are never updated or deleted.
type AuditStore interface {
	Append(ctx context.Context, entry *types.AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*types.AuditEntry, error)
}
