// Package audit maintains the append-only compliance ledger. Every limiter
// denial, inference fallback, workflow transition and sensitive-profile read
// lands here exactly once. Entries are immutable: the only operations are
// Append and Query, and nothing deletes an entry before its retention
// horizon.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// RetentionPeriod is the fixed horizon before which no entry may be removed.
const RetentionPeriod = 7 * 365 * 24 * time.Hour

// Log appends to and queries the ledger.
type Log struct {
	store store.AuditStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates an audit log over the given store.
func New(auditStore store.AuditStore, log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{store: auditStore, log: log, now: time.Now}
}

// Append writes one entry and returns it. Appends are independent,
// ordering-insensitive writes; no cross-entry coordination happens here.
func (l *Log) Append(ctx context.Context, eventType types.EventType, actorID string, details map[string]any) (*types.AuditEntry, error) {
	now := l.now()
	entry := &types.AuditEntry{
		ID:             uuid.New(),
		ActorID:        actorID,
		EventType:      eventType,
		Details:        details,
		Timestamp:      now,
		RetentionUntil: now.Add(RetentionPeriod),
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	l.log.Debug("audit entry appended",
		zap.String("event_type", string(eventType)),
		zap.String("actor_id", actorID))
	return entry, nil
}

// Query returns entries matching the filter, oldest first. Used for
// compliance export; there is no update or delete counterpart.
func (l *Log) Query(ctx context.Context, filter store.AuditFilter) ([]*types.AuditEntry, error) {
	entries, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	return entries, nil
}
