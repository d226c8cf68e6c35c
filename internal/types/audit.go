package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the audited events.
type EventType string

// Audited event types. Every limiter denial, every inference fallback, every
// workflow transition and every sensitive-profile read produces exactly one
// entry.
const (
	EventRateLimitDenied    EventType = "rate_limit_denied"
	EventInferenceFallback  EventType = "inference_fallback"
	EventMatchProposed      EventType = "match_proposed"
	EventMatchReviewed      EventType = "match_reviewed"
	EventCandidateResponded EventType = "candidate_responded"
	EventMatchExpired       EventType = "match_expired"
	EventConsentRevoked     EventType = "consent_revoked"
	EventProfileAccessed    EventType = "profile_accessed"
	EventStageChanged       EventType = "connection_stage_changed"
)

// AuditEntry is one immutable row of the compliance ledger. There is no API
// to update or delete an entry before RetentionUntil.
type AuditEntry struct {
	ID             uuid.UUID      `json:"id"`
	ActorID        string         `json:"actor_id"`
	EventType      EventType      `json:"event_type"`
	Details        map[string]any `json:"details,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	RetentionUntil time.Time      `json:"retention_until"`
}
