package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurobridge/matchcore/internal/types"
)

// MemoryMatchStore is a mutex-guarded in-memory MatchStore.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*types.MatchRecord
}

// NewMemoryMatchStore creates an empty in-memory match store.
func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{records: make(map[uuid.UUID]*types.MatchRecord)}
}

func cloneMatch(m *types.MatchRecord) *types.MatchRecord {
	c := *m
	if m.ReviewedBy != nil {
		v := *m.ReviewedBy
		c.ReviewedBy = &v
	}
	if m.ReviewedAt != nil {
		v := *m.ReviewedAt
		c.ReviewedAt = &v
	}
	if m.ConnectionID != nil {
		v := *m.ConnectionID
		c.ConnectionID = &v
	}
	if m.RevokedAt != nil {
		v := *m.RevokedAt
		c.RevokedAt = &v
	}
	return &c
}

// Create stores a new record. Like the database's partial unique index, it
// rejects a second non-terminal record for the same (candidate, job) pair.
func (s *MemoryMatchStore) Create(_ context.Context, record *types.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !record.IsTerminal() {
		for _, existing := range s.records {
			if existing.CandidateID == record.CandidateID && existing.JobID == record.JobID && !existing.IsTerminal() {
				return ErrDuplicateActivePair
			}
		}
	}
	s.records[record.ID] = cloneMatch(record)
	return nil
}

// Get returns a copy of the record or ErrNotFound.
func (s *MemoryMatchStore) Get(_ context.Context, id uuid.UUID) (*types.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMatch(record), nil
}

// FindActiveByPair returns the non-terminal record for (candidate, job).
func (s *MemoryMatchStore) FindActiveByPair(_ context.Context, candidateID, jobID uuid.UUID) (*types.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.CandidateID == candidateID && record.JobID == jobID && !record.IsTerminal() {
			return cloneMatch(record), nil
		}
	}
	return nil, ErrNotFound
}

// Update applies the record only when the stored version still equals
// expectedVersion, then bumps the version.
func (s *MemoryMatchStore) Update(_ context.Context, record *types.MatchRecord, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[record.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	record.Version = expectedVersion + 1
	s.records[record.ID] = cloneMatch(record)
	return nil
}

// ListExpired returns non-terminal records past their expiry.
func (s *MemoryMatchStore) ListExpired(_ context.Context, now time.Time) ([]*types.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*types.MatchRecord
	for _, record := range s.records {
		if !record.IsTerminal() && record.ExpiresAt.Before(now) {
			expired = append(expired, cloneMatch(record))
		}
	}
	return expired, nil
}

// MemoryConnectionStore is a mutex-guarded in-memory ConnectionStore.
type MemoryConnectionStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*types.ConnectionRecord
}

// NewMemoryConnectionStore creates an empty in-memory connection store.
func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{records: make(map[uuid.UUID]*types.ConnectionRecord)}
}

func cloneConnection(c *types.ConnectionRecord) *types.ConnectionRecord {
	out := *c
	out.SharedData = append([]string(nil), c.SharedData...)
	if c.RevokedAt != nil {
		v := *c.RevokedAt
		out.RevokedAt = &v
	}
	return &out
}

// Create stores a new connection.
func (s *MemoryConnectionStore) Create(_ context.Context, record *types.ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = cloneConnection(record)
	return nil
}

// Get returns a copy of the connection or ErrNotFound.
func (s *MemoryConnectionStore) Get(_ context.Context, id uuid.UUID) (*types.ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConnection(record), nil
}

// Update overwrites an existing connection.
func (s *MemoryConnectionStore) Update(_ context.Context, record *types.ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return ErrNotFound
	}
	s.records[record.ID] = cloneConnection(record)
	return nil
}

// MemoryAuditStore is an append-only in-memory AuditStore.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*types.AuditEntry
}

// NewMemoryAuditStore creates an empty in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func cloneEntry(e *types.AuditEntry) *types.AuditEntry {
	out := *e
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// Append stores a copy of the entry.
func (s *MemoryAuditStore) Append(_ context.Context, entry *types.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// Query returns copies of entries matching the filter, oldest first.
func (s *MemoryAuditStore) Query(_ context.Context, filter AuditFilter) ([]*types.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.AuditEntry
	for _, entry := range s.entries {
		if filter.ActorID != "" && entry.ActorID != filter.ActorID {
			continue
		}
		if filter.EventType != "" && entry.EventType != filter.EventType {
			continue
		}
		if !filter.From.IsZero() && entry.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.Timestamp.After(filter.To) {
			continue
		}
		out = append(out, cloneEntry(entry))
	}
	return out, nil
}
