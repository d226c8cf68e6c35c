package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurobridge/matchcore/internal/types"
)

// Postgres wraps a pgx connection pool and exposes the three stores.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool to the database.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Matches returns the MatchStore backed by this pool.
func (p *Postgres) Matches() MatchStore { return &pgMatchStore{pool: p.pool} }

// Connections returns the ConnectionStore backed by this pool.
func (p *Postgres) Connections() ConnectionStore { return &pgConnectionStore{pool: p.pool} }

// Audit returns the AuditStore backed by this pool.
func (p *Postgres) Audit() AuditStore { return &pgAuditStore{pool: p.pool} }

type pgMatchStore struct {
	pool *pgxpool.Pool
}

const matchColumns = `id, job_id, candidate_id, company_id, score, breakdown,
	explanation, explanation_fallback, status, reviewed_by, reviewed_at,
	review_notes, rejection_reason, rejection_reason_private, expires_at,
	company_can_view, connection_id, revoked_at, created_at, updated_at, version`

func (s *pgMatchStore) Create(ctx context.Context, record *types.MatchRecord) error {
	breakdown, err := json.Marshal(record.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_records (`+matchColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		record.ID, record.JobID, record.CandidateID, record.CompanyID, record.Score, breakdown,
		record.Explanation, record.ExplanationFallback, record.Status, record.ReviewedBy, record.ReviewedAt,
		record.ReviewNotes, record.RejectionReason, record.RejectionReasonPrivate, record.ExpiresAt,
		record.CompanyCanView, record.ConnectionID, record.RevokedAt, record.CreatedAt, record.UpdatedAt, record.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActivePair
		}
		return fmt.Errorf("failed to create match record: %w", err)
	}
	return nil
}

func scanMatch(row pgx.Row) (*types.MatchRecord, error) {
	var record types.MatchRecord
	var breakdown []byte
	err := row.Scan(
		&record.ID, &record.JobID, &record.CandidateID, &record.CompanyID, &record.Score, &breakdown,
		&record.Explanation, &record.ExplanationFallback, &record.Status, &record.ReviewedBy, &record.ReviewedAt,
		&record.ReviewNotes, &record.RejectionReason, &record.RejectionReasonPrivate, &record.ExpiresAt,
		&record.CompanyCanView, &record.ConnectionID, &record.RevokedAt, &record.CreatedAt, &record.UpdatedAt, &record.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan match record: %w", err)
	}
	if err := json.Unmarshal(breakdown, &record.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
	}
	return &record, nil
}

func (s *pgMatchStore) Get(ctx context.Context, id uuid.UUID) (*types.MatchRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM match_records WHERE id = $1`, id)
	return scanMatch(row)
}

func (s *pgMatchStore) FindActiveByPair(ctx context.Context, candidateID, jobID uuid.UUID) (*types.MatchRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM match_records
		 WHERE candidate_id = $1 AND job_id = $2 AND status IN ('PENDING', 'APPROVED')
		 LIMIT 1`,
		candidateID, jobID)
	return scanMatch(row)
}

func (s *pgMatchStore) Update(ctx context.Context, record *types.MatchRecord, expectedVersion int64) error {
	breakdown, err := json.Marshal(record.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_records SET
			score = $2, breakdown = $3, explanation = $4, explanation_fallback = $5,
			status = $6, reviewed_by = $7, reviewed_at = $8, review_notes = $9,
			rejection_reason = $10, rejection_reason_private = $11, expires_at = $12,
			company_can_view = $13, connection_id = $14, revoked_at = $15,
			updated_at = $16, version = version + 1
		 WHERE id = $1 AND version = $17`,
		record.ID, record.Score, breakdown, record.Explanation, record.ExplanationFallback,
		record.Status, record.ReviewedBy, record.ReviewedAt, record.ReviewNotes,
		record.RejectionReason, record.RejectionReasonPrivate, record.ExpiresAt,
		record.CompanyCanView, record.ConnectionID, record.RevokedAt,
		record.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update match record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost version race.
		if _, getErr := s.Get(ctx, record.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	record.Version = expectedVersion + 1
	return nil
}

func (s *pgMatchStore) ListExpired(ctx context.Context, now time.Time) ([]*types.MatchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM match_records
		 WHERE status IN ('PENDING', 'APPROVED') AND expires_at < $1`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired matches: %w", err)
	}
	defer rows.Close()

	var out []*types.MatchRecord
	for rows.Next() {
		record, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

type pgConnectionStore struct {
	pool *pgxpool.Pool
}

func (s *pgConnectionStore) Create(ctx context.Context, record *types.ConnectionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connection_records
			(id, type, match_id, candidate_id, company_id, shared_data, consent_given_at,
			 pipeline_stage, status, revoked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.Type, record.MatchID, record.CandidateID, record.CompanyID,
		record.SharedData, record.ConsentGivenAt, record.PipelineStage, record.Status,
		record.RevokedAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create connection record: %w", err)
	}
	return nil
}

func (s *pgConnectionStore) Get(ctx context.Context, id uuid.UUID) (*types.ConnectionRecord, error) {
	var record types.ConnectionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, type, match_id, candidate_id, company_id, shared_data, consent_given_at,
			pipeline_stage, status, revoked_at, created_at, updated_at
		 FROM connection_records WHERE id = $1`, id,
	).Scan(
		&record.ID, &record.Type, &record.MatchID, &record.CandidateID, &record.CompanyID,
		&record.SharedData, &record.ConsentGivenAt, &record.PipelineStage, &record.Status,
		&record.RevokedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection record: %w", err)
	}
	return &record, nil
}

func (s *pgConnectionStore) Update(ctx context.Context, record *types.ConnectionRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE connection_records SET
			shared_data = $2, pipeline_stage = $3, status = $4, revoked_at = $5, updated_at = $6
		 WHERE id = $1`,
		record.ID, record.SharedData, record.PipelineStage, record.Status,
		record.RevokedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgAuditStore struct {
	pool *pgxpool.Pool
}

func (s *pgAuditStore) Append(ctx context.Context, entry *types.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, actor_id, event_type, details, ts, retention_until)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ActorID, entry.EventType, details, entry.Timestamp, entry.RetentionUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *pgAuditStore) Query(ctx context.Context, filter AuditFilter) ([]*types.AuditEntry, error) {
	query := `SELECT id, actor_id, event_type, details, ts, retention_until FROM audit_entries WHERE 1=1`
	args := []any{}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY ts ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*types.AuditEntry
	for rows.Next() {
		var entry types.AuditEntry
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.EventType, &details, &entry.Timestamp, &entry.RetentionUntil); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}
