package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/config"
	"github.com/neurobridge/matchcore/internal/consent"
	"github.com/neurobridge/matchcore/internal/gateway"
	"github.com/neurobridge/matchcore/internal/matching"
	"github.com/neurobridge/matchcore/internal/ratelimit"
	"github.com/neurobridge/matchcore/internal/server/middleware"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

const testExportKey = "compliance-export-key"

// stubClient returns a canned inference response.
type stubClient struct {
	response string
}

func (c *stubClient) GenerateJSON(_ context.Context, _ string) (string, error) {
	return c.response, nil
}

func (c *stubClient) Close() error { return nil }

type serverFixture struct {
	server  *Server
	jwt     *JWTService
	matches *store.MemoryMatchStore
	audits  *store.MemoryAuditStore
	engine  *matching.Engine
}

func newServerFixture(t *testing.T, gwCfg gateway.Config) *serverFixture {
	t.Helper()

	matches := store.NewMemoryMatchStore()
	connections := store.NewMemoryConnectionStore()
	audits := store.NewMemoryAuditStore()
	auditLog := audit.New(audits, nil)

	if gwCfg.Timeout == 0 {
		gwCfg = gateway.DefaultConfig()
		gwCfg.Timeout = 200 * time.Millisecond
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(0, time.Hour))
	t.Cleanup(func() { _ = limiter.Close() })
	gw := gateway.New(
		&stubClient{response: `{"score": 80, "quality": "good"}`},
		limiter, cache.New(cache.NewMemoryStore()), auditLog, nil, gwCfg)

	engine := matching.NewEngine(matches, nil, auditLog, nil)
	workflow := consent.NewWorkflow(matches, connections, auditLog, nil)

	jwtService := NewJWTService(&config.JWTConfig{Secret: "test-secret", ExpirationHours: 1})

	hash, err := bcrypt.GenerateFromPassword([]byte(testExportKey), bcrypt.MinCost)
	require.NoError(t, err)

	srv := New(Deps{
		Port:     0,
		Engine:   engine,
		Workflow: workflow,
		Gateway:  gw,
		Matches:  matches,
		Audit:    auditLog,
		JWT:      jwtService,
		Export:   &config.ExportConfig{KeyHash: string(hash)},
	})
	return &serverFixture{server: srv, jwt: jwtService, matches: matches, audits: audits, engine: engine}
}

func (f *serverFixture) token(t *testing.T, actorID uuid.UUID, role string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(actorID, role)
	require.NoError(t, err)
	return token
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func apiJob() types.JobPosting {
	return types.JobPosting{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		Title:          "Backend Engineer",
		RequiredSkills: []string{"Go", "PostgreSQL"},
		Accommodations: []string{"remote", "flex", "async"},
		WorkMode:       types.WorkModeRemote,
	}
}

func apiCandidate() types.CandidateProfile {
	return types.CandidateProfile{
		ID:     uuid.New(),
		Skills: []string{"Go", "PostgreSQL"},
	}
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzePostingEndpoint(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	rec := f.do(t, http.MethodPost, "/analyze/posting", "", apiJob())
	require.Equal(t, http.StatusOK, rec.Code)

	var result gateway.InclusivityAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 80, result.Score)
	assert.False(t, result.Fallback)
}

func TestAnalyzePostingEndpoint_Invalid(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	job := apiJob()
	job.Title = ""
	rec := f.do(t, http.MethodPost, "/analyze/posting", "", job)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzePostingEndpoint_RateLimited(t *testing.T) {
	cfg := gateway.DefaultConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.Policies[gateway.OpAnalyzePosting] = gateway.Policy{Window: time.Minute, MaxRequests: 1, TTL: time.Hour}
	f := newServerFixture(t, cfg)

	job := apiJob()
	rec := f.do(t, http.MethodPost, "/analyze/posting", "", job)
	require.Equal(t, http.StatusOK, rec.Code)

	job.Title = "Backend Engineer II" // miss the cache
	rec = f.do(t, http.MethodPost, "/analyze/posting", "", job)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestProposeMatch_RequiresReviewer(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	body := map[string]any{"candidate": apiCandidate(), "job": apiJob()}

	rec := f.do(t, http.MethodPost, "/matches", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/matches", f.token(t, uuid.New(), middleware.RoleCandidate), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/matches", f.token(t, uuid.New(), middleware.RoleReviewer), body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestConsentFlowOverHTTP(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	candidate, job := apiCandidate(), apiJob()
	reviewerToken := f.token(t, uuid.New(), middleware.RoleReviewer)
	candidateToken := f.token(t, candidate.ID, middleware.RoleCandidate)
	companyToken := f.token(t, job.CompanyID, middleware.RoleCompany)

	// Propose
	rec := f.do(t, http.MethodPost, "/matches", reviewerToken, map[string]any{"candidate": candidate, "job": job})
	require.Equal(t, http.StatusCreated, rec.Code)
	var record types.MatchRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, types.MatchPending, record.Status)

	matchPath := fmt.Sprintf("/matches/%s", record.ID)

	// The company sees nothing but status while the match is pending.
	rec = f.do(t, http.MethodGet, matchPath, companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view types.CompanyMatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Nil(t, view.Score)
	assert.Nil(t, view.CandidateID)

	// Candidate cannot respond before review.
	rec = f.do(t, http.MethodPost, matchPath+"/respond", candidateToken, map[string]any{"decision": "accept"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Review: approve.
	rec = f.do(t, http.MethodPost, matchPath+"/review", reviewerToken, map[string]any{"decision": "approve", "notes": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Candidate accepts.
	rec = f.do(t, http.MethodPost, matchPath+"/respond", candidateToken, map[string]any{"decision": "accept"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp respondResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Connection)
	assert.Equal(t, types.StageNewMatches, resp.Connection.PipelineStage)

	// Now the company sees the match, and the read is audited.
	rec = f.do(t, http.MethodGet, matchPath, companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Score)
	assert.Equal(t, record.Score, *view.Score)

	entries, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventProfileAccessed})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Company advances the pipeline.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/connections/%s/stage", resp.Connection.ID), companyToken, map[string]any{"stage": "under_review"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Candidate revokes; the company goes dark again.
	rec = f.do(t, http.MethodPost, matchPath+"/revoke", candidateToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, matchPath, companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = types.CompanyMatchView{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Nil(t, view.Score)

	// A revoked connection cannot advance.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/connections/%s/stage", resp.Connection.ID), companyToken, map[string]any{"stage": "interviewing"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPrivateRejectionReasonStaysPrivate(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	candidate, job := apiCandidate(), apiJob()
	reviewerToken := f.token(t, uuid.New(), middleware.RoleReviewer)
	candidateToken := f.token(t, candidate.ID, middleware.RoleCandidate)
	companyToken := f.token(t, job.CompanyID, middleware.RoleCompany)

	rec := f.do(t, http.MethodPost, "/matches", reviewerToken, map[string]any{"candidate": candidate, "job": job})
	require.Equal(t, http.StatusCreated, rec.Code)
	var record types.MatchRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	matchPath := fmt.Sprintf("/matches/%s", record.ID)

	rec = f.do(t, http.MethodPost, matchPath+"/review", reviewerToken, map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, matchPath+"/respond", candidateToken, map[string]any{
		"decision":       "reject",
		"reason":         "prefer a different team structure",
		"reason_private": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, matchPath, companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "different team structure")
}

func TestGetMatch_OtherCandidateCannotSee(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	candidate, job := apiCandidate(), apiJob()
	reviewerToken := f.token(t, uuid.New(), middleware.RoleReviewer)

	rec := f.do(t, http.MethodPost, "/matches", reviewerToken, map[string]any{"candidate": candidate, "job": job})
	require.Equal(t, http.StatusCreated, rec.Code)
	var record types.MatchRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))

	otherToken := f.token(t, uuid.New(), middleware.RoleCandidate)
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/matches/%s", record.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepEndpoint(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	candidate, job := apiCandidate(), apiJob()
	reviewerToken := f.token(t, uuid.New(), middleware.RoleReviewer)

	rec := f.do(t, http.MethodPost, "/matches", reviewerToken, map[string]any{"candidate": candidate, "job": job})
	require.Equal(t, http.StatusCreated, rec.Code)
	var record types.MatchRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))

	// Force the record past its deadline.
	stored, err := f.matches.Get(context.Background(), record.ID)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, f.matches.Update(context.Background(), stored, stored.Version))

	rec = f.do(t, http.MethodPost, "/matches/sweep", reviewerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired": 1}`, rec.Body.String())
}

func TestAuditExport(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})

	rec := f.do(t, http.MethodGet, "/audit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("X-Export-Key", "wrong")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("X-Export-Key", testExportKey)
	w = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetMatch_InvalidID(t *testing.T) {
	f := newServerFixture(t, gateway.Config{})
	rec := f.do(t, http.MethodGet, "/matches/not-a-uuid", f.token(t, uuid.New(), middleware.RoleReviewer), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
