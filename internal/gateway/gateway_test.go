package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/ratelimit"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// fakeClient scripts the inference backend.
type fakeClient struct {
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int64
}

func (f *fakeClient) GenerateJSON(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeClient) Close() error { return nil }

type fixture struct {
	gateway *Gateway
	client  *fakeClient
	audits  *store.MemoryAuditStore
}

func newFixture(t *testing.T, client *fakeClient, cfg Config) *fixture {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg = DefaultConfig()
		cfg.Timeout = 200 * time.Millisecond
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(0, time.Hour))
	t.Cleanup(func() { _ = limiter.Close() })
	audits := store.NewMemoryAuditStore()
	g := New(client, limiter, cache.New(cache.NewMemoryStore()), audit.New(audits, nil), nil, cfg)
	return &fixture{gateway: g, client: client, audits: audits}
}

func testJob() *types.JobPosting {
	return &types.JobPosting{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		Title:          "Data Engineer",
		Description:    "Build pipelines",
		RequiredSkills: []string{"Python", "SQL", "ML"},
		Accommodations: []string{"remote", "flex", "async", "docs", "quiet", "headphones"},
		Location:       "Berlin",
		WorkMode:       types.WorkModeRemote,
	}
}

func testCandidate() *types.CandidateProfile {
	return &types.CandidateProfile{
		ID:     uuid.New(),
		Skills: []string{"Python", "SQL"},
	}
}

func TestAnalyzePosting_ModelResult(t *testing.T) {
	f := newFixture(t, &fakeClient{
		response: `{"score": 88, "quality": "good", "issues": [], "suggestions": ["add interview format details"]}`,
	}, Config{})

	result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", testJob())
	require.NoError(t, err)
	assert.Equal(t, 88, result.Score)
	assert.Equal(t, QualityGood, result.Quality)
	assert.False(t, result.Fallback)
}

func TestAnalyzePosting_FallbackOnMalformedOutput(t *testing.T) {
	f := newFixture(t, &fakeClient{response: `not json at all`}, Config{})

	result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", testJob())
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	// 6 accommodations: min(50 + 10*6, 100) = 100, quality good.
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, QualityGood, result.Quality)

	fallbacks, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventInferenceFallback})
	require.NoError(t, err)
	assert.Len(t, fallbacks, 1)
}

func TestAnalyzePosting_FallbackOnOutOfBoundsScore(t *testing.T) {
	f := newFixture(t, &fakeClient{response: `{"score": 150, "quality": "good"}`}, Config{})

	result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", testJob())
	require.NoError(t, err)
	assert.True(t, result.Fallback)
}

func TestAnalyzePosting_FallbackOnTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	f := newFixture(t, &fakeClient{
		response: `{"score": 80, "quality": "good"}`,
		delay:    500 * time.Millisecond,
	}, cfg)

	start := time.Now()
	result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", testJob())
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestAnalyzePosting_ValidationRejectedBeforeAnything(t *testing.T) {
	f := newFixture(t, &fakeClient{response: `{}`}, Config{})

	job := testJob()
	job.Title = ""
	_, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", job)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(0), f.client.calls.Load())
}

func TestEvaluateCandidate_FallbackFormula(t *testing.T) {
	f := newFixture(t, &fakeClient{err: context.DeadlineExceeded}, Config{})

	result, err := f.gateway.EvaluateCandidate(context.Background(), "ip-1", testCandidate(), testJob())
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	// 2 of 3 required skills: round(100*2/3) = 67.
	assert.Equal(t, 67, result.FitScore)
	assert.Equal(t, RecommendationModerate, result.Recommendation)
	assert.ElementsMatch(t, []string{"python", "sql"}, result.Strengths)
	assert.Equal(t, []string{"ml"}, result.Gaps)
}

func TestEvaluateCandidate_FallbackWithNoRequiredSkills(t *testing.T) {
	f := newFixture(t, &fakeClient{err: context.DeadlineExceeded}, Config{})

	job := testJob()
	job.RequiredSkills = nil
	result, err := f.gateway.EvaluateCandidate(context.Background(), "ip-1", testCandidate(), job)
	require.NoError(t, err)
	assert.Equal(t, 50, result.FitScore)
	assert.Equal(t, RecommendationModerate, result.Recommendation)
}

func TestExplainMatch_FallbackCarriesDisclaimer(t *testing.T) {
	f := newFixture(t, &fakeClient{err: context.DeadlineExceeded}, Config{})

	breakdown := types.ScoreBreakdown{Skills: 67, Accommodations: 100, Preferences: 50, Location: 100}
	result, err := f.gateway.ExplainMatch(context.Background(), "ip-1", testCandidate(), testJob(), breakdown.Overall(), breakdown)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Contains(t, result.Summary, "67/100")
	assert.Equal(t, TransparencyDisclaimer, result.Disclaimer)
	assert.Len(t, result.Factors, 4)
}

func TestExplainMatch_ModelResultCarriesDisclaimer(t *testing.T) {
	f := newFixture(t, &fakeClient{
		response: `{"summary": "Close skills match with full accommodation coverage.", "factors": ["skills"]}`,
	}, Config{})

	result, err := f.gateway.ExplainMatch(context.Background(), "ip-1", testCandidate(), testJob(), 80, types.ScoreBreakdown{Skills: 80})
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, TransparencyDisclaimer, result.Disclaimer)
}

func TestGateway_CachedResultSkipsBackend(t *testing.T) {
	f := newFixture(t, &fakeClient{
		response: `{"score": 90, "quality": "good"}`,
	}, Config{})

	job := testJob()
	_, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", job)
	require.NoError(t, err)

	// Same posting with reordered, differently-cased fields hits the cache.
	again := testJob()
	again.ID = uuid.New()
	again.RequiredSkills = []string{"sql", "ML", "python"}
	again.Accommodations = []string{"HEADPHONES", "quiet", "docs", "async", "flex", "remote"}
	result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-2", again)
	require.NoError(t, err)
	assert.Equal(t, 90, result.Score)
	assert.Equal(t, int64(1), f.client.calls.Load())
}

func TestEvaluateCandidate_AssessmentScoreSeparatesCacheEntries(t *testing.T) {
	f := newFixture(t, &fakeClient{
		response: `{"fit_score": 91, "recommendation": "strong_match"}`,
	}, Config{})

	job := testJob()
	high, low := 95, 5

	first := testCandidate()
	first.AssessmentScore = &high
	_, err := f.gateway.EvaluateCandidate(context.Background(), "ip-1", first, job)
	require.NoError(t, err)

	// Same skills and experience, different assessment score: a distinct
	// request that must not be served from the first candidate's entry.
	second := testCandidate()
	second.AssessmentScore = &low
	_, err = f.gateway.EvaluateCandidate(context.Background(), "ip-2", second, job)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.client.calls.Load())

	third := testCandidate()
	_, err = f.gateway.EvaluateCandidate(context.Background(), "ip-3", third, job)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.client.calls.Load())
}

func TestGateway_ConcurrentIdenticalCallsCollapse(t *testing.T) {
	f := newFixture(t, &fakeClient{
		response: `{"score": 75, "quality": "good"}`,
		delay:    50 * time.Millisecond,
	}, Config{})

	job := testJob()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.gateway.AnalyzePostingInclusivity(context.Background(), "ip-1", job)
			assert.NoError(t, err)
			assert.Equal(t, 75, result.Score)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), f.client.calls.Load())
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"score": 80}`, `{"score": 80}`},
		{"json fence", "```json\n{\"score\": 80}\n```", `{"score": 80}`},
		{"generic fence", "```\n{\"score\": 80}\n```", `{"score": 80}`},
		{"uppercase language tag", "```JSON\n{\"score\": 80}\n```", `{"score": 80}`},
		{"payload on fence line", "```{\"score\": 80}\n```", `{"score": 80}`},
		{"surrounding whitespace", "  \n{\"score\": 80}\n  ", `{"score": 80}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripFences(tc.input))
		})
	}
}

func TestGateway_RateLimitDenialIsTypedAndAudited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.Policies[OpAnalyzePosting] = Policy{Window: time.Minute, MaxRequests: 2, TTL: time.Hour}
	f := newFixture(t, &fakeClient{response: `{"score": 70, "quality": "good"}`}, cfg)

	ctx := context.Background()
	// Vary the title so each call misses the cache and consumes a slot.
	for i := 0; i < 2; i++ {
		job := testJob()
		job.Title = job.Title + string(rune('A'+i))
		_, err := f.gateway.AnalyzePostingInclusivity(ctx, "ip-1", job)
		require.NoError(t, err)
	}

	job := testJob()
	job.Title = "Data Engineer C"
	_, err := f.gateway.AnalyzePostingInclusivity(ctx, "ip-1", job)
	var rlerr *RateLimitError
	require.ErrorAs(t, err, &rlerr)
	assert.Greater(t, rlerr.RetryAfter, time.Duration(0))

	denials, err := f.audits.Query(ctx, store.AuditFilter{EventType: types.EventRateLimitDenied})
	require.NoError(t, err)
	assert.Len(t, denials, 1)

	// A different caller is unaffected.
	_, err = f.gateway.AnalyzePostingInclusivity(ctx, "ip-2", job)
	assert.NoError(t, err)
}

func TestGateway_CacheHitDoesNotConsumeBackendButConsumesSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	f := newFixture(t, &fakeClient{response: `{"score": 70, "quality": "good"}`}, cfg)

	ctx := context.Background()
	job := testJob()
	_, err := f.gateway.AnalyzePostingInclusivity(ctx, "ip-1", job)
	require.NoError(t, err)
	_, err = f.gateway.AnalyzePostingInclusivity(ctx, "ip-1", job)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.client.calls.Load())
}
