package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/llm"
	"github.com/neurobridge/matchcore/internal/ratelimit"
	"github.com/neurobridge/matchcore/internal/types"
)

// Gateway coordinates admission control, caching, prompting, response
// validation and fallback for the three inference operations.
type Gateway struct {
	client  llm.Client
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	audit   *audit.Log
	log     *zap.Logger
	cfg     Config
	group   singleflight.Group
}

// New creates a gateway.
func New(client llm.Client, limiter *ratelimit.Limiter, inferenceCache *cache.Cache, auditLog *audit.Log, log *zap.Logger, cfg Config) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg = DefaultConfig()
	}
	return &Gateway{
		client:  client,
		limiter: limiter,
		cache:   inferenceCache,
		audit:   auditLog,
		log:     log,
		cfg:     cfg,
	}
}

// AnalyzePostingInclusivity analyzes a job posting for inclusive language
// and accommodation coverage.
func (g *Gateway) AnalyzePostingInclusivity(ctx context.Context, caller string, job *types.JobPosting) (*InclusivityAnalysis, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := g.admit(ctx, caller, OpAnalyzePosting); err != nil {
		return nil, err
	}

	key := cache.Key(string(OpAnalyzePosting),
		cache.NormalizeText(job.Title),
		normalizeDescription(job.Description),
		cache.JoinSet(job.RequiredSkills),
		cache.JoinSet(job.Accommodations),
		cache.NormalizeText(job.Location),
		job.WorkMode,
	)

	var result InclusivityAnalysis
	if g.fromCache(ctx, key, &result) {
		return &result, nil
	}

	err := g.generate(ctx, OpAnalyzePosting, key, buildInclusivityPrompt(job), inclusivitySchema, &result)
	if err != nil {
		g.recordFallback(ctx, caller, OpAnalyzePosting, err)
		return FallbackInclusivity(job), nil
	}
	return &result, nil
}

// EvaluateCandidate evaluates a candidate's fit for a job.
func (g *Gateway) EvaluateCandidate(ctx context.Context, caller string, candidate *types.CandidateProfile, job *types.JobPosting) (*CandidateEvaluation, error) {
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := g.admit(ctx, caller, OpEvaluateCandidate); err != nil {
		return nil, err
	}

	assessment := "none"
	if candidate.AssessmentScore != nil {
		assessment = fmt.Sprintf("%d", *candidate.AssessmentScore)
	}
	key := cache.Key(string(OpEvaluateCandidate),
		cache.JoinSet(candidate.Skills),
		normalizeDescription(candidate.Experience),
		assessment,
		cache.NormalizeText(job.Title),
		cache.JoinSet(job.RequiredSkills),
		normalizeDescription(job.Description),
	)

	var result CandidateEvaluation
	if g.fromCache(ctx, key, &result) {
		return &result, nil
	}

	err := g.generate(ctx, OpEvaluateCandidate, key, buildEvaluationPrompt(candidate, job), evaluationSchema, &result)
	if err != nil {
		g.recordFallback(ctx, caller, OpEvaluateCandidate, err)
		return FallbackEvaluation(candidate, job), nil
	}
	return &result, nil
}

// ExplainMatch produces a human-readable explanation of an already-computed
// score. The result always carries the transparency disclaimer.
func (g *Gateway) ExplainMatch(ctx context.Context, caller string, candidate *types.CandidateProfile, job *types.JobPosting, score int, breakdown types.ScoreBreakdown) (*MatchExplanation, error) {
	if err := g.admit(ctx, caller, OpExplainMatch); err != nil {
		return nil, err
	}

	key := cache.Key(string(OpExplainMatch),
		cache.JoinSet(candidate.Skills),
		cache.NormalizeText(job.Title),
		cache.JoinSet(job.RequiredSkills),
		fmt.Sprintf("%d|%d|%d|%d|%d", score, breakdown.Skills, breakdown.Accommodations, breakdown.Preferences, breakdown.Location),
	)

	var result MatchExplanation
	if g.fromCache(ctx, key, &result) {
		result.Disclaimer = TransparencyDisclaimer
		return &result, nil
	}

	err := g.generate(ctx, OpExplainMatch, key, buildExplanationPrompt(candidate, job, score, breakdown), explanationSchema, &result)
	if err != nil {
		g.recordFallback(ctx, caller, OpExplainMatch, err)
		return FallbackExplanation(job, score, breakdown), nil
	}
	result.Disclaimer = TransparencyDisclaimer
	return &result, nil
}

// admit enforces the operation's rate-limit policy for the caller. The slot
// is consumed here, at admission time, regardless of what the backend later
// does: a timed-out call never leaves a slot "in flight".
func (g *Gateway) admit(ctx context.Context, caller string, op Operation) error {
	policy := g.cfg.policy(op)
	res, err := g.limiter.Admit(ctx, caller+":"+string(op), policy.Window, policy.MaxRequests)
	if err != nil {
		// A broken limiter store degrades to unlimited rather than an outage.
		g.log.Warn("rate limiter unavailable, admitting", zap.Error(err))
		return nil
	}
	if res.Allowed {
		return nil
	}
	if _, aerr := g.audit.Append(ctx, types.EventRateLimitDenied, caller, map[string]any{
		"operation":           string(op),
		"retry_after_seconds": res.RetryAfter.Seconds(),
	}); aerr != nil {
		g.log.Error("failed to audit rate limit denial", zap.Error(aerr))
	}
	return &RateLimitError{Operation: op, RetryAfter: res.RetryAfter, ResetAt: res.ResetAt}
}

func (g *Gateway) fromCache(ctx context.Context, key string, out any) bool {
	value, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.log.Warn("cache read failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(value, out); err != nil {
		g.log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// generate performs one validated backend call. Identical concurrent misses
// collapse onto a single in-flight call via singleflight. Only validated
// model output is cached; fallbacks are recomputed per call.
func (g *Gateway) generate(ctx context.Context, op Operation, key, prompt, schema string, out any) error {
	raw, err, _ := g.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		text, err := g.client.GenerateJSON(callCtx, prompt)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
				return nil, &InferenceTimeoutError{Operation: op, Timeout: g.cfg.Timeout}
			}
			return nil, fmt.Errorf("inference backend call failed: %w", err)
		}

		cleaned := stripFences(text)
		if err := validateResponse(schema, cleaned); err != nil {
			return nil, &InferenceMalformedError{Operation: op, Reason: err.Error()}
		}

		if err := g.cache.Set(ctx, key, []byte(cleaned), g.cfg.policy(op).TTL); err != nil {
			g.log.Warn("cache write failed", zap.Error(err))
		}
		return []byte(cleaned), nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), out)
}

// stripFences unwraps a markdown code fence. The backend is told to return
// bare JSON but wraps it anyway often enough to handle here.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	// Drop an optional language tag ("json") preceding the payload.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// recordFallback audits one fallback invocation.
func (g *Gateway) recordFallback(ctx context.Context, caller string, op Operation, cause error) {
	g.log.Info("inference degraded to fallback",
		zap.String("operation", string(op)),
		zap.Error(cause))
	if _, err := g.audit.Append(ctx, types.EventInferenceFallback, caller, map[string]any{
		"operation": string(op),
		"cause":     cause.Error(),
	}); err != nil {
		g.log.Error("failed to audit fallback", zap.Error(err))
	}
}

// Close releases the inference client.
func (g *Gateway) Close() error {
	return g.client.Close()
}
