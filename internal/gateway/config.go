package gateway

import "time"

// Operation identifies one of the three gateway operations. Each operation
// class carries its own rate-limit policy and cache TTL.
type Operation string

// Gateway operations.
const (
	OpAnalyzePosting    Operation = "analyze_posting"
	OpEvaluateCandidate Operation = "evaluate_candidate"
	OpExplainMatch      Operation = "explain_match"
)

// Policy is the per-operation admission and caching policy.
type Policy struct {
	Window      time.Duration
	MaxRequests int
	TTL         time.Duration
}

// Config holds gateway configuration.
type Config struct {
	// Timeout is the hard wall-clock bound on one backend call.
	Timeout  time.Duration
	Policies map[Operation]Policy
}

// DefaultConfig returns the default gateway configuration. Posting analyses
// are cached longest (postings change rarely), evaluations a medium time,
// explanations shortest (scores shift as profiles update).
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Policies: map[Operation]Policy{
			OpAnalyzePosting:    {Window: time.Minute, MaxRequests: 20, TTL: 24 * time.Hour},
			OpEvaluateCandidate: {Window: time.Minute, MaxRequests: 30, TTL: time.Hour},
			OpExplainMatch:      {Window: time.Minute, MaxRequests: 60, TTL: 10 * time.Minute},
		},
	}
}

func (c Config) policy(op Operation) Policy {
	if p, ok := c.Policies[op]; ok {
		return p
	}
	return Policy{Window: time.Minute, MaxRequests: 30, TTL: 10 * time.Minute}
}
