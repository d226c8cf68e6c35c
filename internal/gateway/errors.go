package gateway

import (
	"fmt"
	"time"
)

// RateLimitError is returned when admission is denied. The caller should wait
// RetryAfter before retrying; retries consume their own rate-limit slot.
type RateLimitError struct {
	Operation  Operation
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %s", e.Operation, e.RetryAfter.Round(time.Second))
}

// InferenceTimeoutError indicates the backend did not answer within the hard
// timeout. It never escapes the gateway; it is absorbed into a fallback and
// recorded in the audit trail.
type InferenceTimeoutError struct {
	Operation Operation
	Timeout   time.Duration
}

func (e *InferenceTimeoutError) Error() string {
	return fmt.Sprintf("inference timed out for %s after %s", e.Operation, e.Timeout)
}

// InferenceMalformedError indicates the backend answered with output that
// failed strict structural validation. Absorbed like a timeout.
type InferenceMalformedError struct {
	Operation Operation
	Reason    string
}

func (e *InferenceMalformedError) Error() string {
	return fmt.Sprintf("malformed inference response for %s: %s", e.Operation, e.Reason)
}
