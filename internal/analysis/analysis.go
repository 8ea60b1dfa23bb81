// Package analysis wraps the external text-generation provider used to
// produce symptom analyses. The provider is only reachable through the
// Analyzer interface so callers never see its wire format.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/symptomly/apiserver/types"
)

// ErrTimeout is returned when the analysis call exceeds its deadline.
var ErrTimeout = errors.New("analysis timed out")

// ErrUnavailable is returned when the provider keeps failing after the
// retry budget is exhausted.
var ErrUnavailable = errors.New("analysis unavailable")

// ErrRejected is returned when the provider rejects the request
// outright (bad credentials, malformed request). Not retried.
var ErrRejected = errors.New("analysis request rejected")

// Analyzer produces a free-text analysis for a symptom submission.
type Analyzer interface {
	// Analyze returns the generated analysis text verbatim. It never
	// returns empty text together with a nil error.
	Analyze(ctx context.Context, input types.SymptomInput) (string, error)

	// Healthy reports whether the provider currently answers requests.
	Healthy(ctx context.Context) bool
}

// RetryConfig configures retry behavior for transient provider failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// Multiplier grows the delay after every failed attempt.
	Multiplier float64
	// Jitter adds randomness to each delay (0.0 to 1.0).
	Jitter float64
}

// DefaultRetryConfig returns the retry defaults used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}
