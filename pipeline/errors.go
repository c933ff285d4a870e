package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trade-council/models"
)

// FailureKind classifies how a run ended when Run returns an error.
type FailureKind string

const (
	// FailurePartial means the run completed and produced a usable
	// recommendation, but one or more artifacts degraded along the way.
	FailurePartial FailureKind = "PARTIAL"
	// FailureCancelled means the caller's context was cancelled before the
	// run reached a recommendation.
	FailureCancelled FailureKind = "CANCELLED"
	// FailureFatal means the pipeline could not produce a recommendation
	// at all.
	FailureFatal FailureKind = "FATAL"
)

// ErrMalformedOutput marks reasoner output that failed extraction or schema
// validation. One re-prompt with the validation error is the remedy; after
// that the artifact degrades in place.
var ErrMalformedOutput = errors.New("malformed reasoner output")

// RunError is the error shape Run returns for anything other than a clean
// completion. PARTIAL is the odd one out: the run finished and the
// recommendation rides along so callers can still act on it.
type RunError struct {
	Kind           FailureKind
	Phase          models.RunPhase // phase where the run ended
	Recommendation *models.Recommendation
	Err            error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("run %s in phase %s", strings.ToLower(string(e.Kind)), e.Phase)
	}
	return fmt.Sprintf("run %s in phase %s: %v", strings.ToLower(string(e.Kind)), e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// AsRunError unwraps err to the *RunError in its chain, if any.
func AsRunError(err error) (*RunError, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func partialError(phase models.RunPhase, rec *models.Recommendation, flags []string) *RunError {
	return &RunError{
		Kind:           FailurePartial,
		Phase:          phase,
		Recommendation: rec,
		Err:            fmt.Errorf("completed with degradation flags: %s", strings.Join(flags, ", ")),
	}
}

func cancelledError(phase models.RunPhase, err error) *RunError {
	return &RunError{Kind: FailureCancelled, Phase: phase, Err: err}
}

func fatalError(phase models.RunPhase, err error) *RunError {
	return &RunError{Kind: FailureFatal, Phase: phase, Err: err}
}

// errorType buckets an error for metrics labels.
func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return "rate_limit"
	case strings.Contains(msg, "circuit breaker"):
		return "circuit_breaker"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"):
		return "network"
	default:
		return "other"
	}
}
