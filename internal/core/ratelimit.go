package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited marks a provider throttling response.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError is returned by callers when the provider throttles a credential.
type RateLimitError struct {
	Credential int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("credential %d rate limited (retry after %s)", e.Credential, e.RetryAfter)
	}
	return fmt.Sprintf("credential %d rate limited", e.Credential)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ClassifyError maps a call error onto an Outcome. Timeouts count as failures.
func ClassifyError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	default:
		return OutcomeFailure
	}
}
