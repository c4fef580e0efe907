package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited marks a transient provider rate-limit response (HTTP 429).
	ErrRateLimited = errors.New("provider rate limited")
	// ErrSoftFailure marks an empty or malformed provider response.
	ErrSoftFailure = errors.New("provider returned an empty or malformed response")
)

// ProviderError is a provider call failure carrying the HTTP status when known.
type ProviderError struct {
	Provider   Provider
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports 429 responses as ErrRateLimited.
func (e *ProviderError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable is the default retry predicate: rate limits and soft failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrSoftFailure)
}
