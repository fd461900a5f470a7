// Package retry provides a small backoff executor used for every outbound
// call to a chat platform or LLM provider.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Options controls the retry budget and backoff growth.
type Options struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultOptions matches the budget applied to platform and provider calls.
func DefaultOptions() Options {
	return Options{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
	}
}

// HTTPError carries the status code of a failed remote call so the executor
// can tell a client error (don't retry) from a server error (retry).
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// permanentMarkers are substrings of error messages that indicate the call
// will never succeed no matter how often it is repeated.
var permanentMarkers = []string{
	"unauthorized",
	"forbidden",
	"invalid",
	"not found",
	"bad request",
}

// Transient reports whether err is worth retrying. Client errors (4xx) and
// auth/validation failures are permanent; everything else (network errors,
// 5xx, timeouts) is assumed transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= http.StatusBadRequest && httpErr.StatusCode < http.StatusInternalServerError {
			return false
		}
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// Do runs op up to opts.Attempts times, sleeping between attempts with full
// exponential backoff and jitter. A non-transient failure aborts immediately;
// after the budget is exhausted the last error is returned unchanged.
func Do(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultOptions().Attempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOptions().BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if attempt > 0 {
			// delay = base * 2^attempt * uniform(0.5, 1.0); the jitter window
			// keeps many conversations from retrying in lockstep.
			backoff := opts.BaseDelay << attempt
			jittered := time.Duration(float64(backoff) * (0.5 + rand.Float64()*0.5))
			log.Printf("retry: attempt %d/%d after %s: %v", attempt+1, opts.Attempts, jittered, lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(jittered):
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !Transient(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
