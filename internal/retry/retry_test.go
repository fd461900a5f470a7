package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastOptions() Options {
	return Options{Attempts: 3, BaseDelay: time.Millisecond}
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	value, err := DoValue(context.Background(), fastOptions(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "ok" {
		t.Errorf("expected 'ok', got %q", value)
	}
	if calls != 3 {
		t.Errorf("expected 3 invocations, got %d", calls)
	}
}

func TestDoesNotRetryAuthErrors(t *testing.T) {
	calls := 0
	authErr := &HTTPError{StatusCode: 401, Body: "unauthorized"}
	_, err := DoValue(context.Background(), fastOptions(), func(ctx context.Context) (int, error) {
		calls++
		return 0, authErr
	})
	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
	if !errors.Is(err, authErr) {
		t.Errorf("expected the auth error to propagate, got %v", err)
	}
}

func TestExhaustedAttemptsReturnLastError(t *testing.T) {
	calls := 0
	lastErr := errors.New("i/o timeout")
	err := Do(context.Background(), fastOptions(), func(ctx context.Context) error {
		calls++
		return lastErr
	})
	if calls != 3 {
		t.Errorf("expected 3 invocations, got %d", calls)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("expected last error unchanged, got %v", err)
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 500", &HTTPError{StatusCode: 500}, true},
		{"http 503", &HTTPError{StatusCode: 503}, true},
		{"http 429", &HTTPError{StatusCode: 429}, false},
		{"http 400", &HTTPError{StatusCode: 400}, false},
		{"http 404", &HTTPError{StatusCode: 404}, false},
		{"wrapped http 502", errors.Join(errors.New("call failed"), &HTTPError{StatusCode: 502}), true},
		{"unauthorized text", errors.New("request unauthorized"), false},
		{"forbidden text", errors.New("403 Forbidden"), false},
		{"invalid text", errors.New("invalid request payload"), false},
		{"not found text", errors.New("channel not found"), false},
		{"bad request text", errors.New("bad request: missing field"), false},
		{"network error", errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Options{Attempts: 5, BaseDelay: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("temporary failure")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 invocation before cancellation, got %d", calls)
	}
}
