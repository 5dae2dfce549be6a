package http_test

import (
	"context"
	"errors"
	"testing"
	"time"

	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
)

func fastRetryConfig() llmhttp.RetryConfig {
	return llmhttp.RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return llmhttp.NewServiceUnavailableError("openai", "boom", 503)
		}
		return nil
	}

	if err := llmhttp.RetryWithBackoff(context.Background(), op, fastRetryConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	authErr := llmhttp.NewAuthenticationError("openai", "bad key")
	op := func(ctx context.Context) error {
		attempts++
		return authErr
	}

	err := llmhttp.RetryWithBackoff(context.Background(), op, fastRetryConfig())
	if !errors.Is(err, authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return llmhttp.NewNetworkError("github", "connection reset")
	}

	cfg := fastRetryConfig()
	err := llmhttp.RetryWithBackoff(context.Background(), op, cfg)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != cfg.MaxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", cfg.MaxRetries+1, attempts)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		cancel()
		return llmhttp.NewNetworkError("github", "flaky")
	}

	err := llmhttp.RetryWithBackoff(ctx, op, fastRetryConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRetryGenericErrorsNotRetried(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return errors.New("plain failure")
	}

	if err := llmhttp.RetryWithBackoff(context.Background(), op, fastRetryConfig()); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := llmhttp.NewRateLimitError("openai", "x", 3*time.Second)
	if got := llmhttp.RetryAfterHint(err); got != 3*time.Second {
		t.Fatalf("unexpected hint: %v", got)
	}
	if got := llmhttp.RetryAfterHint(errors.New("other")); got != 0 {
		t.Fatalf("expected zero hint, got %v", got)
	}
}

func TestExponentialBackoffBounded(t *testing.T) {
	cfg := llmhttp.RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2.0,
	}
	for attempt := 0; attempt < 10; attempt++ {
		got := llmhttp.ExponentialBackoff(attempt, cfg)
		if got < 0 || got > cfg.MaxBackoff {
			t.Fatalf("attempt %d: backoff %v out of bounds", attempt, got)
		}
	}
}
