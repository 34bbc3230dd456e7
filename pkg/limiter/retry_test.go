package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(max int) RetryConfig {
	config := DefaultRetryConfig()
	config.MaxRetries = max
	config.BaseDelay = time.Millisecond
	config.Jitter = false
	return config
}

func TestRetryManager(t *testing.T) {
	rm := NewRetryManager(fastRetry(2))

	attempts := 0
	result, err := rm.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return "success", nil
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got %v", result)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryManagerWithRetries(t *testing.T) {
	rm := NewRetryManager(fastRetry(3))

	attempts := 0
	result, err := rm.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, NewHTTPError(503, "busy")
		}
		return "success", nil
	})
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got %v", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryManagerMaxRetriesExceeded(t *testing.T) {
	rm := NewRetryManager(fastRetry(2))

	attempts := 0
	_, err := rm.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, NewHTTPError(429, "slow down")
	})
	if err == nil {
		t.Fatal("Expected error after max retries exceeded")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 429 {
		t.Errorf("Expected wrapped HTTP 429, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryManagerNonRetryable(t *testing.T) {
	rm := NewRetryManager(fastRetry(3))

	attempts := 0
	_, err := rm.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, NewHTTPError(400, "bad request")
	})
	if err == nil || err.Error() != "HTTP 400: bad request" {
		t.Errorf("Expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryManagerContextCancellation(t *testing.T) {
	config := fastRetry(5)
	config.BaseDelay = time.Second
	rm := NewRetryManager(config)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rm.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, NewHTTPError(503, "busy")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := fastRetry(3)
	config.BaseDelay = 100 * time.Millisecond
	config.MaxDelay = 300 * time.Millisecond
	rm := NewRetryManager(config)

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for attempt, d := range want {
		if got := rm.calculateDelay(attempt); got != d {
			t.Errorf("attempt %d: expected %v, got %v", attempt, d, got)
		}
	}
}
