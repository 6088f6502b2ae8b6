package invoice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryStrategy defines exponential backoff for remote image fetches
type RetryStrategy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      bool
}

// DefaultRetryStrategy allows one retry after about 200ms
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{
		MaxAttempts: 2,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  time.Second,
		Jitter:      true,
	}
}

// CalculateBackoff returns the pause before the attempt after attemptNumber:
// 1x, 2x, 4x BaseBackoff and so on, capped at MaxBackoff
func (s RetryStrategy) CalculateBackoff(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.BaseBackoff
	}

	multiplier := math.Pow(2, float64(attemptNumber-1))
	backoff := time.Duration(multiplier) * s.BaseBackoff
	if backoff > s.MaxBackoff {
		backoff = s.MaxBackoff
	}

	if s.Jitter {
		// ±10%
		jitterRange := backoff / 10
		if jitterRange > 0 {
			backoff += time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
			if backoff < s.BaseBackoff {
				backoff = s.BaseBackoff
			}
		}
	}
	return backoff
}

// statusError is a non-2xx answer from an image host
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch image: status %d", e.code)
}

// IsRetryable reports whether a failed fetch may succeed on a second try.
// Only 429 and 5xx answers and dropped connections qualify. Timeouts do not.
func (s RetryStrategy) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == 429 || (se.code >= 500 && se.code < 600)
	}

	msg := err.Error()
	if strings.Contains(msg, "Timeout") || strings.Contains(msg, "timeout") {
		return false
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF")
}

// do runs fn until it succeeds, fails permanently or attempts run out
func (s RetryStrategy) do(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := fn()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt == attempts || !s.IsRetryable(err) {
			break
		}

		timer := time.NewTimer(s.CalculateBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
