package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "boorudl/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if got := backoff.NextDelay(test.attempt); got != test.expected {
			t.Errorf("attempt %d: expected %v, got %v", test.attempt, test.expected, got)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errs.Network(errors.New("connection reset"))
		}
		return nil
	}

	err := Do(op, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var retries []int
	op := func() error {
		attempts++
		return errs.FromStatus(503, "u")
	}

	err := Do(op, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry:     func(attempt int, err error, delay time.Duration) { retries = append(retries, attempt) },
	})
	require.Error(t, err)
	assert.Equal(t, 503, errs.StatusCode(err), "the last error stays reachable")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retries, "no sleep after the final attempt")
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := errs.FromStatus(401, "u")

	err := Do(func() error {
		attempts++
		return authError
	}, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Millisecond}})

	assert.Same(t, authError, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errs.Network(errors.New("timeout"))
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
		Context:     ctx,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("plain")))
	assert.False(t, DefaultRetryIf(errs.FromStatus(404, "u")))
	assert.True(t, DefaultRetryIf(errs.FromStatus(429, "u")))
	assert.True(t, DefaultRetryIf(errs.Network(errors.New("eof"))))
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff()

	rl, ok := etb.GetBackoffForError(errs.ErrorTypeRateLimit).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rl.BaseDelay)

	etb.RateLimitBackoff = &ConstantBackoff{Delay: 7 * time.Second}
	etb.DefaultBackoff = &ConstantBackoff{Delay: time.Second}
	assert.Equal(t, 7*time.Second, etb.DelayFor(1, errs.FromStatus(429, "u")))
	assert.Equal(t, time.Second, etb.DelayFor(1, errors.New("other")))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.FromStatus(502, "u")
		}
		return "page", nil
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}})

	require.NoError(t, err)
	assert.Equal(t, "page", result)
	assert.Equal(t, 2, attempts)
}
