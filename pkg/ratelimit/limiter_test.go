package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiterThrottlesPerHost(t *testing.T) {
	limiter := NewHostLimiter(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx, "a.example"))
	}
	elapsed := time.Since(start)

	// burst 1 at 20/s: the 2nd and 3rd calls each wait ~50ms
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestHostLimiterHostsAreIndependent(t *testing.T) {
	limiter := NewHostLimiter(1, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "a.example"))
	require.NoError(t, limiter.Wait(ctx, "b.example"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 2, limiter.Hosts())
}

func TestHostLimiterSharedAcrossGoroutines(t *testing.T) {
	limiter := NewHostLimiter(20, 1)
	var mu sync.Mutex
	var delays int
	limiter.OnDelay = func(host string, d time.Duration) {
		mu.Lock()
		delays++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, limiter.Wait(context.Background(), "shared.example"))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, delays, 3)
}

func TestHostLimiterCancelled(t *testing.T) {
	limiter := NewHostLimiter(0.1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx, "slow.example"))
	cancel()
	assert.Error(t, limiter.Wait(ctx, "slow.example"))
}

func TestHostLimiterDisabled(t *testing.T) {
	limiter := NewHostLimiter(0, 0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, limiter.Wait(context.Background(), "x"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerRemaining(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPacer(500 * time.Millisecond)

	p.now = func() time.Time { return base.Add(200 * time.Millisecond) }
	assert.Equal(t, 300*time.Millisecond, p.Remaining(base))

	p.now = func() time.Time { return base.Add(700 * time.Millisecond) }
	assert.Equal(t, time.Duration(0), p.Remaining(base))
}

func TestPacerSleepsRemainder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var slept time.Duration
	p := NewPacer(500 * time.Millisecond)
	p.now = func() time.Time { return base.Add(100 * time.Millisecond) }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	require.NoError(t, p.Pace(context.Background(), base))
	assert.Equal(t, 400*time.Millisecond, slept)
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Pace(ctx, time.Now()), context.Canceled)
}
