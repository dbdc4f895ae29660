package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter holds one token bucket per remote host
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int

	// OnDelay, when set, receives every wait that actually blocked
	OnDelay func(host string, d time.Duration)
}

// NewHostLimiter creates a HostLimiter. A non-positive rps disables throttling.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Wait blocks until a request to host is allowed or ctx is done
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	limiter := l.forHost(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if d := time.Since(start); d > time.Millisecond && l.OnDelay != nil {
		l.OnDelay(host, d)
	}
	return nil
}

// Hosts returns the number of hosts seen so far
func (l *HostLimiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *HostLimiter) forHost(host string) *rate.Limiter {
	if host == "" {
		host = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}

// Pacer enforces a minimum duration per processed item
type Pacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer with the given floor. Zero disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the configured floor
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Remaining is how long to sleep for an item that started at started
func (p *Pacer) Remaining(started time.Time) time.Duration {
	elapsed := p.now().Sub(started)
	if elapsed >= p.interval {
		return 0
	}
	return p.interval - elapsed
}

// Pace sleeps out the rest of the floor for an item that started at started
func (p *Pacer) Pace(ctx context.Context, started time.Time) error {
	d := p.Remaining(started)
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
