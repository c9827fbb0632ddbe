package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Limiter paces outbound requests to one host and backs off after a 429
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration // pending extra wait, zero when healthy
	next    time.Duration // backoff to apply on the next 429
}

// NewLimiter creates a limiter allowing perMinute requests per minute.
// perMinute <= 0 disables pacing.
func NewLimiter(name string, perMinute int) *Limiter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		burst := perMinute / 10
		if burst < 1 {
			burst = 1
		}
		if burst > 5 {
			burst = 5
		}
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}

	return &Limiter{
		limiter: lim,
		name:    name,
		next:    initialBackoff,
	}
}

// Wait blocks until a request may go out or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	pause := l.backoff
	l.backoff = 0
	l.mu.Unlock()

	if pause > 0 {
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// SignalRateLimited schedules an exponentially growing pause before the next request
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff = l.next
	l.next *= 2
	if l.next > maxBackoff {
		l.next = maxBackoff
	}
}

// ResetBackoff clears the backoff after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 0
	l.next = initialBackoff
}

// Backoff returns the pause applied before the next request
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
