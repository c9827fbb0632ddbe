package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Clock abstracts the wait between attempts
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock and honours cancellation
type RealClock struct{}

// Sleep blocks for d or until ctx is done
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy bounds the retry loop
type Policy struct {
	Attempts int           // total attempts, at least 1
	Delay    time.Duration // wait after a failed attempt

	// OnFailure is called after each failed attempt (1-based)
	OnFailure func(attempt int, err error)
}

// Attempt performs one try. attempt is 1-based.
type Attempt func(ctx context.Context, attempt int) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that must stop the loop
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type immediateError struct{ err error }

func (e *immediateError) Error() string { return e.err.Error() }
func (e *immediateError) Unwrap() error { return e.err }

// Immediate marks an error that retries without waiting the policy delay
func Immediate(err error) error {
	if err == nil {
		return nil
	}
	return &immediateError{err: err}
}

// Do runs fn until it succeeds or the policy is exhausted. It returns the
// number of attempts made. The delay is applied between attempts, never after
// the last one.
func Do(ctx context.Context, p Policy, clock Clock, fn Attempt) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	if clock == nil {
		clock = RealClock{}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}
		if attempt == attempts {
			break
		}

		var imm *immediateError
		if errors.As(err, &imm) {
			continue
		}
		if err := clock.Sleep(ctx, p.Delay); err != nil {
			return attempt, err
		}
	}

	return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
