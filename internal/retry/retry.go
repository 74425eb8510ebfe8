package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
	DefaultJitter      = 3 * time.Second
)

// Policy bounds how often and how patiently an operation is retried.
// The zero value is usable and means the defaults above.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration

	// Retryable reports whether a failure is worth another attempt.
	// Nil retries everything.
	Retryable func(error) bool

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func(n int64) int64
}

// Default returns the policy used for upstream reads.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Jitter:      DefaultJitter,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Backoff returns the wait before the next attempt: the base delay plus
// uniform jitter in [0, Jitter). The delay does not grow with attempts.
func (p Policy) Backoff() time.Duration {
	d := p.BaseDelay
	if p.Jitter > 0 {
		rnd := p.Rand
		if rnd == nil {
			rnd = rand.Int64N
		}
		d += time.Duration(rnd(int64(p.Jitter)))
	}
	return d
}

// Do runs op until it succeeds, the attempts run out, or the failure is not
// retryable. The last error is returned as is.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var lastErr error
	n := p.attempts()
	for attempt := 1; attempt <= n; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == n || !p.retryable(err) {
			break
		}
		if serr := sleep(ctx, p.Backoff()); serr != nil {
			break
		}
	}
	return zero, lastErr
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
