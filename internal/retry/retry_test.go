package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(r *recorder, rnd func(int64) int64) Policy {
	p := Default()
	p.Sleep = r.sleep
	p.Rand = rnd
	return p
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	rec := &recorder{}
	calls := 0
	v, err := Do(context.Background(), testPolicy(rec, func(int64) int64 { return 0 }), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected %q, got %q", "ok", v)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(rec.waits) != 2 {
		t.Errorf("expected 2 waits, got %d", len(rec.waits))
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	rec := &recorder{}
	want := errors.New("always")
	calls := 0
	_, err := Do(context.Background(), testPolicy(rec, func(int64) int64 { return 0 }), func(context.Context) (int, error) {
		calls++
		return 0, want
	})
	if err != want {
		t.Errorf("expected last error unchanged, got %v", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d calls, got %d", DefaultMaxAttempts, calls)
	}
}

func TestDo_WaitBounds(t *testing.T) {
	for _, tc := range []struct {
		name string
		rnd  func(int64) int64
	}{
		{"min jitter", func(int64) int64 { return 0 }},
		{"max jitter", func(n int64) int64 { return n - 1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			_, _ = Do(context.Background(), testPolicy(rec, tc.rnd), func(context.Context) (int, error) {
				return 0, errors.New("down")
			})
			var total time.Duration
			for _, w := range rec.waits {
				total += w
			}
			lo := time.Duration(DefaultMaxAttempts-1) * DefaultBaseDelay
			hi := time.Duration(DefaultMaxAttempts-1) * (DefaultBaseDelay + DefaultJitter)
			if total < lo || total > hi {
				t.Errorf("expected total wait in [%v, %v], got %v", lo, hi, total)
			}
		})
	}
}

func TestDo_PermanentFailureStops(t *testing.T) {
	rec := &recorder{}
	permanent := errors.New("permanent")
	p := testPolicy(rec, nil)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no waits, got %v", rec.waits)
	}
}

func TestDo_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Default()
	p.BaseDelay = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("down")
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestBackoff_Linear(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Jitter: time.Second, Rand: func(int64) int64 { return 500 }}
	for i := 0; i < 3; i++ {
		if got := p.Backoff(); got != time.Second+500 {
			t.Errorf("attempt %d: expected constant backoff, got %v", i, got)
		}
	}
}

func TestPolicy_ZeroValueUsesDefaultAttempts(t *testing.T) {
	calls := 0
	p := Policy{Sleep: func(context.Context, time.Duration) error { return nil }}
	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d calls, got %d", DefaultMaxAttempts, calls)
	}
}
