package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

func testConfig() Config {
	return Config{
		MaxRetries:      2,
		BaseDelay:       time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		AttemptTimeout:  time.Second,
		BreakerFailures: 3,
		BreakerOpenFor:  time.Minute,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	g := NewGuard("test", testConfig())
	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsAfterMaxRetries(t *testing.T) {
	g := NewGuard("test", testConfig())
	calls := 0
	boom := errors.New("down")
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 call + 2 retries, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	g := NewGuard("test", testConfig())
	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one failing call, got calls=%d err=%v", calls, err)
	}
}

func TestBreakerOpens(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	g := NewGuard("test", cfg)
	ctx := context.Background()
	failing := func(context.Context) error { return errors.New("down") }

	for i := 0; i < 3; i++ {
		_ = g.Do(ctx, failing)
	}

	called := false
	err := g.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, errx.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatalf("expected open breaker to short-circuit")
	}
	if g.State() != "open" {
		t.Fatalf("expected state=%q, got %q", "open", g.State())
	}
}

func TestAttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	cfg.AttemptTimeout = 10 * time.Millisecond
	g := NewGuard("test", cfg)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallReturnsValue(t *testing.T) {
	g := NewGuard("test", testConfig())
	v, err := Call(context.Background(), g, func(context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("expected ok, got %q %v", v, err)
	}
}
