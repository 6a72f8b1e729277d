// Package resilience wraps calls to external collaborators with rate limiting,
// circuit breaking, per-attempt timeouts and bounded retry.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

type Config struct {
	MaxRetries      uint64        `split_words:"true" default:"2"`
	BaseDelay       time.Duration `split_words:"true" default:"200ms"`
	MaxDelay        time.Duration `split_words:"true" default:"2s"`
	AttemptTimeout  time.Duration `split_words:"true" default:"20s"`
	BreakerFailures uint32        `split_words:"true" default:"5"`
	BreakerOpenFor  time.Duration `split_words:"true" default:"30s"`
	RatePerSecond   float64       `split_words:"true" default:"0"`
	Burst           int           `split_words:"true" default:"1"`
}

// Guard protects one collaborator. It is safe for concurrent use.
type Guard struct {
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGuard(name string, cfg Config) *Guard {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}

	failures := cfg.BreakerFailures
	g := &Guard{name: name, cfg: cfg}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Warn().Str("component", "resilience").Str("guard", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return g
}

func (g *Guard) Name() string { return g.name }

// State exposes the breaker state for health reporting.
func (g *Guard) State() string { return g.breaker.State().String() }

// Do runs fn under the guard. Errors marked Permanent, an open breaker and a
// finished parent context end the call without further attempts.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(g.cfg.BaseDelay)
	b = retry.WithCappedDuration(g.cfg.MaxDelay, b)
	b = retry.WithMaxRetries(g.cfg.MaxRetries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s rate limit: %w", g.name, err)
			}
		}

		_, err := g.breaker.Execute(func() (interface{}, error) {
			actx := ctx
			if g.cfg.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
				defer cancel()
			}
			return nil, fn(actx)
		})

		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return fmt.Errorf("%s: %w", g.name, errors.Join(errx.ErrCircuitOpen, err))
		case ctx.Err() != nil:
			return err
		case IsPermanent(err):
			return err
		default:
			logx.Ctx(ctx).Debug().Err(err).Str("guard", g.name).Int("attempt", attempt).Msg("retrying collaborator call")
			return retry.RetryableError(err)
		}
	})
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p) || errors.Is(err, errx.ErrEmptyCompletion)
}
