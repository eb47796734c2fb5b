package understand

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Adapter defaults.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3
)

// Adapter runs prompts against a Model under a shared rate limit. Each
// call, retries included, is bounded by the adapter timeout. An Adapter is
// safe for concurrent use; a nil *Adapter fails every call with ErrNoModel.
type Adapter struct {
	model       Model
	limiter     *rate.Limiter
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
	calls       atomic.Int64
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithRateLimit allows rps requests per second with the given burst. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) AdapterOption {
	return func(a *Adapter) {
		if rps <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a transient failure is tried.
func WithMaxAttempts(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts. Attempt i waits
// i times this delay.
func WithBackoff(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.backoff = d }
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAdapter wraps m.
func NewAdapter(m Model, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		model:       m,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     500 * time.Millisecond,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the model name, or "" without a model.
func (a *Adapter) Name() string {
	if a == nil || a.model == nil {
		return ""
	}
	return a.model.Name()
}

// Calls returns the number of model requests issued so far.
func (a *Adapter) Calls() int64 {
	if a == nil {
		return 0
	}
	return a.calls.Load()
}

// Generate sends p to the model, waiting for the rate limiter and retrying
// transient failures.
func (a *Adapter) Generate(ctx context.Context, p Prompt) (string, error) {
	if a == nil || a.model == nil {
		return "", ErrNoModel
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var lastErr error
	for i := range a.maxAttempts {
		if i > 0 {
			if err := sleepCtx(ctx, time.Duration(i)*a.backoff); err != nil {
				return "", fmt.Errorf("%s: %w (last error: %v)", a.model.Name(), err, lastErr)
			}
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: rate limiter: %w", a.model.Name(), err)
		}
		a.calls.Add(1)
		start := time.Now()
		out, err := a.model.Generate(ctx, p)
		if err == nil {
			a.log.Debug("model call", "model", a.model.Name(), "attempt", i+1, "elapsed", time.Since(start))
			return out, nil
		}
		lastErr = err
		a.log.Debug("model call failed", "model", a.model.Name(), "attempt", i+1, "error", err)
		if !IsTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%s: %w", a.model.Name(), lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
