package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

// circuitState tracks rate-limit backoff for a single engine.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Policy controls how a failed engine call is handled.
type Policy struct {
	AutoFallback bool
	Retry        bool
}

// Attempt records one engine invocation.
type Attempt struct {
	Engine   domain.Engine
	Err      error
	Duration time.Duration
}

// Result is the outcome of a Run.
type Result struct {
	Output     *port.ConvertOutput
	EngineUsed domain.Engine
	Chain      []string
	Attempts   []Attempt
}

// Runner invokes engines one at a time, bounding each call with its own timeout.
type Runner struct {
	engines  map[domain.Engine]port.ConversionEngine
	timeouts map[domain.Engine]time.Duration
	circuits map[domain.Engine]*circuitState
	limiters map[domain.Engine]*rate.Limiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner creates a Runner. Engines without a timeout entry are bounded only by the caller's context.
func NewRunner(engines []port.ConversionEngine, timeouts map[domain.Engine]time.Duration, logger *zap.Logger) *Runner {
	r := &Runner{
		engines:  make(map[domain.Engine]port.ConversionEngine, len(engines)),
		timeouts: timeouts,
		circuits: make(map[domain.Engine]*circuitState, len(engines)),
		limiters: make(map[domain.Engine]*rate.Limiter),
		logger:   logger,
		now:      time.Now,
	}
	for _, e := range engines {
		r.engines[e.Name()] = e
		r.circuits[e.Name()] = &circuitState{}
	}
	return r
}

// SetRateLimit caps calls to one engine at rps with the given burst.
// rps <= 0 removes the limit. Must be called before the Runner is shared.
func (r *Runner) SetRateLimit(name domain.Engine, rps float64, burst int) {
	if rps <= 0 {
		delete(r.limiters, name)
		return
	}
	if burst < 1 {
		burst = 1
	}
	r.limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Has reports whether an engine is registered.
func (r *Runner) Has(name domain.Engine) bool {
	_, ok := r.engines[name]
	return ok
}

// FallbackChain returns the engines to try, starting at primary and
// stepping down to cheaper engines when auto-fallback is enabled.
func FallbackChain(primary domain.Engine, autoFallback bool) []domain.Engine {
	order := []domain.Engine{domain.EngineAdobe, domain.EngineDocAI, domain.EngineLibreOffice}
	for i, e := range order {
		if e == primary {
			if !autoFallback {
				return []domain.Engine{primary}
			}
			return append([]domain.Engine{}, order[i:]...)
		}
	}
	return []domain.Engine{primary}
}

// Run tries each engine in chain in order until one succeeds. Only the first
// engine is tried unless policy.AutoFallback is set; with policy.Retry each
// engine gets one extra attempt after a non-rate-limit failure. Engines are
// never invoked in parallel.
func (r *Runner) Run(ctx context.Context, chain []domain.Engine, input port.ConvertInput, policy Policy) (*Result, error) {
	res := &Result{}
	if len(chain) == 0 {
		return res, fmt.Errorf("engine.Run: empty engine chain: %w", domain.ErrEngineFailed)
	}
	if !policy.AutoFallback {
		chain = chain[:1]
	}

	var lastErr error
	for _, name := range chain {
		eng, ok := r.engines[name]
		if !ok {
			r.logger.Warn("engine not configured, skipping", zap.String("engine", string(name)))
			lastErr = fmt.Errorf("engine %s not configured: %w", name, domain.ErrEngineFailed)
			continue
		}

		if resetAt, open := r.circuits[name].isOpenWithReset(r.now()); open {
			r.logger.Info("skipping engine, circuit open",
				zap.String("engine", string(name)),
				zap.Time("reset_at", resetAt),
			)
			lastErr = fmt.Errorf("engine %s rate limited until %s: %w", name, resetAt.Format(time.RFC3339), domain.ErrEngineFailed)
			continue
		}

		attempts := 1
		if policy.Retry {
			attempts = 2
		}
		for i := 0; i < attempts; i++ {
			res.Chain = append(res.Chain, string(name))
			out, err := r.invoke(ctx, eng, input, res)
			if err == nil {
				res.Output = out
				res.EngineUsed = name
				return res, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					return res, fmt.Errorf("engine.Run: request deadline reached: %w: %w", domain.ErrEngineTimeout, ctxErr)
				}
				return res, fmt.Errorf("engine.Run: %w", ctxErr)
			}
			lastErr = err

			var rlErr *RateLimitError
			if errors.As(err, &rlErr) {
				r.circuits[name].open(r.now().Add(rlErr.RetryAfter))
				break
			}
		}
	}

	return res, lastErr
}

func (r *Runner) invoke(ctx context.Context, eng port.ConversionEngine, input port.ConvertInput, res *Result) (*port.ConvertOutput, error) {
	name := eng.Name()
	if lim := r.limiters[name]; lim != nil {
		// Queueing for the limiter is not part of the engine's own timeout.
		if err := lim.Wait(ctx); err != nil {
			err = fmt.Errorf("engine %s: waiting for rate limiter: %v: %w", name, err, domain.ErrEngineTimeout)
			res.Attempts = append(res.Attempts, Attempt{Engine: name, Err: err})
			return nil, err
		}
	}

	callCtx := ctx
	if d := r.timeouts[name]; d > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := r.now()
	out, err := eng.Convert(callCtx, input)
	elapsed := r.now().Sub(start)

	if err == nil && out == nil {
		err = fmt.Errorf("engine %s returned no output", name)
	}
	if err != nil {
		switch {
		case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("engine %s exceeded %s: %w", name, r.timeouts[name], domain.ErrEngineTimeout)
		case !errors.Is(err, domain.ErrEngineTimeout):
			var rlErr *RateLimitError
			if !errors.As(err, &rlErr) {
				err = fmt.Errorf("engine %s: %v: %w", name, err, domain.ErrEngineFailed)
			}
		}
		r.logger.Warn("engine call failed",
			zap.String("engine", string(name)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}

	res.Attempts = append(res.Attempts, Attempt{Engine: name, Err: err, Duration: elapsed})
	return out, err
}
