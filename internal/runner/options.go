package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/cosweep/internal/sweep"
)

// Invoker runs the external program for a single trial.
// Implementations should return an error when the invocation failed.
type Invoker interface {
	Invoke(ctx context.Context, trial sweep.Trial) error
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, trial sweep.Trial) error

func (f InvokerFunc) Invoke(ctx context.Context, trial sweep.Trial) error {
	return f(ctx, trial)
}

// Options configure the Runner.
type Options struct {
	Plan           sweep.Plan                                 // trials to execute, in order
	Invoker        Invoker                                    // invocation executor (required)
	MinInterval    time.Duration                              // minimum spacing between invocation starts (0 means none)
	LimiterFactory func(interval time.Duration) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.MinInterval < 0 {
		o.MinInterval = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(interval time.Duration) *rate.Limiter {
			if interval <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps starts evenly spaced.
			return rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}
