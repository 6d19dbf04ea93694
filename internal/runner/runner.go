package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Result captures execution summary.
type Result struct {
	Planned     int
	Total       int64
	Failures    int64
	Duration    time.Duration
	Interrupted bool
}

// Runner executes the plan sequentially.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

// New returns a Runner for opt. It panics when opt.Invoker is nil.
func New(opt Options) *Runner {
	if opt.Invoker == nil {
		panic("runner: nil Invoker")
	}
	opt.normalize()
	var limiter *rate.Limiter
	if opt.MinInterval > 0 {
		limiter = opt.LimiterFactory(opt.MinInterval)
	}
	return &Runner{opt: opt, limiter: limiter}
}

// Run invokes every trial of the plan in order. A failed invocation never
// stops the loop; only ctx cancellation does.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	trials := r.opt.Plan.Trials()
	res := Result{Planned: len(trials)}

	for _, trial := range trials {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				res.Interrupted = true
				break
			}
		}
		res.Total++
		if err := r.opt.Invoker.Invoke(ctx, trial); err != nil {
			res.Failures++
		}
	}

	res.Duration = time.Since(start)
	return res
}
