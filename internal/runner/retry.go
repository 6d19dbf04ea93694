package runner

import (
	"context"
	"time"

	"github.com/torosent/cosweep/internal/sweep"
)

// FailureLogger logs failed invocations.
type FailureLogger interface {
	LogFailure(trial sweep.Trial, err error)
}

// Recorder observes every completed invocation.
type Recorder interface {
	Record(trial sweep.Trial, elapsed time.Duration, err error)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

type retryInvoker struct {
	inner  Invoker
	policy RetryPolicy
}

// WithRetry wraps an Invoker with retry capability.
func WithRetry(inv Invoker, policy RetryPolicy) Invoker {
	if policy.MaxAttempts <= 1 {
		return inv
	}
	return &retryInvoker{
		inner:  inv,
		policy: policy,
	}
}

func (r *retryInvoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Invoke(ctx, trial)
		if lastErr == nil {
			return nil
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

type loggingInvoker struct {
	inner  Invoker
	logger FailureLogger
}

// WithLogging wraps an Invoker to log failures.
func WithLogging(inv Invoker, logger FailureLogger) Invoker {
	if logger == nil {
		return inv
	}
	return &loggingInvoker{
		inner:  inv,
		logger: logger,
	}
}

func (l *loggingInvoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	err := l.inner.Invoke(ctx, trial)
	if err != nil {
		l.logger.LogFailure(trial, err)
	}
	return err
}

type recordingInvoker struct {
	inner     Invoker
	recorders []Recorder
}

// WithRecorder wraps an Invoker so each invocation's duration and outcome
// reach the given recorders. Nil recorders are skipped.
func WithRecorder(inv Invoker, recorders ...Recorder) Invoker {
	active := make([]Recorder, 0, len(recorders))
	for _, rec := range recorders {
		if rec != nil {
			active = append(active, rec)
		}
	}
	if len(active) == 0 {
		return inv
	}
	return &recordingInvoker{inner: inv, recorders: active}
}

func (r *recordingInvoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	start := time.Now()
	err := r.inner.Invoke(ctx, trial)
	elapsed := time.Since(start)
	for _, rec := range r.recorders {
		rec.Record(trial, elapsed, err)
	}
	return err
}
