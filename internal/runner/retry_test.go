package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/cosweep/internal/runner"
	"github.com/torosent/cosweep/internal/sweep"
)

func singleTrialPlan() sweep.Plan {
	return sweep.Plan{Outer: sweep.Range{From: 1, To: 1}, Inner: sweep.Range{From: 0, To: 0}}
}

// TestRetryRespectsMaxAttempts verifies retry count is honored.
func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	inv := &flakyInvoker{attempts: &attempts, failUntil: 3}

	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc: func(attempt int, err error) time.Duration {
			return time.Duration(attempt) * time.Millisecond
		},
	}

	res := runner.New(runner.Options{
		Plan:    singleTrialPlan(),
		Invoker: runner.WithRetry(inv, policy),
	}).Run(context.Background())

	if res.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Total)
	}
	if res.Failures != 0 {
		t.Errorf("expected failures 0, got %d", res.Failures)
	}
	// Succeeds on the 4th attempt.
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64
	inv := &flakyInvoker{attempts: &attempts, failUntil: 100}

	policy := runner.RetryPolicy{
		MaxAttempts: 3,
		DelayFunc:   func(attempt int, err error) time.Duration { return time.Millisecond },
	}

	res := runner.New(runner.Options{
		Plan:    singleTrialPlan(),
		Invoker: runner.WithRetry(inv, policy),
	}).Run(context.Background())

	if res.Failures != 1 {
		t.Errorf("expected failures 1, got %d", res.Failures)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (max), got %d", attempts)
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	inv := &flakyInvoker{attempts: &attempts, failUntil: 100}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(error) bool { return false },
	}

	err := runner.WithRetry(inv, policy).Invoke(context.Background(), sweep.Trial{})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetryNoopForSingleAttempt(t *testing.T) {
	var attempts int64
	inv := &flakyInvoker{attempts: &attempts}
	if got := runner.WithRetry(inv, runner.RetryPolicy{MaxAttempts: 1}); got != runner.Invoker(inv) {
		t.Fatal("expected the original invoker back when retries are disabled")
	}
}

func TestFailuresLogged(t *testing.T) {
	logger := &testLogger{}
	inv := runner.InvokerFunc(func(ctx context.Context, tr sweep.Trial) error {
		return errors.New("exit status 2")
	})

	plan := sweep.Plan{Outer: sweep.Range{From: 1, To: 2}, Inner: sweep.Range{From: 0, To: 0}}
	res := runner.New(runner.Options{
		Plan:    plan,
		Invoker: runner.WithLogging(inv, logger),
	}).Run(context.Background())

	if res.Total != 2 {
		t.Errorf("expected total 2, got %d", res.Total)
	}
	if len(logger.trials) != 2 {
		t.Fatalf("expected 2 logged failures, got %d", len(logger.trials))
	}
	if logger.trials[1].Outer != 2 {
		t.Errorf("second failure outer = %d, want 2", logger.trials[1].Outer)
	}
}

func TestRecorderSeesEveryInvocation(t *testing.T) {
	rec := &testRecorder{}
	inv := runner.InvokerFunc(func(ctx context.Context, tr sweep.Trial) error {
		if tr.Inner == 1 {
			return errors.New("boom")
		}
		return nil
	})
	plan := sweep.Plan{Outer: sweep.Range{From: 1, To: 2}, Inner: sweep.Range{From: 0, To: 1}}
	runner.New(runner.Options{
		Plan:    plan,
		Invoker: runner.WithRecorder(inv, nil, rec),
	}).Run(context.Background())

	if rec.calls != 4 {
		t.Fatalf("expected 4 records, got %d", rec.calls)
	}
	if rec.failures != 2 {
		t.Fatalf("expected 2 failed records, got %d", rec.failures)
	}
}

type flakyInvoker struct {
	attempts  *int64
	failUntil int64
}

func (f *flakyInvoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	attempt := atomic.AddInt64(f.attempts, 1)
	if attempt <= f.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

type testLogger struct {
	trials []sweep.Trial
}

func (l *testLogger) LogFailure(trial sweep.Trial, err error) {
	l.trials = append(l.trials, trial)
}

type testRecorder struct {
	calls    int
	failures int
}

func (r *testRecorder) Record(trial sweep.Trial, elapsed time.Duration, err error) {
	r.calls++
	if err != nil {
		r.failures++
	}
}
