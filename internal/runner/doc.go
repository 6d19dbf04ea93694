// Package runner provides the sweep driver for cosweep.
//
// A [Runner] walks a [sweep.Plan] in order and hands every trial to an
// [Invoker], one at a time. Each invocation blocks until the external
// program exits. A failing invocation is counted and the sweep moves on
// to the next trial; only cancellation of the context stops it early.
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Plan:    sweep.Plan{Outer: sweep.Range{From: 1, To: 10}, Inner: sweep.Range{From: 0, To: 10}},
//		Invoker: myInvoker,
//	})
//	result := r.Run(ctx)
//
// # Invoker Interface
//
//	type Invoker interface {
//		Invoke(ctx context.Context, trial sweep.Trial) error
//	}
//
// # Pacing
//
// Options.MinInterval spaces out the start of consecutive invocations
// using a token bucket from golang.org/x/time/rate. Zero means the next
// trial starts as soon as the previous one has exited.
//
// # Middleware
//
// Invokers can be wrapped:
//   - [WithLogging]: report failed invocations
//   - [WithRetry]: re-run a failed invocation (off unless asked for)
//   - [WithRecorder]: feed duration and outcome to a [Recorder]
package runner
