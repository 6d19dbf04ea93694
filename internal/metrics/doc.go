// Package metrics aggregates per-invocation results for a sweep.
//
// The [Collector] implements runner.Recorder and is fed one record per
// completed invocation:
//
//	collector := metrics.NewCollector(plan.Len())
//	invoker = runner.WithRecorder(invoker, collector)
//
//	// after (or during) the sweep
//	stats := collector.Stats(elapsed)
//
// # Statistics
//
// [Stats] carries:
//   - invocation counts (planned, total, successes, failures)
//   - wall-clock duration percentiles per invocation (P50, P90, P99)
//   - failures grouped by reason ("exit status 1", "terminated by signal: killed", ...)
//   - the list of failed trials, in execution order
//
// Durations are tracked with an HDR histogram at microsecond resolution
// for up to 24 hours per invocation.
package metrics
