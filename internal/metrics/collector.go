package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/cosweep/internal/command"
	"github.com/torosent/cosweep/internal/sweep"
)

// Collector records per-invocation metrics in a thread-safe manner.
type Collector struct {
	mu             sync.Mutex
	hist           *hdrhistogram.Histogram
	planned        int
	successes      int64
	failures       int64
	minDuration    time.Duration
	maxDuration    time.Duration
	sumDuration    time.Duration
	failuresByKind map[string]int64
	failed         []FailedTrial
	last           *sweep.Trial
	start          time.Time
}

// FailedTrial identifies an invocation that did not exit cleanly.
type FailedTrial struct {
	Outer    int    `json:"outer"`
	Inner    int    `json:"inner"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Planned      int           `json:"planned"`
	Total        int64         `json:"total"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	MinDuration  time.Duration `json:"-"`
	MaxDuration  time.Duration `json:"-"`
	MeanDuration time.Duration `json:"-"`
	P50Duration  time.Duration `json:"-"`
	P90Duration  time.Duration `json:"-"`
	P99Duration  time.Duration `json:"-"`
	Elapsed      time.Duration `json:"-"`
	LastTrial    *sweep.Trial  `json:"-"`

	// JSON-friendly second fields.
	MinDurationSec  float64 `json:"min_duration_sec"`
	MaxDurationSec  float64 `json:"max_duration_sec"`
	MeanDurationSec float64 `json:"mean_duration_sec"`
	P50DurationSec  float64 `json:"p50_duration_sec"`
	P90DurationSec  float64 `json:"p90_duration_sec"`
	P99DurationSec  float64 `json:"p99_duration_sec"`
	ElapsedSec      float64 `json:"elapsed_sec"`

	Errors       map[string]int `json:"errors,omitempty"`
	FailedTrials []FailedTrial  `json:"failed_trials,omitempty"`
}

// NewCollector creates a collector for a sweep of planned invocations.
func NewCollector(planned int) *Collector {
	// Track durations from 1µs up to 24h with 3 significant figures.
	h := hdrhistogram.New(1, int64(24*time.Hour/time.Microsecond), 3)
	return &Collector{
		hist:           h,
		planned:        planned,
		failuresByKind: make(map[string]int64),
		start:          time.Now(),
	}
}

// Start resets the collector's start time.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Record registers one completed invocation.
func (c *Collector) Record(trial sweep.Trial, elapsed time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	us := elapsed.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
	c.sumDuration += elapsed

	if c.minDuration == 0 || elapsed < c.minDuration {
		c.minDuration = elapsed
	}
	if elapsed > c.maxDuration {
		c.maxDuration = elapsed
	}

	t := trial
	c.last = &t

	if err == nil {
		c.successes++
		return
	}
	c.failures++
	reason := FailureReason(err)
	c.failuresByKind[reason]++
	c.failed = append(c.failed, FailedTrial{
		Outer:    trial.Outer,
		Inner:    trial.Inner,
		ExitCode: command.ExitCode(err),
		Reason:   reason,
	})
}

// Elapsed returns the time since the collector started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Planned:     c.planned,
		Total:       total,
		Successes:   c.successes,
		Failures:    c.failures,
		MinDuration: c.minDuration,
		MaxDuration: c.maxDuration,
		Elapsed:     elapsed,
	}
	if c.last != nil {
		last := *c.last
		stats.LastTrial = &last
	}

	if total > 0 {
		stats.MeanDuration = time.Duration(int64(c.sumDuration) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Duration = c.quantile(50)
		stats.P90Duration = c.quantile(90)
		stats.P99Duration = c.quantile(99)
	}

	stats.MinDurationSec = stats.MinDuration.Seconds()
	stats.MaxDurationSec = stats.MaxDuration.Seconds()
	stats.MeanDurationSec = stats.MeanDuration.Seconds()
	stats.P50DurationSec = stats.P50Duration.Seconds()
	stats.P90DurationSec = stats.P90Duration.Seconds()
	stats.P99DurationSec = stats.P99Duration.Seconds()
	stats.ElapsedSec = elapsed.Seconds()

	if len(c.failuresByKind) > 0 {
		stats.Errors = make(map[string]int, len(c.failuresByKind))
		for k, v := range c.failuresByKind {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.failed) > 0 {
		stats.FailedTrials = append([]FailedTrial(nil), c.failed...)
	}

	return stats
}

// quantile reads q from the histogram, kept within the observed min and
// max since histogram buckets round values.
func (c *Collector) quantile(q float64) time.Duration {
	d := time.Duration(c.hist.ValueAtQuantile(q)) * time.Microsecond
	if d < c.minDuration {
		d = c.minDuration
	}
	if d > c.maxDuration {
		d = c.maxDuration
	}
	return d
}
