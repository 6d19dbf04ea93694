// Package journal appends one JSON line per invocation to a file, so a
// long sweep leaves a durable record of what ran, when, and how it ended.
//
// The journal file is guarded by an advisory lock on "<path>.lock"; a
// second sweep pointed at the same journal fails to open it instead of
// interleaving its lines.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/cosweep/internal/command"
	"github.com/torosent/cosweep/internal/sweep"
)

// ErrLocked is returned by Open when another process holds the journal.
var ErrLocked = errors.New("journal is locked by another sweep")

// Entry is one journal line.
type Entry struct {
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Outer      int       `json:"outer"`
	Inner      int       `json:"inner"`
	Args       []string  `json:"args"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs float64   `json:"duration_ms"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
}

// Journal is an append-only invocation log. It implements runner.Recorder.
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	lock   *flock.Flock
	enc    *json.Encoder
	runID  ulid.ULID
	params sweep.Params
	now    func() time.Time
	err    error
}

// Open locks and opens the journal at path for appending.
func Open(path string, params sweep.Params) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Journal{
		file:   f,
		lock:   lock,
		enc:    json.NewEncoder(f),
		runID:  ulid.Make(),
		params: params,
		now:    time.Now,
	}, nil
}

// RunID identifies this sweep in every entry it writes.
func (j *Journal) RunID() string {
	return j.runID.String()
}

// Record appends an entry for a completed invocation. Write failures are
// kept and reported by Err and Close; they never interrupt the sweep.
func (j *Journal) Record(trial sweep.Trial, elapsed time.Duration, err error) {
	entry := Entry{
		RunID:      j.runID.String(),
		Seq:        trial.Seq,
		Outer:      trial.Outer,
		Inner:      trial.Inner,
		Args:       j.params.Args(trial),
		DurationMs: float64(elapsed) / float64(time.Millisecond),
		ExitCode:   command.ExitCode(err),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	entry.FinishedAt = j.now().UTC()
	if werr := j.enc.Encode(entry); werr != nil && j.err == nil {
		j.err = fmt.Errorf("write journal: %w", werr)
	}
}

// Close flushes the file and releases the lock. The error includes the
// first failed write, if any.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return j.err
	}
	errs := []error{j.err}
	if err := j.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync journal: %w", err))
	}
	if err := j.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	if err := j.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock journal: %w", err))
	}
	j.file = nil
	return errors.Join(errs...)
}
