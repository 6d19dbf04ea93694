package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/torosent/cosweep/internal/command"
	"github.com/torosent/cosweep/internal/config"
	"github.com/torosent/cosweep/internal/journal"
	"github.com/torosent/cosweep/internal/sweep"
)

// When COSWEEP_STUB is set the test binary acts as the co-simulation
// program: it appends "args|PYTHONPATH" to COSWEEP_STUB_RECORD and exits
// with COSWEEP_STUB_EXIT.
func TestMain(m *testing.M) {
	if os.Getenv("COSWEEP_STUB") == "1" {
		os.Exit(runStub(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runStub(args []string) int {
	f, err := os.OpenFile(os.Getenv("COSWEEP_STUB_RECORD"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 100
	}
	fmt.Fprintf(f, "%s|%s\n", strings.Join(args, " "), os.Getenv("PYTHONPATH"))
	f.Close()
	if os.Getenv("COSWEEP_STUB_STDOUT") == "1" {
		fmt.Println("cosim: step done")
	}
	code, _ := strconv.Atoi(os.Getenv("COSWEEP_STUB_EXIT"))
	return code
}

// setupStub points the sweep at the test binary and returns the record file.
func setupStub(t *testing.T, exit int) string {
	t.Helper()
	record := filepath.Join(t.TempDir(), "calls.txt")
	t.Setenv("COSWEEP_STUB", "1")
	t.Setenv("COSWEEP_STUB_RECORD", record)
	t.Setenv("COSWEEP_STUB_EXIT", strconv.Itoa(exit))
	return record
}

func stubArgs(extra ...string) []string {
	return append([]string{
		"--interpreter=",
		"--program", os.Args[0],
		"--output-dir", "out",
		"--log-level", "error",
	}, extra...)
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func readJournal(t *testing.T, path string) []journal.Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var entries []journal.Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e journal.Entry
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode journal: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

func callArgs(calls []string) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i], _, _ = strings.Cut(c, "|")
	}
	return out
}

func TestRunFullSweepIgnoresFailures(t *testing.T) {
	record := setupStub(t, 3)

	var stdout, stderr bytes.Buffer
	if err := run(stubArgs(), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v, want nil despite failing invocations", err)
	}

	calls := callArgs(readCalls(t, record))
	if len(calls) != 110 {
		t.Fatalf("invocations = %d, want 110", len(calls))
	}
	if calls[0] != "out 0 0.0 1000.0 1" {
		t.Errorf("first call = %q", calls[0])
	}
	if calls[10] != "out 10 0.0 1000.0 1" {
		t.Errorf("call 10 = %q", calls[10])
	}
	if calls[11] != "out 0 0.0 1000.0 2" {
		t.Errorf("call 11 = %q", calls[11])
	}
	if calls[109] != "out 10 0.0 1000.0 10" {
		t.Errorf("last call = %q", calls[109])
	}

	report := stdout.String()
	for _, want := range []string{"Invocations:       110", "Failed:            110", "exit status 3: 110"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRunReducedSweepOrder(t *testing.T) {
	record := setupStub(t, 0)

	var stdout, stderr bytes.Buffer
	if err := run(stubArgs("--outer-to", "2", "--inner-to", "1"), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := []string{
		"out 0 0.0 1000.0 1",
		"out 1 0.0 1000.0 1",
		"out 0 0.0 1000.0 2",
		"out 1 0.0 1000.0 2",
	}
	if diff := cmp.Diff(want, callArgs(readCalls(t, record))); diff != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAppendsSearchPaths(t *testing.T) {
	record := setupStub(t, 0)
	t.Setenv("PYTHONPATH", "/prior")
	extra := t.TempDir()

	var stdout, stderr bytes.Buffer
	args := stubArgs("--outer-to", "1", "--inner-to", "2", "--python-path", extra)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := "/prior" + string(os.PathListSeparator) + extra
	calls := readCalls(t, record)
	if len(calls) != 3 {
		t.Fatalf("invocations = %d, want 3", len(calls))
	}
	for _, c := range calls {
		_, got, _ := strings.Cut(c, "|")
		if got != want {
			t.Errorf("PYTHONPATH = %q, want %q", got, want)
		}
	}
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	record := setupStub(t, 0)

	var stdout, stderr bytes.Buffer
	if err := run(stubArgs("--dry-run", "--outer-to", "2", "--inner-to", "1"), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if _, err := os.Stat(record); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("record file exists after dry run (err = %v)", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("dry run lines = %d, want 5:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "# 4 invocations") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "out 0 0.0 1000.0 1") || !strings.HasSuffix(lines[4], "out 1 0.0 1000.0 2") {
		t.Errorf("dry run order wrong:\n%s", stdout.String())
	}
}

func TestRunWritesJournal(t *testing.T) {
	setupStub(t, 2)
	path := filepath.Join(t.TempDir(), "sweep.jsonl")

	var stdout, stderr bytes.Buffer
	args := stubArgs("--outer-to", "2", "--inner-to", "1", "--journal", path, "--json-output")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	entries := readJournal(t, path)
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	for _, e := range entries {
		if e.ExitCode != 2 {
			t.Errorf("entry %d exit code = %d, want 2", e.Seq, e.ExitCode)
		}
	}
	if !strings.Contains(stdout.String(), `"failures": 4`) {
		t.Errorf("JSON report missing failures:\n%s", stdout.String())
	}
}

func TestRunRetriesFailedInvocations(t *testing.T) {
	record := setupStub(t, 1)

	var stdout, stderr bytes.Buffer
	args := stubArgs("--outer-to", "1", "--inner-to", "0", "--retries", "2")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := len(readCalls(t, record)); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRunMissingProgramStillCompletes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := []string{
		"--interpreter=",
		"--program", filepath.Join(t.TempDir(), "absent"),
		"--outer-to", "1", "--inner-to", "1",
		"--log-level", "error",
	}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v, want nil", err)
	}
	if !strings.Contains(stdout.String(), "Start error: 2") {
		t.Errorf("report missing start errors:\n%s", stdout.String())
	}
}

func TestRunSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"inverted outer range", []string{"--outer-from", "5", "--outer-to", "1"}},
		{"unknown flag", []string{"--no-such-flag"}},
		{"positional argument", []string{"extra"}},
		{"bad log format", []string{"--log-format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err == nil {
				t.Fatal("run() error = nil, want setup error")
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestRunPrintConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--print-config", "--outer-to", "3"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"program: run_co-sim_thread.py", "outer:", "to: 3", "python_path:"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("config dump missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestNewRetryPolicy(t *testing.T) {
	policy := newRetryPolicy(2, 0)
	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if !policy.ShouldRetry(&command.ExitError{Code: 1}) {
		t.Error("exit errors should be retried")
	}
	if policy.ShouldRetry(&command.StartError{Path: "x", Err: os.ErrNotExist}) {
		t.Error("start errors should not be retried")
	}
	if policy.ShouldRetry(nil) {
		t.Error("nil should not be retried")
	}
}

func TestDefaultsMatchOriginalSweep(t *testing.T) {
	cfg := config.Default()
	if cfg.Plan().Len() != 110 {
		t.Errorf("default plan = %d invocations, want 110", cfg.Plan().Len())
	}
}

func TestZapFailureLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := &zapFailureLogger{logger: zap.New(core)}

	l.LogFailure(sweep.Trial{Outer: 3, Inner: 7}, &command.ExitError{Code: 4})
	l.LogFailure(sweep.Trial{Outer: 3, Inner: 8}, nil)

	entries := logs.FilterMessage("invocation failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d failures, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["outer"] != int64(3) || fields["inner"] != int64(7) || fields["exit_code"] != int64(4) {
		t.Errorf("fields = %v", fields)
	}
}

func TestRunFindsProgramOnSearchPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub is installed without an .exe suffix")
	}
	record := setupStub(t, 0)
	bin := t.TempDir()
	data, err := os.ReadFile(os.Args[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(bin, "cosim-stub"), data, 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var stdout, stderr bytes.Buffer
	args := []string{
		"--interpreter=",
		"--program", "cosim-stub",
		"--path", bin,
		"--output-dir", "out",
		"--outer-to", "1", "--inner-to", "1",
		"--log-level", "error",
	}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := len(readCalls(t, record)); got != 2 {
		t.Errorf("invocations = %d, want 2", got)
	}
	if strings.Contains(stdout.String(), "Start error") {
		t.Errorf("program on --path was not found:\n%s", stdout.String())
	}
}

func TestRunJSONOutputStaysParseable(t *testing.T) {
	setupStub(t, 0)
	t.Setenv("COSWEEP_STUB_STDOUT", "1")

	var stdout, stderr bytes.Buffer
	if err := run(stubArgs("--outer-to", "1", "--inner-to", "1", "--json-output"), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var report struct {
		Total    int64 `json:"total"`
		Failures int64 `json:"failures"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout.String())
	}
	if report.Total != 2 || report.Failures != 0 {
		t.Errorf("report = %+v", report)
	}
	if strings.Count(stderr.String(), "cosim: step done") != 2 {
		t.Errorf("program output not on stderr:\n%s", stderr.String())
	}
}

func TestRunClosesJournalWhenReportFails(t *testing.T) {
	setupStub(t, 0)
	path := filepath.Join(t.TempDir(), "sweep.jsonl")

	var stderr bytes.Buffer
	args := stubArgs("--outer-to", "1", "--inner-to", "0", "--journal", path, "--json-output")
	if err := run(args, failingWriter{}, &stderr); err == nil {
		t.Fatal("run() error = nil, want report write error")
	}

	j, err := journal.Open(path, config.Default().Params())
	if err != nil {
		t.Fatalf("journal still locked after run: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(readJournal(t, path)); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }
