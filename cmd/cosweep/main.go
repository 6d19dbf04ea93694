package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/cosweep/internal/command"
	"github.com/torosent/cosweep/internal/config"
	"github.com/torosent/cosweep/internal/environ"
	"github.com/torosent/cosweep/internal/journal"
	"github.com/torosent/cosweep/internal/logging"
	"github.com/torosent/cosweep/internal/metrics"
	"github.com/torosent/cosweep/internal/output"
	"github.com/torosent/cosweep/internal/runner"
	"github.com/torosent/cosweep/internal/sweep"
	"github.com/torosent/cosweep/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one sweep. The returned error reports problems of the driver
// itself; failed invocations show up in the summary and never in the error.
func run(args []string, stdout, stderr io.Writer) (err error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.PrintConfig {
		return output.PrintConfig(stdout, cfg)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	exts, err := environ.Resolve(cfg.WorkDir, cfg.Extensions()...)
	if err != nil {
		return fmt.Errorf("search paths: %w", err)
	}
	env := environ.Extend(os.Environ(), exts...)
	for _, ext := range exts {
		val, _ := environ.Lookup(env, ext.Key)
		logger.Debug("environment extended", zap.String("var", ext.Key), zap.String("value", val))
	}

	plan := cfg.Plan()
	params := cfg.Params()
	// Keep the JSON summary parseable when the program writes to stdout.
	childStdout := stdout
	if cfg.JSONOutput {
		childStdout = stderr
	}
	cmd := &command.Command{
		Interpreter: cfg.Interpreter,
		Program:     cfg.Program,
		Dir:         cfg.WorkDir,
		Env:         env,
		Stdout:      childStdout,
		Stderr:      stderr,
	}

	if cfg.DryRun {
		output.PrintPlan(stdout, plan, params, cmd)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector(plan.Len())
	recorders := []runner.Recorder{collector}

	var jrnl *journal.Journal
	if cfg.Journal != "" {
		jrnl, err = journal.Open(cfg.Journal, params)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := jrnl.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("journal: %w", cerr))
			}
		}()
		recorders = append(recorders, jrnl)
		logger.Info("journal opened", zap.String("path", cfg.Journal), zap.String("run_id", jrnl.RunID()))
	}

	var wrapped runner.Invoker = &command.Invoker{
		Cmd:      cmd,
		Params:   params,
		ExtraEnv: provider.EnvFunc(),
	}
	if provider.Enabled() {
		wrapped = tracing.WrapInvoker(wrapped, provider.Tracer())
	}
	if cfg.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, newRetryPolicy(cfg.Retries, cfg.RetryDelay))
	}
	if cfg.LogFailures {
		wrapped = runner.WithLogging(wrapped, &zapFailureLogger{logger: logger})
	}
	wrapped = runner.WithRecorder(wrapped, recorders...)

	r := runner.New(runner.Options{
		Plan:        plan,
		Invoker:     wrapped,
		MinInterval: cfg.MinInterval,
	})

	sweepCtx := ctx
	if provider.Enabled() {
		sweepCtx = tracing.ExtractEnv(sweepCtx, os.Environ())
	}
	sweepCtx, span := tracing.StartSweepSpan(sweepCtx, provider.Tracer(), plan, cfg.Program)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	logger.Info("sweep started",
		zap.String("program", cfg.Program),
		zap.String("outer", plan.Outer.String()),
		zap.String("inner", plan.Inner.String()),
		zap.Int("invocations", plan.Len()),
	)

	collector.Start()
	result := r.Run(sweepCtx)
	stats := collector.Stats(result.Duration)

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}
	tracing.EndSpan(span, nil)

	fields := []zap.Field{
		zap.Int64("invocations", result.Total),
		zap.Int64("failures", result.Failures),
		zap.Duration("elapsed", result.Duration),
	}
	if result.Interrupted {
		logger.Warn("sweep interrupted", fields...)
	} else {
		logger.Info("sweep finished", fields...)
	}

	if cfg.JSONOutput {
		return output.PrintJSONReport(stdout, stats)
	}
	output.PrintReport(stdout, stats)
	return nil
}

type zapFailureLogger struct {
	logger *zap.Logger
}

func (l *zapFailureLogger) LogFailure(trial sweep.Trial, err error) {
	if err == nil {
		return
	}
	l.logger.Warn("invocation failed",
		zap.Int("outer", trial.Outer),
		zap.Int("inner", trial.Inner),
		zap.Int("exit_code", command.ExitCode(err)),
		zap.Error(err),
	)
}

// newRetryPolicy retries failed invocations after a fixed delay. Start
// failures and cancellation are never retried.
func newRetryPolicy(retries int, delay time.Duration) runner.RetryPolicy {
	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		Delay:       delay,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			var startErr *command.StartError
			return !errors.As(err, &startErr)
		},
	}
}
