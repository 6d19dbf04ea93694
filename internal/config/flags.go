package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cosweep",
		Short:         "Run a co-simulation program over a grid of trial and iteration indices",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Program flags
	flags.String("interpreter", DefaultInterpreter, "Interpreter used to run the program (empty runs it directly)")
	flags.String("program", DefaultProgram, "Path of the co-simulation program")
	flags.String("workdir", "", "Working directory for invocations and relative search paths")

	// Sweep flags
	flags.String("output-dir", DefaultOutputDir, "Output directory passed as the first argument")
	flags.Int("outer-from", 1, "First outer index (inclusive)")
	flags.Int("outer-to", 10, "Last outer index (inclusive)")
	flags.Int("inner-from", 0, "First inner (trail) index (inclusive)")
	flags.Int("inner-to", 10, "Last inner (trail) index (inclusive)")
	flags.Float64("lower-bound", DefaultLowerBound, "Lower time bound passed to every invocation")
	flags.Float64("upper-bound", DefaultUpperBound, "Upper time bound passed to every invocation")

	// Environment flags
	flags.StringSlice("python-path", []string{"."}, "Entry appended to PYTHONPATH (repeatable)")
	flags.StringSlice("path", []string{"."}, "Entry appended to PATH (repeatable)")

	// Execution flags
	flags.Duration("min-interval", 0, "Minimum time between the starts of consecutive invocations")
	flags.Int("retries", 0, "Re-run a failed invocation up to this many times")
	flags.Duration("retry-delay", 0, "Delay between retries of a failed invocation")
	flags.Bool("dry-run", false, "Print the command lines without running them")

	// Output flags
	flags.Bool("json-output", false, "Emit the summary as JSON")
	flags.Bool("progress", false, "Show a progress line on stderr while the sweep runs")
	flags.Bool("log-failures", true, "Log each failed invocation")
	flags.String("journal", "", "Append one JSON line per invocation to this file")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", DefaultLogFormat, "Log format: console or json")
	flags.Bool("print-config", false, "Print the effective configuration as YAML and exit")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for invocation spans (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported with spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of sweeps to sample (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", true, "Pass TRACEPARENT to invoked programs")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"interpreter":          &cfg.Interpreter,
		"program":              &cfg.Program,
		"workdir":              &cfg.WorkDir,
		"output-dir":           &cfg.OutputDir,
		"journal":              &cfg.Journal,
		"log-level":            &cfg.LogLevel,
		"log-format":           &cfg.LogFormat,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range stringFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	intFlags := map[string]*int{
		"outer-from": &cfg.Outer.From,
		"outer-to":   &cfg.Outer.To,
		"inner-from": &cfg.Inner.From,
		"inner-to":   &cfg.Inner.To,
		"retries":    &cfg.Retries,
	}
	for name, dst := range intFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	floatFlags := map[string]*float64{
		"lower-bound":         &cfg.LowerBound,
		"upper-bound":         &cfg.UpperBound,
		"tracing-sample-rate": &cfg.Tracing.SampleRate,
	}
	for name, dst := range floatFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	boolFlags := map[string]*bool{
		"dry-run":          &cfg.DryRun,
		"json-output":      &cfg.JSONOutput,
		"progress":         &cfg.Progress,
		"log-failures":     &cfg.LogFailures,
		"print-config":     &cfg.PrintConfig,
		"tracing-insecure": &cfg.Tracing.Insecure,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	durationFlags := map[string]*time.Duration{
		"min-interval": &cfg.MinInterval,
		"retry-delay":  &cfg.RetryDelay,
	}
	for name, dst := range durationFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("python-path") {
		val, err := fs.GetStringSlice("python-path")
		if err != nil {
			return err
		}
		cfg.Env.PythonPath = val
	}
	if fs.Changed("path") {
		val, err := fs.GetStringSlice("path")
		if err != nil {
			return err
		}
		cfg.Env.Path = val
	}

	return nil
}
