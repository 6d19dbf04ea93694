// Package config provides configuration loading and validation for cosweep.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/cosweep/internal/environ"
	"github.com/torosent/cosweep/internal/sweep"
)

// Defaults reproduce the original co-simulation sweep.
const (
	DefaultInterpreter = "python3"
	DefaultProgram     = "run_co-sim_thread.py"
	DefaultOutputDir   = "./test_sim/"
	DefaultLowerBound  = 0.0
	DefaultUpperBound  = 1000.0
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	PythonPathVar = "PYTHONPATH"
	PathVar       = "PATH"
)

type Config struct {
	Interpreter string        `mapstructure:"interpreter" yaml:"interpreter"`
	Program     string        `mapstructure:"program" yaml:"program"`
	WorkDir     string        `mapstructure:"workdir" yaml:"workdir,omitempty"`
	OutputDir   string        `mapstructure:"output_dir" yaml:"output_dir"`
	Outer       sweep.Range   `mapstructure:"outer" yaml:"outer"`
	Inner       sweep.Range   `mapstructure:"inner" yaml:"inner"`
	LowerBound  float64       `mapstructure:"lower_bound" yaml:"lower_bound"`
	UpperBound  float64       `mapstructure:"upper_bound" yaml:"upper_bound"`
	Env         EnvConfig     `mapstructure:"env" yaml:"env"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval,omitempty"`
	Retries     int           `mapstructure:"retries" yaml:"retries,omitempty"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay,omitempty"`
	DryRun      bool          `mapstructure:"dry_run" yaml:"dry_run,omitempty"`
	JSONOutput  bool          `mapstructure:"json_output" yaml:"json_output,omitempty"`
	Progress    bool          `mapstructure:"progress" yaml:"progress,omitempty"`
	LogFailures bool          `mapstructure:"log_failures" yaml:"log_failures"`
	Journal     string        `mapstructure:"journal" yaml:"journal,omitempty"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string        `mapstructure:"log_format" yaml:"log_format"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing,omitempty"`
	PrintConfig bool          `mapstructure:"-" yaml:"-"`
	ConfigFile  string        `mapstructure:"-" yaml:"-"`
}

// EnvConfig lists the search-path entries appended to the inherited
// environment before the first invocation.
type EnvConfig struct {
	PythonPath []string `mapstructure:"python_path" yaml:"python_path"`
	Path       []string `mapstructure:"path" yaml:"path"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"` // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate,omitempty"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure,omitempty"`
	Propagate   *bool   `mapstructure:"propagate" yaml:"propagate,omitempty"` // nil means follow Enabled
}

// Enabled reports whether an OTLP endpoint is configured, directly or via
// OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context is passed to invoked programs.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate && t.Enabled()
	}
	return t.Enabled()
}

// Default returns the configuration of the original sweep: outer 1..10,
// inner 0..10, bounds 0.0 and 1000.0.
func Default() *Config {
	return &Config{
		Interpreter: DefaultInterpreter,
		Program:     DefaultProgram,
		OutputDir:   DefaultOutputDir,
		Outer:       sweep.Range{From: 1, To: 10},
		Inner:       sweep.Range{From: 0, To: 10},
		LowerBound:  DefaultLowerBound,
		UpperBound:  DefaultUpperBound,
		Env: EnvConfig{
			PythonPath: []string{"."},
			Path:       []string{"."},
		},
		LogFailures: true,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Tracing:     TracingConfig{SampleRate: 1.0},
	}
}

// Plan returns the sweep grid described by the configuration.
func (c Config) Plan() sweep.Plan {
	return sweep.Plan{Outer: c.Outer, Inner: c.Inner}
}

// Params returns the literals passed to every invocation.
func (c Config) Params() sweep.Params {
	return sweep.Params{OutputDir: c.OutputDir, Lower: c.LowerBound, Upper: c.UpperBound}
}

// Extensions returns the search-path extensions in the order they are applied.
func (c Config) Extensions() []environ.Extension {
	return []environ.Extension{
		{Key: PythonPathVar, Paths: c.Env.PythonPath},
		{Key: PathVar, Paths: c.Env.Path},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Program) == "" {
		issues = append(issues, "program is required (use --help for usage information)")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		issues = append(issues, "output_dir is required")
	}
	if err := c.Outer.Validate(); err != nil {
		issues = append(issues, "outer: "+err.Error())
	}
	if err := c.Inner.Validate(); err != nil {
		issues = append(issues, "inner: "+err.Error())
	}
	if c.LowerBound > c.UpperBound {
		issues = append(issues, fmt.Sprintf("lower_bound (%g) must be <= upper_bound (%g)", c.LowerBound, c.UpperBound))
	}
	if c.MinInterval < 0 {
		issues = append(issues, "min_interval must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.RetryDelay < 0 {
		issues = append(issues, "retry_delay must be >= 0")
	}
	if c.Progress && c.JSONOutput {
		issues = append(issues, "progress and json-output are mutually exclusive")
	}
	if c.DryRun && strings.TrimSpace(c.Journal) != "" {
		issues = append(issues, "dry-run does not write a journal")
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format %q must be console or json", c.LogFormat))
	}

	issues = append(issues, c.Tracing.Issues()...)

	// Retrying changes the observable behaviour of the sweep.
	if c.Retries > 0 {
		fmt.Fprintf(os.Stderr, "WARNING: retries enabled (%d): a failed invocation will be re-run before the sweep moves on.\n", c.Retries)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Issues lists the problems that keep t from producing an exporter.
func (t TracingConfig) Issues() []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
