package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/cosweep/internal/sweep"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// With no arguments at all it returns the default sweep.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(extra, " "))
	}

	configPath := strings.TrimSpace(flagSet.Lookup("config").Value.String())
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Interpreter = strings.TrimSpace(cfg.Interpreter)
	cfg.Program = strings.TrimSpace(cfg.Program)
	cfg.WorkDir = strings.TrimSpace(cfg.WorkDir)
	cfg.Journal = strings.TrimSpace(cfg.Journal)
	cfg.Env.PythonPath = trimEntries(cfg.Env.PythonPath)
	cfg.Env.Path = trimEntries(cfg.Env.Path)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringSettings := []struct {
		name string
		keys []string
		dst  *string
	}{
		{"interpreter", []string{"interpreter"}, &cfg.Interpreter},
		{"program", []string{"program"}, &cfg.Program},
		{"workdir", []string{"workdir", "work_dir", "work-dir"}, &cfg.WorkDir},
		{"output_dir", []string{"outputdir", "output_dir", "output-dir"}, &cfg.OutputDir},
		{"journal", []string{"journal"}, &cfg.Journal},
		{"log_level", []string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
		{"log_format", []string{"logformat", "log_format", "log-format"}, &cfg.LogFormat},
	}
	for _, s := range stringSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "outer"); ok {
		r, err := parseRange(raw, cfg.Outer)
		if err != nil {
			return fmt.Errorf("outer: %w", err)
		}
		cfg.Outer = r
	}

	if raw, ok := lookupSetting(settings, "inner"); ok {
		r, err := parseRange(raw, cfg.Inner)
		if err != nil {
			return fmt.Errorf("inner: %w", err)
		}
		cfg.Inner = r
	}

	if raw, ok := lookupSetting(settings, "lowerbound", "lower_bound", "lower-bound"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("lower_bound: %w", err)
		}
		cfg.LowerBound = val
	}

	if raw, ok := lookupSetting(settings, "upperbound", "upper_bound", "upper-bound"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("upper_bound: %w", err)
		}
		cfg.UpperBound = val
	}

	if raw, ok := lookupSetting(settings, "env"); ok {
		env, err := parseEnvConfig(raw, cfg.Env)
		if err != nil {
			return fmt.Errorf("env: %w", err)
		}
		cfg.Env = env
	}

	if raw, ok := lookupSetting(settings, "mininterval", "min_interval", "min-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("min_interval: %w", err)
		}
		cfg.MinInterval = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "retrydelay", "retry_delay", "retry-delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retry_delay: %w", err)
		}
		cfg.RetryDelay = dur
	}

	boolSettings := []struct {
		name string
		keys []string
		dst  *bool
	}{
		{"dry_run", []string{"dryrun", "dry_run", "dry-run"}, &cfg.DryRun},
		{"json_output", []string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{"progress", []string{"progress"}, &cfg.Progress},
		{"log_failures", []string{"logfailures", "log_failures", "log-failures"}, &cfg.LogFailures},
	}
	for _, s := range boolSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseRange(value interface{}, base sweep.Range) (sweep.Range, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return sweep.Range{}, err
	}
	r := base
	if raw, ok := lookupSetting(entry, "from"); ok {
		val, err := asInt(raw)
		if err != nil {
			return sweep.Range{}, fmt.Errorf("from: %w", err)
		}
		r.From = val
	}
	if raw, ok := lookupSetting(entry, "to"); ok {
		val, err := asInt(raw)
		if err != nil {
			return sweep.Range{}, fmt.Errorf("to: %w", err)
		}
		r.To = val
	}
	return r, nil
}

func parseEnvConfig(value interface{}, base EnvConfig) (EnvConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return EnvConfig{}, err
	}
	env := base
	if raw, ok := lookupSetting(entry, "pythonpath", "python_path", "python-path"); ok {
		paths, err := asStringSlice(raw)
		if err != nil {
			return EnvConfig{}, fmt.Errorf("python_path: %w", err)
		}
		env.PythonPath = paths
	}
	if raw, ok := lookupSetting(entry, "path"); ok {
		paths, err := asStringSlice(raw)
		if err != nil {
			return EnvConfig{}, fmt.Errorf("path: %w", err)
		}
		env.Path = paths
	}
	return env, nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tracing := base
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = &val
	}
	return tracing, nil
}

func trimEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
