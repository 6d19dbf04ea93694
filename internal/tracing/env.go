package tracing

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// envPropagator moves W3C trace context across the process boundary.
// Header names become upper-case variables: TRACEPARENT, TRACESTATE, BAGGAGE.
var envPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// EnvCarrier is a propagation.TextMapCarrier over process environment
// entries. Keys are stored upper-case.
type EnvCarrier map[string]string

// NewEnvCarrier reads KEY=VALUE entries. Later entries win.
func NewEnvCarrier(env []string) EnvCarrier {
	c := make(EnvCarrier, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		c[strings.ToUpper(k)] = v
	}
	return c
}

func (c EnvCarrier) Get(key string) string {
	return c[strings.ToUpper(key)]
}

func (c EnvCarrier) Set(key, value string) {
	c[strings.ToUpper(key)] = value
}

func (c EnvCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return keys
}

// Environ renders the carrier as KEY=VALUE entries sorted by key.
func (c EnvCarrier) Environ() []string {
	env := make([]string, 0, len(c))
	for k, v := range c {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// InjectEnv returns the trace context of ctx as environment entries for a
// child process, or nil when ctx carries none.
func InjectEnv(ctx context.Context) []string {
	c := EnvCarrier{}
	envPropagator.Inject(ctx, c)
	if len(c) == 0 {
		return nil
	}
	return c.Environ()
}

// ExtractEnv returns ctx with the remote span context found in env, so a
// sweep started by a traced parent joins the parent's trace.
func ExtractEnv(ctx context.Context, env []string) context.Context {
	return envPropagator.Extract(ctx, NewEnvCarrier(env))
}
