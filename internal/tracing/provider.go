// Package tracing provides OpenTelemetry spans for a sweep and carries the
// trace context into the environment of every invoked program.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/cosweep/internal/config"
)

const (
	instrumentationName = "github.com/torosent/cosweep"
	defaultServiceName  = "cosweep"
)

// Provider owns the exporter pipeline for one sweep. The zero value, and a
// nil *Provider, export nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds a Provider from cfg. Tracing stays off unless an endpoint is
// set in cfg or in OTEL_EXPORTER_OTLP_ENDPOINT.
func Init(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if issues := cfg.Issues(); len(issues) > 0 {
		return nil, fmt.Errorf("tracing: %s", strings.Join(issues, "; "))
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName(cfg))),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg, endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	// A sweep launched from a traced parent follows the parent's sampling
	// decision (see ExtractEnv).
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Tracer returns the sweep tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether invoked programs receive TRACEPARENT.
func (p *Provider) ShouldPropagate() bool {
	return p.Enabled() && p.propagate
}

// EnvFunc returns the per-invocation environment hook for
// command.Invoker.ExtraEnv, or nil when trace context stays in the driver.
func (p *Provider) EnvFunc() func(ctx context.Context) []string {
	if !p.ShouldPropagate() {
		return nil
	}
	return InjectEnv
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func serviceName(cfg config.TracingConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return defaultServiceName
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func newExporter(ctx context.Context, cfg config.TracingConfig, endpoint string) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
	}
}
