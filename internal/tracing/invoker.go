package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/cosweep/internal/command"
	"github.com/torosent/cosweep/internal/runner"
	"github.com/torosent/cosweep/internal/sweep"
)

type tracingInvoker struct {
	inner  runner.Invoker
	tracer trace.Tracer
}

// WrapInvoker starts a span around every invocation. A nil tracer returns
// inv unchanged.
func WrapInvoker(inv runner.Invoker, tracer trace.Tracer) runner.Invoker {
	if tracer == nil {
		return inv
	}
	return &tracingInvoker{inner: inv, tracer: tracer}
}

func (t *tracingInvoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	ctx, span := StartInvocationSpan(ctx, t.tracer, trial)
	err := t.inner.Invoke(ctx, trial)
	EndSpan(span, err, attribute.Int("cosweep.exit_code", command.ExitCode(err)))
	return err
}
