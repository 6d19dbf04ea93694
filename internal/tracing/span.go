package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/cosweep/internal/sweep"
)

// StartSweepSpan starts the root span covering a whole sweep.
func StartSweepSpan(ctx context.Context, tracer trace.Tracer, plan sweep.Plan, program string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "sweep",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("cosweep.program", program),
		attribute.Int("cosweep.planned", plan.Len()),
		attribute.String("cosweep.outer_range", plan.Outer.String()),
		attribute.String("cosweep.inner_range", plan.Inner.String()),
	)
	return ctx, span
}

// StartInvocationSpan starts a span for one invocation of the external program.
func StartInvocationSpan(ctx context.Context, tracer trace.Tracer, trial sweep.Trial) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "invoke",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.Int("cosweep.seq", trial.Seq),
		attribute.Int("cosweep.outer", trial.Outer),
		attribute.Int("cosweep.inner", trial.Inner),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
