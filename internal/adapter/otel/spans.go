package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "flourisha"

// StartAnalyticsSpan starts a span for an analytics computation (objective progress,
// at-risk detection, overview, energy summary, review queue).
func StartAnalyticsSpan(ctx context.Context, op, tenantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analytics."+op,
		trace.WithAttributes(
			attribute.String("analytics.op", op),
			attribute.String("tenant.id", tenantID),
		),
	)
}

// StartMutationSpan starts a span for a write to a domain entity.
func StartMutationSpan(ctx context.Context, entity, tenantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "mutation."+entity,
		trace.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("tenant.id", tenantID),
		),
	)
}
