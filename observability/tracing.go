package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/courier"

// Tracer provides OpenTelemetry tracing for Courier.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Courier tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartAttemptSpan starts a new span for a delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, webhookID, subscriptionID string, attemptNumber int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "courier.delivery",
		trace.WithAttributes(
			attribute.String("courier.webhook_id", webhookID),
			attribute.String("courier.subscription_id", subscriptionID),
			attribute.Int("courier.attempt_number", attemptNumber),
		),
	)
}

// EndAttemptSpan ends a delivery attempt span with result attributes.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
	)
	if err != "" {
		span.SetAttributes(attribute.String("courier.error", err))
	}
	span.End()
}
