package audit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// eventCounter is the OTLP emission point for the audit side channel:
// every sealed event increments it, tagged by kind and severity, so a
// collector scraping the process's meter provider sees chain activity
// without reading the chain itself. It falls back to the no-op meter
// when no MeterProvider has been configured, so audit works the same
// whether or not metrics are wired up downstream.
var eventCounter metric.Int64Counter

func init() {
	var err error
	eventCounter, err = otel.Meter("svccore/audit").
		Int64Counter("audit_events_total", metric.WithDescription("audit events sealed into the chain, by kind and severity"))
	if err != nil {
		eventCounter, _ = otel.Meter("svccore/audit").Int64Counter("audit_events_total")
	}
}

func recordEventMetric(ctx context.Context, event Event) {
	eventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", event.Kind.String()),
		attribute.String("severity", event.Severity.String()),
		attribute.String("service", event.ServiceName),
	))
}
