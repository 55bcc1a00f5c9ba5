// Package observability provides metric and tracing instrumentation for
// the delivery engine.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Courier, backed by any go-utils
// MetricFactory.
type Metrics struct {
	IngestedTotal       gu.Counter
	DeliveriesTotal     gu.Counter
	DeliveryLatency     gu.Histogram
	PendingWebhooks     gu.Gauge
	AttemptsPurgedTotal gu.Counter
}

// NewMetrics creates Courier metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		IngestedTotal:       factory.Counter("courier_ingested_total"),
		DeliveriesTotal:     factory.Counter("courier_deliveries_total"),
		DeliveryLatency:     factory.Histogram("courier_delivery_latency_seconds"),
		PendingWebhooks:     factory.Gauge("courier_pending_webhooks"),
		AttemptsPurgedTotal: factory.Counter("courier_attempts_purged_total"),
	}
}

// RecordDelivery records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordDelivery(outcome string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
