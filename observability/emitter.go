package observability

import (
	"marketd/core/events"
	"marketd/observability/metrics"
)

// MetricsEmitter forwards every emitted settlement event into the prometheus
// registry. It implements events.Emitter and is usually combined with other
// sinks through events.MultiEmitter.
type MetricsEmitter struct {
	registry *metrics.MarketMetrics
}

// NewMetricsEmitter wires the shared market metrics registry.
func NewMetricsEmitter() *MetricsEmitter {
	return &MetricsEmitter{registry: metrics.Market()}
}

// Emit records the event type on the counters.
func (m *MetricsEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.registry.ObserveEvent(evt.EventType())
}
