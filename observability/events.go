package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stakepool/core/events"
	"stakepool/core/types"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured account events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// MetricsEmitter feeds committed events into the prometheus registries.
type MetricsEmitter struct{}

func (MetricsEmitter) Emit(ev events.Event) {
	if ev == nil {
		return
	}
	Events().Record(ev.EventType())
	rendered, ok := ev.(events.Rendered)
	if !ok || rendered.Event == nil {
		return
	}
	if rendered.Type == events.TypePoolLoanRepaid {
		recordRepayment(rendered.Event)
	}
}

func recordRepayment(ev *types.Event) {
	if fee, ok := ev.Amount("governanceFee"); ok {
		Pool().AddGovernanceFee(fee)
	}
	if ev.Attributes["loss"] != "true" {
		return
	}
	if loss, ok := ev.Amount("profit"); ok {
		Pool().AddLoss(loss)
	}
}
