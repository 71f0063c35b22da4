package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	coreevents "unitmint/core/events"
	"unitmint/core/types"
	"unitmint/native/launch"
)

type eventMetrics struct {
	deposits *prometheus.CounterVec
	mints    *prometheus.CounterVec
	forgos   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured launch events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unitmint",
				Subsystem: "events",
				Name:      "deposits_total",
				Help:      "Count of deposit operations segmented by token.",
			}, []string{"token"}),
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unitmint",
				Subsystem: "events",
				Name:      "mints_total",
				Help:      "Count of mint settlements segmented by token.",
			}, []string{"token"}),
			forgos: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unitmint",
				Subsystem: "events",
				Name:      "forgos_total",
				Help:      "Count of forgo settlements segmented by token.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(eventRegistry.deposits, eventRegistry.mints, eventRegistry.forgos)
	})
	return eventRegistry
}

// RecordDeposit increments the deposit counter for the supplied token ticker.
func (m *eventMetrics) RecordDeposit(token string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(normalizeToken(token)).Inc()
}

// RecordMint increments the mint counter for the supplied token ticker.
func (m *eventMetrics) RecordMint(token string) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(normalizeToken(token)).Inc()
}

// RecordForgo increments the forgo counter for the supplied token ticker.
func (m *eventMetrics) RecordForgo(token string) {
	if m == nil {
		return
	}
	m.forgos.WithLabelValues(normalizeToken(token)).Inc()
}

func normalizeToken(token string) string {
	normalized := strings.TrimSpace(strings.ToUpper(token))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	return normalized
}

// MetricsEmitter records launch engine events into the prometheus registry.
// It satisfies the core events Emitter interface.
type MetricsEmitter struct{}

// Emit implements the Emitter interface.
func (MetricsEmitter) Emit(event coreevents.Event) {
	carrier, ok := event.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	evt := carrier.Event()
	if evt == nil {
		return
	}
	token := evt.Attributes["token"]
	switch evt.Type {
	case launch.EventTypeDeposited:
		Events().RecordDeposit(token)
	case launch.EventTypeMinted:
		Events().RecordMint(token)
	case launch.EventTypeForgone:
		Events().RecordForgo(token)
	}
}
