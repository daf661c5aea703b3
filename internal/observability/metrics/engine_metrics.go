// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config labels every engine metric with service identity.
type Config struct {
	ServiceName string
	Environment string
}

type EngineMetrics struct {
	envelopesProcessed *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	handlerFailures    *prometheus.CounterVec
	repeatedFailures   *prometheus.CounterVec
	dispatchDuration   prometheus.Histogram
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "relay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	envelopesProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "relay_envelopes_processed_total",
			Help:        "Change envelopes consumed, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // ok | parse_error | dispatch_error
	)

	eventsPublished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "relay_events_published_total",
			Help:        "Domain events published, by topic.",
			ConstLabels: constLabels,
		},
		[]string{"topic"},
	)

	handlerFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "relay_handler_failures_total",
			Help:        "Rule handler failures, by table.",
			ConstLabels: constLabels,
		},
		[]string{"table"},
	)

	repeatedFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "relay_repeated_failures_total",
			Help:        "Envelopes that exceeded the retry warning threshold, by topic.",
			ConstLabels: constLabels,
		},
		[]string{"topic"},
	)

	dispatchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "relay_dispatch_duration_seconds",
			Help:        "Wall time spent dispatching one envelope.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		envelopesProcessed,
		eventsPublished,
		handlerFailures,
		repeatedFailures,
		dispatchDuration,
	)

	return &EngineMetrics{
		envelopesProcessed: envelopesProcessed,
		eventsPublished:    eventsPublished,
		handlerFailures:    handlerFailures,
		repeatedFailures:   repeatedFailures,
		dispatchDuration:   dispatchDuration,
	}
}

func (m *EngineMetrics) IncEnvelope(result string) {
	if m == nil {
		return
	}
	m.envelopesProcessed.WithLabelValues(result).Inc()
}

func (m *EngineMetrics) IncEventPublished(topic string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic).Inc()
}

func (m *EngineMetrics) IncHandlerFailure(table string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(table).Inc()
}

func (m *EngineMetrics) IncRepeatedFailure(topic string) {
	if m == nil {
		return
	}
	m.repeatedFailures.WithLabelValues(topic).Inc()
}

func (m *EngineMetrics) ObserveDispatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Observe(elapsed.Seconds())
}
