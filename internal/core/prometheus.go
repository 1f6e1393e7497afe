package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"genesim/pkg/domain"
)

// PrometheusRecorder exports phase timings and population figures to a
// Prometheus registry.
type PrometheusRecorder struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	eventsTotal     *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	populationGauge prometheus.Gauge
	cyclesCompleted prometheus.Counter
}

// NewPrometheusRecorder creates the collectors and registers them on registry.
func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	m := &PrometheusRecorder{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genesim_operations_total",
				Help: "Total number of simulation operations by outcome",
			},
			[]string{"operation", "status"},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genesim_operation_duration_seconds",
				Help:    "Time taken by simulation phases and runs",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"operation"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genesim_population_events_total",
				Help: "Total number of population events",
			},
			[]string{"event"}, // event: birth, death, homed, transfer
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genesim_rule_violations_total",
				Help: "Total number of rule violations",
			},
			[]string{"rule", "severity"},
		),
		populationGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genesim_population_size",
			Help: "Working population size at the end of the last cycle",
		}),
		cyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genesim_cycles_total",
			Help: "Total number of completed cycles",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *PrometheusRecorder) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.durationSeconds.Describe(ch)
	m.eventsTotal.Describe(ch)
	m.violationsTotal.Describe(ch)
	m.populationGauge.Describe(ch)
	m.cyclesCompleted.Describe(ch)
}

// Collect implements the Collector interface
func (m *PrometheusRecorder) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.durationSeconds.Collect(ch)
	m.eventsTotal.Collect(ch)
	m.violationsTotal.Collect(ch)
	m.populationGauge.Collect(ch)
	m.cyclesCompleted.Collect(ch)
}

// Observe implements MetricsRecorder.
func (m *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.durationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCycle implements CycleMetrics.
func (m *PrometheusRecorder) ObserveCycle(stats domain.CycleStats, violations domain.Result) {
	m.cyclesCompleted.Inc()
	m.eventsTotal.WithLabelValues("birth").Add(float64(stats.Births))
	m.eventsTotal.WithLabelValues("death").Add(float64(stats.Deaths))
	m.eventsTotal.WithLabelValues("homed").Add(float64(stats.HomedOut))
	m.eventsTotal.WithLabelValues("transfer").Add(float64(stats.Transfers))
	m.populationGauge.Set(float64(stats.PopulationSize))
	for _, v := range violations.Violations {
		m.violationsTotal.WithLabelValues(v.Rule, string(v.Severity)).Inc()
	}
}
