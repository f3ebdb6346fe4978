// Package metrics exports grouping run observations to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metrocollab/grouper/internal/domain/grouping"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "grouper"

// PrometheusCollector implements grouping.Metrics backed by Prometheus.
// Collectors are registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	students prometheus.Histogram
	groups   prometheus.Histogram
	warnings *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var _ grouping.Metrics = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector. A nil reg falls back to
// prometheus.DefaultRegisterer, an empty namespace to DefaultNamespace.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "runs_total",
			Help:      "Completed grouping runs by assignment strategy.",
		}, []string{"strategy"})

		p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a grouping run in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"strategy"})

		p.students = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "students",
			Help:      "Number of students per grouping run.",
			Buckets:   []float64{5, 10, 20, 40, 80, 160, 320},
		})

		p.groups = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "groups",
			Help:      "Number of groups per grouping run.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		})

		p.warnings = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "warnings_total",
			Help:      "Warnings attached to grouping results by code.",
		}, []string{"code"})

		p.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "grouping",
			Name:      "failures_total",
			Help:      "Rejected or failed grouping runs by pipeline stage.",
		}, []string{"stage"})

		p.reg.MustRegister(p.runs)
		p.reg.MustRegister(p.duration)
		p.reg.MustRegister(p.students)
		p.reg.MustRegister(p.groups)
		p.reg.MustRegister(p.warnings)
		p.reg.MustRegister(p.failures)
	})
}

// RecordRun observes one completed run.
func (p *PrometheusCollector) RecordRun(strategy string, duration time.Duration, students, groups int) {
	p.ensureRegistered()
	p.runs.WithLabelValues(strategy).Inc()
	p.duration.WithLabelValues(strategy).Observe(duration.Seconds())
	p.students.Observe(float64(students))
	p.groups.Observe(float64(groups))
}

// RecordWarning counts a result warning.
func (p *PrometheusCollector) RecordWarning(code grouping.WarningCode) {
	p.ensureRegistered()
	p.warnings.WithLabelValues(string(code)).Inc()
}

// RecordFailure counts a run rejected at stage.
func (p *PrometheusCollector) RecordFailure(stage string) {
	p.ensureRegistered()
	p.failures.WithLabelValues(stage).Inc()
}

// Handler serves the metrics in g. A nil g uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
