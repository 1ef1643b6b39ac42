// Package metrics exposes dispatcher and pipeline metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const namespace = "autogram"

type Metrics struct {
	registry *prometheus.Registry

	runs           prometheus.Counter
	scheduled      prometheus.Counter
	abandoned      prometheus.Counter
	moduleErrors   *prometheus.CounterVec
	items          *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRunSuccess prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_runs_total",
			Help: "Dispatch ticks completed.",
		}),
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_scheduled_total",
			Help: "Due items launched by dispatch ticks.",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_abandoned_total",
			Help: "Items still running when the tick deadline elapsed.",
		}),
		moduleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "module_query_errors_total",
			Help: "Failed due-item queries per module.",
		}, []string{"module"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_total",
			Help: "Items finished per module and terminal status.",
		}, []string{"module", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"module", "stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stage_failures_total",
			Help: "Pipeline stage failures.",
		}, []string{"module", "stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "dispatch_run_duration_seconds",
			Help:    "Wall-clock duration of a dispatch tick.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_success_ratio",
			Help: "Success rate of the most recent tick that scheduled items.",
		}),
	}
	reg.MustRegister(m.runs, m.scheduled, m.abandoned, m.moduleErrors, m.items,
		m.stageDuration, m.stageFailures, m.runDuration, m.lastRunSuccess)
	return m
}

// ObserveStage records one stage attempt
func (m *Metrics) ObserveStage(moduleID string, stage model.Stage, took time.Duration, err error) {
	m.stageDuration.WithLabelValues(moduleID, string(stage)).Observe(took.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(moduleID, string(stage)).Inc()
	}
}

// ObserveItem records a finished item
func (m *Metrics) ObserveItem(moduleID string, status model.RunStatus) {
	m.items.WithLabelValues(moduleID, string(status)).Inc()
}

// RunCompleted records a tick summary
func (m *Metrics) RunCompleted(run *model.PipelineRun) {
	m.runs.Inc()
	m.scheduled.Add(float64(run.TotalScheduled))
	m.abandoned.Add(float64(run.TotalAbandoned))
	for _, e := range run.ModuleErrors {
		m.moduleErrors.WithLabelValues(e.ModuleID).Inc()
	}
	m.runDuration.Observe(run.EndTime.Sub(run.StartTime).Seconds())
	if run.TotalScheduled > 0 {
		m.lastRunSuccess.Set(run.SuccessRate())
	}
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
