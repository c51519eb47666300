// Package metrics exposes pipeline run metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readmission"

// Metrics holds the run-level collectors.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	RecordsProcessed *prometheus.GaugeVec
	RecordsFlagged   *prometheus.GaugeVec
	QualityMetric    *prometheus.GaugeVec
	LastSuccess      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of a complete pipeline run",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		RecordsProcessed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_processed",
			Help:      "Records in the latest silver snapshot by domain",
		}, []string{"domain"}),
		RecordsFlagged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_flagged",
			Help:      "Records carrying a quality flag in the latest run by domain and flag",
		}, []string{"domain", "flag"}),
		QualityMetric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_metric",
			Help:      "Latest gold data quality metrics",
		}, []string{"metric"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful run",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.RecordsProcessed,
		m.RecordsFlagged,
		m.QualityMetric,
		m.LastSuccess,
	)
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(status string, d time.Duration, finishedAt time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	if status == "completed" {
		m.LastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// ObserveDomain replaces the record and flag gauges of one domain.
func (m *Metrics) ObserveDomain(domain string, records int, flags map[string]int) {
	m.RecordsProcessed.WithLabelValues(domain).Set(float64(records))
	m.RecordsFlagged.DeletePartialMatch(prometheus.Labels{"domain": domain})
	for flag, n := range flags {
		m.RecordsFlagged.WithLabelValues(domain, flag).Set(float64(n))
	}
}

func (m *Metrics) ObserveQuality(name string, value float64) {
	m.QualityMetric.WithLabelValues(name).Set(value)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
