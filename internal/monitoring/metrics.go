// Package monitoring exposes Prometheus metrics for pipeline runs. Metrics
// are rank-local; aggregation across the pool is left to the scraper.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the pipeline core.
type Metrics struct {
	// Stage metrics
	StagesRun     prometheus.Counter
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// Slicing metrics
	BatchesGrouped  prometheus.Counter
	FramesProcessed prometheus.Counter

	// Dataset metrics
	DatasetsLive    prometheus.Gauge
	DatasetsRemoved prometheus.Counter

	// Run metrics
	RunsCompleted prometheus.Counter
	BarrierWaits  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on its own registry, so parallel
// test instances never collide on the default registerer.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		StagesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_stages_run_total",
			Help: "Total number of stage executions",
		}),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tomoflow_stage_duration_seconds",
				Help:    "Stage execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		StageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomoflow_stage_errors_total",
				Help: "Total number of stage failures",
			},
			[]string{"stage"},
		),
		BatchesGrouped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_batches_grouped_total",
			Help: "Total number of work batches produced by the grouper",
		}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_frames_processed_total",
			Help: "Total number of frames processed by this rank",
		}),
		DatasetsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tomoflow_datasets_live",
			Help: "Number of datasets currently held by the registry",
		}),
		DatasetsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_datasets_removed_total",
			Help: "Total number of datasets removed at merge or finalize",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_runs_completed_total",
			Help: "Total number of completed pipeline runs",
		}),
		BarrierWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tomoflow_barrier_waits_total",
			Help: "Total number of collective barrier entries",
		}),
	}

	reg.MustRegister(
		m.StagesRun, m.StageDuration, m.StageErrors,
		m.BatchesGrouped, m.FramesProcessed,
		m.DatasetsLive, m.DatasetsRemoved,
		m.RunsCompleted, m.BarrierWaits,
	)
	return m
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StagesRun.Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}
