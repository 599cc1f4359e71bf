package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// pipelineRuns counts finished pipeline runs by platform and outcome.
	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_pipeline_runs_total",
			Help: "Total number of voice pipeline runs by outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// pipelineLat records end-to-end run duration in seconds.
	pipelineLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_pipeline_duration_seconds",
			Help:    "Duration of voice pipeline runs in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"platform"},
	)

	// cacheLookups counts response-cache lookups by result (hit|miss|error).
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_cache_lookups_total",
			Help: "Response cache lookups by result.",
		},
		[]string{"result"},
	)

	// pipelineInflight gauges runs currently held by the dispatcher.
	pipelineInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_pipeline_inflight",
			Help: "Current number of in-flight voice pipeline runs.",
		},
	)
)

func init() {
	prometheus.MustRegister(pipelineRuns, pipelineLat, cacheLookups, pipelineInflight)
}
