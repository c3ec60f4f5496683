// Package metrics exposes Prometheus collectors for the pipelinewatch service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal                 *prometheus.CounterVec
	scanDurationSeconds        prometheus.Histogram
	scanSkippedTicksTotal      prometheus.Counter
	pipelineScansTotal         *prometheus.CounterVec
	stageErrorsTotal           *prometheus.CounterVec
	stageCount                 *prometheus.GaugeVec
	stagePercent               *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipelinewatch_scans_total",
				Help: "Total number of scan cycles, labeled by result.",
			},
			[]string{"result"},
		)

		scanDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipelinewatch_scan_duration_seconds",
				Help:    "Histogram of full scan cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
			},
		)

		scanSkippedTicksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipelinewatch_scan_skipped_ticks_total",
				Help: "Total number of scheduler ticks dropped because a scan was still running.",
			},
		)

		pipelineScansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipelinewatch_pipeline_scans_total",
				Help: "Total number of per-pipeline scans, labeled by pipeline and result.",
			},
			[]string{"pipeline", "result"},
		)

		stageErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipelinewatch_stage_errors_total",
				Help: "Total number of failed stage counts, labeled by pipeline and stage.",
			},
			[]string{"pipeline", "stage"},
		)

		stageCount = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipelinewatch_stage_count",
				Help: "Artifact count for the most recent scanned date, labeled by pipeline and stage.",
			},
			[]string{"pipeline", "stage"},
		)

		stagePercent = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipelinewatch_stage_percent",
				Help: "Completion ratio against the parent stage for the most recent scanned date.",
			},
			[]string{"pipeline", "stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipelinewatch_http_requests_total",
				Help: "Report service requests by method, route pattern and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipelinewatch_http_request_duration_seconds",
				Help:    "Report service latency by method and route pattern.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScan records a completed scan cycle.
func ObserveScan(result string, duration time.Duration) {
	Init()
	scansTotal.WithLabelValues(result).Inc()
	scanDurationSeconds.Observe(duration.Seconds())
}

// ObserveSkippedTick counts a tick dropped because a scan overran the interval.
func ObserveSkippedTick() {
	Init()
	scanSkippedTicksTotal.Inc()
}

// ObservePipelineScan records the outcome of one pipeline's scan.
func ObservePipelineScan(pipeline, result string) {
	Init()
	pipelineScansTotal.WithLabelValues(pipeline, result).Inc()
}

// ObserveStageError counts a failed stage count.
func ObserveStageError(pipeline, stage string) {
	Init()
	stageErrorsTotal.WithLabelValues(pipeline, stage).Inc()
}

// SetStageCount publishes the latest count for a stage.
func SetStageCount(pipeline, stage string, count int64) {
	Init()
	stageCount.WithLabelValues(pipeline, stage).Set(float64(count))
}

// SetStagePercent publishes the latest completion ratio for a stage.
func SetStagePercent(pipeline, stage string, ratio float64) {
	Init()
	stagePercent.WithLabelValues(pipeline, stage).Set(ratio)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
