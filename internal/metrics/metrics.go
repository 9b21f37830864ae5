package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenshot_search_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screenshot_search_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenshot_search_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenshot_search_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screenshot_search_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenshot_search_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screenshot_search_scan_runs_total",
			Help: "Total number of scan runs",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenshot_search_scan_running",
			Help: "Whether a scan is currently running (1) or not (0)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenshot_search_scan_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenshot_search_scan_last_run_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)

	ScanFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenshot_search_scan_files_total",
			Help: "Files handled by scans, by outcome",
		},
		[]string{"outcome"}, // "indexed", "skipped", "failed"
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screenshot_search_scan_errors_total",
			Help: "Total number of scan-level errors",
		},
	)
)

// OCR metrics
var (
	OCRExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenshot_search_ocr_extractions_total",
			Help: "Total number of OCR extraction attempts",
		},
		[]string{"status"}, // "success", "error"
	)

	OCRExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenshot_search_ocr_extraction_duration_seconds",
			Help:    "OCR extraction duration per image in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenshot_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenshot_search_query_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
	)
)
