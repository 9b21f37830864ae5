package metrics

import "testing"

// TestInitializeMetrics verifies metric pre-population does not panic
// and that the label combinations are valid.
func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	// Calling twice must be safe.
	InitializeMetrics()
}

func TestMetricUpdates(t *testing.T) {
	ScanRunsTotal.Inc()
	ScanIsRunning.Set(1)
	ScanIsRunning.Set(0)
	ScanFilesTotal.WithLabelValues("indexed").Inc()
	OCRExtractionsTotal.WithLabelValues("success").Inc()
	OCRExtractionDuration.Observe(0.5)
	SearchQueriesTotal.WithLabelValues("error").Inc()
	SearchDuration.Observe(0.01)
	DBQueryTotal.WithLabelValues("upsert", "success").Inc()
	DBQueryDuration.WithLabelValues("upsert").Observe(0.002)
	HTTPRequestsTotal.WithLabelValues("GET", "/api/search", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/search").Observe(0.003)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	DBConnectionsOpen.Set(2)
}
