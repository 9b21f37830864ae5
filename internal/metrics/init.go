package metrics

// InitializeMetrics pre-populates all expected label combinations so
// that every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"indexed", "skipped", "failed"} {
		ScanFilesTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "error"} {
		OCRExtractionsTotal.WithLabelValues(status)
		SearchQueriesTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "upsert", "fingerprint", "fingerprints",
		"search", "folders", "stats", "text", "prune_missing"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
