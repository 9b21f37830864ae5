// Package metrics defines the Prometheus metrics exported by the
// screenshot search service: HTTP request metrics, store query metrics,
// scan progress counters and OCR extraction timings.
package metrics
