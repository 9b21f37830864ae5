// Package main provides the entry point for the screenshot search
// service.
//
// The service walks a directory of screenshots, extracts their text
// with the tesseract OCR engine, and serves full-text search over the
// results through a small HTTP API. Scans are incremental: a file is
// only re-extracted when its modification time changes.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads environment variables and validates
//     directories
//  2. Store Initialization: Opens the SQLite database with FTS5
//     full-text search
//  3. OCR Probe: Checks that the tesseract binary is runnable (a
//     missing engine is logged, not fatal)
//  4. Scanner Setup: Wires the incremental scanner, optionally
//     triggering a scan on start
//  5. HTTP Server Setup: Configures routes, middleware, and starts the
//     server (plus a separate metrics server when enabled)
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops both servers
//     and closes the store
//
// # Build Requirements
//
// The application requires CGO for SQLite, and the sqlite3 driver's
// FTS5 support is gated behind a build tag:
//
//	go build -tags 'fts5' -o screenshot-search .
//
// Tests likewise need the tag:
//
//	go test -tags 'fts5' ./...
//
// Without the tag the binary builds but store initialization fails
// with "no such module: fts5". The tesseract binary must be present
// on PATH (or named via TESSERACT_CMD) for extraction to produce
// text; scans still run without it and record files with empty text.
//
// # Environment Variables
//
//	SCREENSHOTS_DIR  root directory to scan (default /screenshots)
//	DATABASE_DIR     directory for the SQLite file (default /database)
//	PORT             HTTP port (default 8080)
//	METRICS_PORT     Prometheus port (default 9090)
//	METRICS_ENABLED  serve /metrics (default true)
//	SCAN_ON_START    trigger a scan at startup (default true)
//	TESSERACT_CMD    OCR binary name or path (default tesseract)
//	TESSERACT_LANG   OCR language (default eng)
//	LOG_LEVEL        debug, info, warn, error (default info)
//	LOG_FILE         optional rotating log file path
package main
