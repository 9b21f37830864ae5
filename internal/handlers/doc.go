// Package handlers implements the HTTP API for the screenshot search
// service: full-text search over extracted screenshot text, scan
// triggering and status, folder listing, index statistics, and the
// usual health and version endpoints.
package handlers
