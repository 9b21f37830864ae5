package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "GET /api/search", "GET /api/search"},
		{"newline", "line1\nline2", "line1 line2"},
		{"carriage return", "line1\rline2", "line1 line2"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "a\x1b[31mb", "a[31mb"},
		{"tab preserved", "a\tb", "a\tb"},
		{"control chars stripped", "a\x01\x02b", "ab"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{
			name:   "normal path with defaults",
			path:   "/api/search",
			config: DefaultLoggingConfig(),
			want:   false,
		},
		{
			name:   "health check logged by default",
			path:   "/healthz",
			config: DefaultLoggingConfig(),
			want:   false,
		},
		{
			name:   "health check skipped when disabled",
			path:   "/healthz",
			config: LoggingConfig{LogHealthChecks: false},
			want:   true,
		},
		{
			name:   "explicit skip path",
			path:   "/internal/debug",
			config: LoggingConfig{SkipPaths: []string{"/internal"}, LogHealthChecks: true},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // second call must be ignored

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusNotFound)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorded code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if _, err := rw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := rw.Write([]byte(" world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if rw.bytesWritten != 11 {
		t.Errorf("bytesWritten = %d, want 11", rw.bytesWritten)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("implicit statusCode = %d, want 200", rw.statusCode)
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	called := false
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=x", nil))

	if !called {
		t.Error("wrapped handler was not called")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestMetricsPassesThrough(t *testing.T) {
	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scan", nil))

	if !called {
		t.Error("wrapped handler was not called")
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/search", "/api/search"},
		{"/api/scan", "/api/scan"},
		{"/api/scan/status", "/api/scan/status"},
		{"/version", "/version"},
		{"/wp-login.php", "other"},
		{"/api/search/anything", "other"},
		{"/some/random/probe", "other"},
		{"/", "other"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsBoundsLabelCardinality(t *testing.T) {
	// Unregistered paths must all collapse to one label value, so a
	// URL scanner cannot grow the metric series without bound.
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/probe-1", "/probe-2", "/probe-3"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	}

	for _, path := range []string{"/probe-1", "/probe-2", "/probe-3"} {
		if got := normalizePath(path); got != "other" {
			t.Errorf("normalizePath(%q) = %q, want other", path, got)
		}
	}
}

func TestMetricsSkipsConfiguredPaths(t *testing.T) {
	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !called {
		t.Error("skipped path must still reach the handler")
	}
}
