package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screenshot-search/internal/handlers"
	"screenshot-search/internal/logging"
	"screenshot-search/internal/metrics"
	"screenshot-search/internal/middleware"
	"screenshot-search/internal/ocr"
	"screenshot-search/internal/scanner"
	"screenshot-search/internal/startup"
	"screenshot-search/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	// Initialize store
	storeStart := time.Now()
	st, err := store.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize store: %v", err)
	}
	defer st.Close()
	startup.LogStoreInit(time.Since(storeStart))

	// Probe the OCR engine. A missing engine is not fatal; scans still
	// run and record covered files with empty text.
	extractor := ocr.NewTesseract(config.TesseractCmd, config.TesseractLang)
	startup.LogOCRInit(extractor.Available())

	// Initialize scanner
	sc := scanner.New(st, extractor, config.ScreenshotsDir)

	// Drain progress updates into the debug log so the channel never
	// backs up when nobody else is listening.
	go func() {
		for p := range sc.Updates() {
			if p.Done {
				logging.Info("Scan finished: %d scanned, %d indexed, %d skipped, %d failed",
					p.Scanned, p.Indexed, p.Skipped, p.Failed)
				continue
			}
			logging.Debug("Scan progress: %d/%d", p.Scanned, p.Total)
		}
	}()

	if config.ScanOnStart {
		sc.TriggerScan()
	}

	// Periodically refresh database gauge metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			st.UpdateDBMetrics()
		}
	}()

	// Initialize handlers
	h := handlers.New(st, sc, config)

	// Setup router
	router := setupRouter(h)

	// Apply logging middleware
	loggedHandler := middleware.Logger(middleware.DefaultLoggingConfig())(router)

	// Apply metrics middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, st)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/folders", h.GetFolders).Methods("GET")
	api.HandleFunc("/text", h.GetText).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/scan/status", h.ScanStatus).Methods("GET")
	api.HandleFunc("/prune", h.Prune).Methods("POST")

	return r
}

// startMetricsServer serves Prometheus metrics on a separate port so
// the scrape endpoint is never exposed on the application port.
func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, st *store.Store) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Closing store")
	if err := st.Close(); err != nil {
		logging.Warn("Store close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Store closed")
	}

	startup.LogShutdownComplete()
}
