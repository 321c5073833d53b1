package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CrispyBaguette/fb-chat-stt/internal/bot"
	"github.com/CrispyBaguette/fb-chat-stt/internal/config"
	"github.com/CrispyBaguette/fb-chat-stt/internal/identity"
	"github.com/CrispyBaguette/fb-chat-stt/internal/transcription"
)

// StatsSource aggregates the stats snapshots exposed on /stats.
type StatsSource struct {
	Dispatcher *bot.Dispatcher
	Cache      *identity.Cache
	Gateway    *transcription.Gateway
}

// HTTPServer provides HTTP endpoints for monitoring
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	stats     StatsSource
	startTime time.Time
}

// NewHTTPServer creates the monitoring server.
func NewHTTPServer(cfg config.MonitoringConfig, logger *slog.Logger, stats StatsSource) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		stats:     stats,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start starts the HTTP server in the background.
func (h *HTTPServer) Start() {
	h.logger.Info("Starting monitoring server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("Monitoring server error", slog.String("error", err.Error()))
		}
	}()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping monitoring server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "fb-chat-stt",
			"version": "1.0.0",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"timestamp": time.Now().UTC(),
	}
	if h.stats.Dispatcher != nil {
		response["dispatcher"] = h.stats.Dispatcher.GetStats()
	}
	if h.stats.Cache != nil {
		response["identity_cache"] = h.stats.Cache.GetStats()
	}
	if h.stats.Gateway != nil {
		response["transcription"] = h.stats.Gateway.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
