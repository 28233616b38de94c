// Package server provides the HTTP server for Shrimp Sentry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/plugin"
	"github.com/ayusman/shrimp-sentry/internal/server/api"
	"github.com/ayusman/shrimp-sentry/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Monitor   api.Monitor
	Plugins   *plugin.Manager
	Runner    api.PluginRunner
	Applied   api.PluginSettings
	Hub       *Hub
	Frames    *FrameBuffer
	Logger    *zap.Logger
}

// Server represents the HTTP server for the Shrimp Sentry application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *zap.Logger
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store.Settings()))

		if s.config.Monitor != nil {
			monitorHandler := api.NewMonitorHandler(s.config.Monitor, s.config.Store.Settings(), s.logger)
			s.mux.Handle("/api/monitor", monitorHandler)
			s.mux.Handle("/api/monitor/", monitorHandler)
		}

		if s.config.Plugins != nil && s.config.Runner != nil {
			pluginHandler := api.NewPluginHandler(s.config.Plugins, s.config.Runner, s.config.Applied, s.config.Store)
			s.mux.Handle("/api/plugins", pluginHandler)
			s.mux.Handle("/api/plugins/", pluginHandler)
		}
	}

	// Preview of the annotated frames published by the monitoring loop
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", s.config.Frames)
		s.mux.HandleFunc("/api/frame", s.config.Frames.ServeSnapshot)
	}

	// Status and notification events
	if s.config.Hub != nil {
		s.mux.Handle("/api/events", s.config.Hub)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.Monitor != nil {
		response["monitor"] = s.config.Monitor.Snapshot().State
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
// It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if s.config.Frames != nil {
		s.config.Frames.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
