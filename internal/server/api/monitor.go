package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/app"
	"github.com/ayusman/shrimp-sentry/internal/posture"
	"github.com/ayusman/shrimp-sentry/internal/store"
)

// Monitor is the part of app.App driven over HTTP.
type Monitor interface {
	Start(settings posture.Settings) error
	Stop() error
	Snapshot() app.Snapshot
}

// MonitorHandler handles /api/monitor, /api/monitor/start and /api/monitor/stop.
type MonitorHandler struct {
	monitor  Monitor
	settings SettingsStore
	logger   *zap.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(m Monitor, s SettingsStore, logger *zap.Logger) *MonitorHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &MonitorHandler{monitor: m, settings: s, logger: logger}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *MonitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/monitor")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, h.monitor.Snapshot())
	case path == "start" && r.Method == http.MethodPost:
		h.start(w, r)
	case path == "stop" && r.Method == http.MethodPost:
		h.stop(w, r)
	case path == "" || path == "start" || path == "stop":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

type startMonitorRequest struct {
	Mode string `json:"mode"`
}

// start handles POST /api/monitor/start. The body is optional; without a mode the
// last used mode is started.
func (h *MonitorHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	mode, err := h.resolveMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.settings.LoadModeSettings(mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if err := h.monitor.Start(settings); err != nil {
		switch {
		case errors.Is(err, app.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, posture.ErrInvalidSettings):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// The session is running at this point.
	if err := h.settings.SetLastMode(mode); err != nil {
		h.logger.Warn("failed to save last mode", zap.String("mode", string(mode)), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

// stop handles POST /api/monitor/stop.
func (h *MonitorHandler) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Stop(); err != nil {
		if errors.Is(err, app.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

func (h *MonitorHandler) resolveMode(name string) (posture.Mode, error) {
	if name != "" {
		return posture.ParseMode(name)
	}
	mode, err := h.settings.LastMode()
	if errors.Is(err, store.ErrNotFound) {
		return posture.ModeFront, nil
	}
	return mode, err
}
