package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/shrimp-sentry/internal/posture"
	"github.com/ayusman/shrimp-sentry/internal/store"
)

// SettingsStore loads and saves Mode Configurations.
type SettingsStore interface {
	LoadModeSettings(mode posture.Mode) (posture.Settings, error)
	SaveModeSettings(settings posture.Settings) error
	LastMode() (posture.Mode, error)
	SetLastMode(mode posture.Mode) error
}

// SettingsHandler handles /api/settings.
type SettingsHandler struct {
	settings SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(s SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

// updateSettingsRequest accepts numbers either as JSON numbers or as text.
type updateSettingsRequest struct {
	Mode      string          `json:"mode"`
	Threshold json.RawMessage `json:"threshold"`
	Cooldown  json.RawMessage `json:"cooldown"`
}

type settingsResponse struct {
	Mode      string  `json:"mode"`
	Label     string  `json:"label"`
	Unit      string  `json:"unit"`
	Threshold float64 `json:"threshold"`
	Cooldown  int     `json:"cooldown"`
}

type allSettingsResponse struct {
	LastMode string             `json:"last_mode,omitempty"`
	Modes    []settingsResponse `json:"modes"`
}

func toSettingsResponse(s posture.Settings) settingsResponse {
	return settingsResponse{
		Mode:      string(s.Mode),
		Label:     s.Mode.Label(),
		Unit:      s.Mode.Unit(),
		Threshold: s.Threshold,
		Cooldown:  int(s.Cooldown / time.Second),
	}
}

// get handles GET /api/settings and GET /api/settings?mode=front|side.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("mode"); q != "" {
		mode, err := posture.ParseMode(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s, err := h.settings.LoadModeSettings(mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		writeJSON(w, http.StatusOK, toSettingsResponse(s))
		return
	}

	response := allSettingsResponse{}
	if last, err := h.settings.LastMode(); err == nil {
		response.LastMode = string(last)
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	for _, mode := range []posture.Mode{posture.ModeFront, posture.ModeSide} {
		s, err := h.settings.LoadModeSettings(mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		response.Modes = append(response.Modes, toSettingsResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// update handles PUT /api/settings.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	settings, err := posture.ParseSettings(req.Mode, rawText(req.Threshold), rawText(req.Cooldown))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.settings.SaveModeSettings(settings); err != nil {
		if errors.Is(err, posture.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// rawText returns a JSON string's contents, or the literal text of any other value.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return text
}
