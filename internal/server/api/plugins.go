package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/shrimp-sentry/internal/notify"
	"github.com/ayusman/shrimp-sentry/internal/plugin"
	"github.com/ayusman/shrimp-sentry/internal/store"
)

// PluginRegistry lists discovered plugins.
type PluginRegistry interface {
	List() []*plugin.Plugin
	Get(name string) (*plugin.Plugin, error)
}

// PluginRunner executes a single plugin.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// PluginSettings receives config changes so they apply to the next notification.
type PluginSettings interface {
	SetConfig(name string, config json.RawMessage)
	SetEnabled(name string, enabled bool)
}

// PluginHandler handles /api/plugins and /api/plugins/{name}[/test].
type PluginHandler struct {
	registry PluginRegistry
	runner   PluginRunner
	applied  PluginSettings
	store    *store.Store
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(registry PluginRegistry, runner PluginRunner, applied PluginSettings, s *store.Store) *PluginHandler {
	return &PluginHandler{
		registry: registry,
		runner:   runner,
		applied:  applied,
		store:    s,
	}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/plugins, /api/plugins/{name} or /api/plugins/{name}/test
	path := strings.TrimPrefix(r.URL.Path, "/api/plugins")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	name, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, r, name)
	case rest == "" && r.Method == http.MethodPut:
		h.update(w, r, name)
	case rest == "test" && r.Method == http.MethodPost:
		h.test(w, r, name)
	case rest == "" || rest == "test":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// Request and response types

type updatePluginRequest struct {
	Config  json.RawMessage `json:"config"`
	Enabled *bool           `json:"enabled"`
}

type pluginResponse struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Actions     []string        `json:"actions"`
	Config      json.RawMessage `json:"config"`
	Enabled     bool            `json:"enabled"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// toPluginResponse merges a discovered plugin with its stored config.
// Plugins without a stored config are enabled with an empty config.
func (h *PluginHandler) toPluginResponse(p *plugin.Plugin) (pluginResponse, error) {
	resp := pluginResponse{
		Name:        p.Manifest.Name,
		Version:     p.Manifest.Version,
		Description: p.Manifest.Description,
		Actions:     p.Manifest.Actions,
		Config:      json.RawMessage("{}"),
		Enabled:     true,
	}

	cfg, err := h.store.PluginConfigs().Get(p.Manifest.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resp, nil
		}
		return resp, err
	}

	resp.Config = cfg.Config
	resp.Enabled = cfg.Enabled
	return resp, nil
}

// list handles GET /api/plugins and returns all discovered plugins.
func (h *PluginHandler) list(w http.ResponseWriter, r *http.Request) {
	plugins := h.registry.List()

	response := listPluginsResponse{
		Plugins: make([]pluginResponse, 0, len(plugins)),
	}

	for _, p := range plugins {
		resp, err := h.toPluginResponse(p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load plugin config")
			return
		}
		response.Plugins = append(response.Plugins, resp)
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/plugins/{name}.
func (h *PluginHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Plugin not found")
		return
	}

	resp, err := h.toPluginResponse(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plugin config")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// update handles PUT /api/plugins/{name} and stores the plugin config.
func (h *PluginHandler) update(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Plugin not found")
		return
	}

	var req updatePluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Config != nil && !json.Valid(req.Config) {
		writeError(w, http.StatusBadRequest, "config must be valid JSON")
		return
	}

	current, err := h.toPluginResponse(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plugin config")
		return
	}

	cfg := &store.PluginConfig{
		PluginName: name,
		Config:     current.Config,
		Enabled:    current.Enabled,
	}
	if req.Config != nil {
		cfg.Config = req.Config
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := h.store.PluginConfigs().Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plugin config")
		return
	}

	if h.applied != nil {
		h.applied.SetConfig(name, cfg.Config)
		h.applied.SetEnabled(name, cfg.Enabled)
	}

	resp, err := h.toPluginResponse(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plugin config")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// test handles POST /api/plugins/{name}/test and sends a sample notification
// through one plugin.
func (h *PluginHandler) test(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Plugin not found")
		return
	}
	if !p.Manifest.Supports(plugin.ActionNotify) {
		writeError(w, http.StatusBadRequest, "Plugin does not support notifications")
		return
	}

	current, err := h.toPluginResponse(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plugin config")
		return
	}

	n := notify.Activated()
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.runner.Execute(ctx, p, &plugin.Request{
		Action: plugin.ActionNotify,
		Kind:   n.Kind,
		Title:  n.Title,
		Body:   n.Body,
		Icon:   n.Icon,
		Sound:  n.Sound,
		Config: current.Config,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
