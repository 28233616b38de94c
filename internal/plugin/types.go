// Package plugin discovers and runs external notifier plugins.
//
// A plugin is a directory holding a plugin.json manifest and an executable. The
// executable receives one JSON Request on stdin and answers with one JSON Response
// on stdout.
package plugin

import "encoding/json"

// ActionNotify is the action a plugin declares to receive posture notifications.
const ActionNotify = "notify"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest declares action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action            string          `json:"action"`
	Kind              string          `json:"kind,omitempty"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	Icon              string          `json:"icon,omitempty"`
	Sound             string          `json:"sound,omitempty"`
	OnlyWhenUnfocused bool            `json:"only_when_unfocused"`
	Config            json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
