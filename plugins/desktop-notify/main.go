// Package main provides a desktop notification plugin.
// It shows the notification with osascript on macOS and notify-send on Linux,
// then plays the requested sound.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action            string          `json:"action"`
	Kind              string          `json:"kind"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	Icon              string          `json:"icon"`
	Sound             string          `json:"sound"`
	OnlyWhenUnfocused bool            `json:"only_when_unfocused"`
	Config            json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-plugin configuration.
type Config struct {
	SoundsDir string `json:"sounds_dir"`
	Mute      bool   `json:"mute"`
}

var errNoNotifier = errors.New("no desktop notifier available")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "notify" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	if req.Title == "" {
		writeErrorResponse("title is required")
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if err := notify(req); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	played := false
	if !cfg.Mute && req.Sound != "" {
		// A missing sound is not worth failing the notification over.
		if path := resolveSound(cfg.SoundsDir, req.Sound); path != "" {
			played = playSound(path) == nil
		}
	}

	data, _ := json.Marshal(map[string]interface{}{
		"kind":  req.Kind,
		"sound": played,
	})
	writeSuccessResponse(data)
}

// notify shows a desktop notification for the current platform.
func notify(req Request) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(req.Body), appleQuote(req.Title))
		return run("osascript", "-e", script)
	case "linux":
		args := []string{"--app-name=Shrimp Sentry"}
		if req.Icon != "" {
			args = append(args, "--icon="+req.Icon)
		}
		if req.Kind == "bad_posture" {
			args = append(args, "--urgency=critical")
		}
		args = append(args, req.Title, req.Body)
		return run("notify-send", args...)
	default:
		return errNoNotifier
	}
}

// resolveSound finds name under dir, falling back to the plugin's sounds folder.
func resolveSound(dir, name string) string {
	if filepath.IsAbs(name) {
		return existing(name)
	}

	var candidates []string
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "sounds", name))
	}
	candidates = append(candidates, filepath.Join("sounds", name))

	for _, c := range candidates {
		if p := existing(c); p != "" {
			return p
		}
	}
	return ""
}

func existing(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// playSound plays an audio file with the platform's command line player.
func playSound(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return run("afplay", path)
	case "linux":
		for _, player := range []string{"paplay", "mpg123", "ffplay"} {
			if _, err := exec.LookPath(player); err != nil {
				continue
			}
			if player == "ffplay" {
				return run(player, "-nodisp", "-autoexit", "-loglevel", "quiet", path)
			}
			return run(player, path)
		}
		return errors.New("no audio player found")
	default:
		return errNoNotifier
	}
}

// appleQuote quotes s as an AppleScript string literal.
func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// run executes a command and returns any error with its output.
func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
		Data:    data,
	})
}
