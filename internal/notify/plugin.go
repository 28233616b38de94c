package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/plugin"
)

// ErrNoPlugins is returned when no enabled plugin declares the notify action.
var ErrNoPlugins = errors.New("no notify plugins installed")

// PluginSource lists plugins by action.
type PluginSource interface {
	WithAction(action string) []*plugin.Plugin
}

// PluginRunner executes a plugin.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// PluginNotifier delivers notifications through every installed notify plugin.
type PluginNotifier struct {
	source PluginSource
	runner PluginRunner
	logger *zap.Logger

	mu       sync.RWMutex
	configs  map[string]json.RawMessage
	disabled map[string]bool
}

// NewPluginNotifier creates a notifier backed by source and runner.
func NewPluginNotifier(source PluginSource, runner PluginRunner, logger *zap.Logger) *PluginNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &PluginNotifier{
		source:   source,
		runner:   runner,
		logger:   logger,
		configs:  make(map[string]json.RawMessage),
		disabled: make(map[string]bool),
	}
}

// SetConfig sets the config passed to the named plugin.
func (p *PluginNotifier) SetConfig(name string, config json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs[name] = config
}

// SetEnabled turns delivery through the named plugin on or off.
func (p *PluginNotifier) SetEnabled(name string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled {
		delete(p.disabled, name)
	} else {
		p.disabled[name] = true
	}
}

// active returns the enabled notify plugins with their configs.
func (p *PluginNotifier) active() ([]*plugin.Plugin, map[string]json.RawMessage) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var plugins []*plugin.Plugin
	configs := make(map[string]json.RawMessage, len(p.configs))
	for _, plug := range p.source.WithAction(plugin.ActionNotify) {
		name := plug.Manifest.Name
		if p.disabled[name] {
			continue
		}
		plugins = append(plugins, plug)
		configs[name] = p.configs[name]
	}
	return plugins, configs
}

// Notify implements Notifier.
func (p *PluginNotifier) Notify(ctx context.Context, n Notification) error {
	plugins, configs := p.active()
	if len(plugins) == 0 {
		return ErrNoPlugins
	}

	var err error
	for _, plug := range plugins {
		req := &plugin.Request{
			Action:            plugin.ActionNotify,
			Kind:              n.Kind,
			Title:             n.Title,
			Body:              n.Body,
			Icon:              n.Icon,
			Sound:             n.Sound,
			OnlyWhenUnfocused: n.OnlyWhenUnfocused,
			Config:            configs[plug.Manifest.Name],
		}

		resp, execErr := p.runner.Execute(ctx, plug, req)
		if execErr != nil {
			err = multierr.Append(err, execErr)
			continue
		}
		if !resp.Success {
			err = multierr.Append(err, fmt.Errorf("plugin %s: %s", plug.Manifest.Name, resp.Error))
			continue
		}

		p.logger.Debug("plugin delivered notification",
			zap.String("plugin", plug.Manifest.Name),
			zap.String("kind", n.Kind))
	}
	return err
}
