// Package tray provides the system tray menu for Shrimp Sentry.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

const (
	titleRun     = "Run Shrimp Sentry"
	statusIdle   = "Not running"
	statusPrefix = "Status: "
)

// Tray represents the system tray application.
// It implements app.StatusSink so the status line follows the monitoring loop.
type Tray struct {
	onToggle     func(enabled bool)
	onModeChange func(mode posture.Mode)
	onSettings   func()
	onQuit       func()
	running      bool
	mode         posture.Mode
	status       string
	mu           sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuFront  *systray.MenuItem
	menuSide   *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray with monitoring stopped and mode selected.
func New(mode posture.Mode) *Tray {
	if mode == "" {
		mode = posture.ModeFront
	}
	return &Tray{
		mode:   mode,
		status: statusIdle,
	}
}

// OnToggle sets the callback function to be called when the run item is clicked.
// Callers that fail to start use SetRunning(false) to reset the item.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnModeChange sets the callback function to be called when a mode item is clicked.
func (t *Tray) OnModeChange(fn func(mode posture.Mode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onModeChange = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("🦐")
	systray.SetTooltip("Shrimp Sentry posture monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItemCheckbox(titleRun, "Start or stop posture monitoring", t.running)
	systray.AddSeparator()

	t.menuFront = systray.AddMenuItemCheckbox(posture.ModeFront.Label(), "Watch screen distance", t.mode == posture.ModeFront)
	t.menuSide = systray.AddMenuItemCheckbox(posture.ModeSide.Label(), "Watch spine angle", t.mode == posture.ModeSide)
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(statusPrefix+t.status, "Latest posture status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Shrimp Sentry")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuFront.ClickedCh:
				t.handleMode(posture.ModeFront)
			case <-t.menuSide.ClickedCh:
				t.handleMode(posture.ModeSide)
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the run menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.running = !t.running
	running := t.running
	t.syncMenu()
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(running)
	}
}

// handleMode handles a click on one of the mode items.
func (t *Tray) handleMode(mode posture.Mode) {
	t.mu.Lock()
	changed := t.mode != mode
	t.mode = mode
	t.syncMenu()
	callback := t.onModeChange
	t.mu.Unlock()

	if changed && callback != nil {
		callback(mode)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// syncMenu reflects the current state in the menu. Callers hold t.mu.
func (t *Tray) syncMenu() {
	setChecked(t.menuToggle, t.running)
	setChecked(t.menuFront, t.mode == posture.ModeFront)
	setChecked(t.menuSide, t.mode == posture.ModeSide)
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusPrefix + t.status)
	}
}

func setChecked(item *systray.MenuItem, checked bool) {
	if item == nil {
		return
	}
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// SetRunning updates the run item without calling OnToggle, e.g. when the
// monitoring loop ends on its own.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	t.syncMenu()
}

// SetMode updates the selected mode without calling OnModeChange.
func (t *Tray) SetMode(mode posture.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	t.syncMenu()
}

// ShowWarning sets the status line.
func (t *Tray) ShowWarning(text string) { t.setStatus(text) }

// ShowSuccess sets the status line.
func (t *Tray) ShowSuccess(text string) { t.setStatus(text) }

// ShowError sets the status line.
func (t *Tray) ShowError(text string) { t.setStatus(text) }

func (t *Tray) setStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == text {
		return
	}
	t.status = text
	t.syncMenu()
}

// IsRunning returns whether the run item is checked.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Mode returns the selected mode.
func (t *Tray) Mode() posture.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// Status returns the text of the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
