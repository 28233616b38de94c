package tray

import (
	"testing"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

func TestNew(t *testing.T) {
	tr := New("")
	if tr.Mode() != posture.ModeFront {
		t.Errorf("Mode() = %s, want front", tr.Mode())
	}
	if tr.IsRunning() {
		t.Error("expected tray to start stopped")
	}
	if tr.Status() != statusIdle {
		t.Errorf("Status() = %q, want %q", tr.Status(), statusIdle)
	}
}

func TestTray_Toggle(t *testing.T) {
	tr := New(posture.ModeSide)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("toggle callbacks = %v, want [true false]", got)
	}
	if tr.IsRunning() {
		t.Error("expected stopped after two toggles")
	}

	// SetRunning does not call back.
	tr.SetRunning(true)
	if !tr.IsRunning() || len(got) != 2 {
		t.Errorf("SetRunning(true): running=%v callbacks=%d", tr.IsRunning(), len(got))
	}
}

func TestTray_ModeChange(t *testing.T) {
	tr := New(posture.ModeFront)

	var got []posture.Mode
	tr.OnModeChange(func(m posture.Mode) { got = append(got, m) })

	tr.handleMode(posture.ModeFront) // already selected
	tr.handleMode(posture.ModeSide)

	if len(got) != 1 || got[0] != posture.ModeSide {
		t.Errorf("mode callbacks = %v, want [side]", got)
	}
	if tr.Mode() != posture.ModeSide {
		t.Errorf("Mode() = %s, want side", tr.Mode())
	}

	tr.SetMode(posture.ModeFront)
	if tr.Mode() != posture.ModeFront || len(got) != 1 {
		t.Errorf("SetMode: mode=%s callbacks=%d", tr.Mode(), len(got))
	}
}

func TestTray_Status(t *testing.T) {
	tr := New(posture.ModeFront)

	tests := []struct {
		show func(string)
		text string
	}{
		{tr.ShowWarning, "🦐 Bad posture detected! Sit up straight."},
		{tr.ShowSuccess, "🧘 Good posture! Keep it up."},
		{tr.ShowError, "Failed to grab frame"},
	}
	for _, tt := range tests {
		tt.show(tt.text)
		if tr.Status() != tt.text {
			t.Errorf("Status() = %q, want %q", tr.Status(), tt.text)
		}
	}

	// The last status stays visible after the loop ends.
	tr.SetRunning(false)
	if tr.Status() != "Failed to grab frame" {
		t.Errorf("Status() after stop = %q", tr.Status())
	}
}

func TestTray_Settings(t *testing.T) {
	tr := New(posture.ModeFront)
	called := false
	tr.OnSettings(func() { called = true })
	tr.handleSettings()
	if !called {
		t.Error("expected settings callback")
	}
}
