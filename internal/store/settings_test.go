package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// setupTestStore creates a store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsRepository_GetSet(t *testing.T) {
	repo := setupTestStore(t).Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := repo.Set("theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("theme", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get("theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "light" {
		t.Errorf("Get() = %q, want %q", got, "light")
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 1 || all["theme"] != "light" {
		t.Errorf("All() = %v", all)
	}
}

func TestSettingsRepository_ModeSettings(t *testing.T) {
	repo := setupTestStore(t).Settings()

	t.Run("defaults when empty", func(t *testing.T) {
		for _, mode := range []posture.Mode{posture.ModeFront, posture.ModeSide} {
			got, err := repo.LoadModeSettings(mode)
			if err != nil {
				t.Fatalf("LoadModeSettings(%s) error = %v", mode, err)
			}
			if got != posture.DefaultSettings(mode) {
				t.Errorf("LoadModeSettings(%s) = %+v, want defaults", mode, got)
			}
		}
	})

	t.Run("save and load", func(t *testing.T) {
		side := posture.Settings{Mode: posture.ModeSide, Threshold: 15, Cooldown: 30 * time.Second}
		if err := repo.SaveModeSettings(side); err != nil {
			t.Fatalf("SaveModeSettings() error = %v", err)
		}

		got, err := repo.LoadModeSettings(posture.ModeSide)
		if err != nil {
			t.Fatalf("LoadModeSettings() error = %v", err)
		}
		if got != side {
			t.Errorf("LoadModeSettings() = %+v, want %+v", got, side)
		}

		// Thresholds are per mode, the cooldown is shared.
		front, err := repo.LoadModeSettings(posture.ModeFront)
		if err != nil {
			t.Fatalf("LoadModeSettings(front) error = %v", err)
		}
		if front.Threshold != posture.DefaultFrontThreshold {
			t.Errorf("front threshold = %v, want default", front.Threshold)
		}
		if front.Cooldown != 30*time.Second {
			t.Errorf("front cooldown = %v, want 30s", front.Cooldown)
		}
	})

	t.Run("invalid settings are rejected", func(t *testing.T) {
		err := repo.SaveModeSettings(posture.Settings{Mode: posture.ModeFront, Threshold: -5, Cooldown: time.Second})
		if !errors.Is(err, posture.ErrInvalidSettings) {
			t.Errorf("SaveModeSettings() error = %v, want ErrInvalidSettings", err)
		}
	})

	t.Run("corrupt values fall back to defaults", func(t *testing.T) {
		if err := repo.Set(thresholdKey(posture.ModeFront), "not-a-number"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := repo.LoadModeSettings(posture.ModeFront)
		if err != nil {
			t.Fatalf("LoadModeSettings() error = %v", err)
		}
		if got.Threshold != posture.DefaultFrontThreshold {
			t.Errorf("threshold = %v, want default", got.Threshold)
		}
	})
}

func TestSettingsRepository_LastMode(t *testing.T) {
	repo := setupTestStore(t).Settings()

	if _, err := repo.LastMode(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LastMode() error = %v, want ErrNotFound", err)
	}

	if err := repo.SetLastMode(posture.ModeSide); err != nil {
		t.Fatalf("SetLastMode() error = %v", err)
	}
	mode, err := repo.LastMode()
	if err != nil {
		t.Fatalf("LastMode() error = %v", err)
	}
	if mode != posture.ModeSide {
		t.Errorf("LastMode() = %q, want side", mode)
	}

	if err := repo.SetLastMode("top"); !errors.Is(err, posture.ErrInvalidSettings) {
		t.Errorf("SetLastMode(top) error = %v, want ErrInvalidSettings", err)
	}
}

func TestSettingsRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := posture.Settings{Mode: posture.ModeFront, Threshold: 120, Cooldown: 5 * time.Second}
	if err := s.Settings().SaveModeSettings(want); err != nil {
		t.Fatalf("SaveModeSettings() error = %v", err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Settings().LoadModeSettings(posture.ModeFront)
	if err != nil {
		t.Fatalf("LoadModeSettings() error = %v", err)
	}
	if got != want {
		t.Errorf("LoadModeSettings() = %+v, want %+v", got, want)
	}
}
