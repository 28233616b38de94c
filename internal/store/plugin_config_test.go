package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPluginConfigRepository(t *testing.T) {
	repo := setupTestStore(t).PluginConfigs()

	if _, err := repo.Get("desktop-notify"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	cfg := &PluginConfig{PluginName: "desktop-notify", Enabled: true}
	if err := repo.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get("desktop-notify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("default config = %s, want {}", got.Config)
	}
	if !got.Enabled {
		t.Error("expected plugin enabled")
	}

	cfg.Config = json.RawMessage(`{"mute":true}`)
	cfg.Enabled = false
	if err := repo.Save(cfg); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}
	if err := repo.Save(&PluginConfig{PluginName: "a-logger", Enabled: true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d configs, want 2", len(list))
	}
	if list[0].PluginName != "a-logger" {
		t.Errorf("List() not ordered by name: %q first", list[0].PluginName)
	}
	if list[1].Enabled || string(list[1].Config) != `{"mute":true}` {
		t.Errorf("updated config = %+v", list[1])
	}

	if err := repo.Delete("desktop-notify"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("desktop-notify"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
