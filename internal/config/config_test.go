package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Backend.Kind = BackendWhatsApp
	cfg.Push.Linger = Duration{3 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Backend.Kind != BackendWhatsApp {
		t.Errorf("Backend.Kind = %q", loaded.Backend.Kind)
	}
	if loaded.Push.Linger.Duration != 3*time.Second {
		t.Errorf("Push.Linger = %v, want 3s", loaded.Push.Linger)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "default_session = \"main\"\n\n[backend]\napi_id = 42\n\n[notifications]\nenabled = true\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"backend kind", cfg.Backend.Kind, BackendTDJSON},
		{"api id", cfg.Backend.APIID, int32(42)},
		{"history size", cfg.Notifications.HistorySize, 10},
		{"linger", cfg.Push.Linger.Duration, 10 * time.Second},
		{"rate", cfg.Outbox.RatePerSecond, 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.HistorySize != 10 {
		t.Errorf("default config = %+v", cfg.Notifications)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[push]\nlinger = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an invalid duration")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
