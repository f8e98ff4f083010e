package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "narrator.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {}, // No file
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Gate.Mode != GateRemote {
					t.Errorf("expected default gate mode 'remote', got '%s'", cfg.Gate.Mode)
				}
				if cfg.Gate.FailurePolicy != FailClosed {
					t.Errorf("expected fail_closed, got '%s'", cfg.Gate.FailurePolicy)
				}
				if time.Duration(cfg.Gate.Cooldown) != 5*time.Minute {
					t.Errorf("expected 5m cooldown, got %v", time.Duration(cfg.Gate.Cooldown))
				}
				if float64(cfg.Geofence.DefaultRadius) != 50 {
					t.Errorf("expected 50m default radius, got %v", cfg.Geofence.DefaultRadius)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "mode: remote") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: fail_closed, fail_open") {
					t.Error("config file missing enum comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("gate:\n  mode: local\n  cooldown: 2m\ngeofence:\n  default_radius: 0.1km\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Gate.Mode != GateLocal {
					t.Errorf("expected gate mode 'local', got '%s'", cfg.Gate.Mode)
				}
				if time.Duration(cfg.Gate.Cooldown) != 2*time.Minute {
					t.Errorf("expected 2m, got %v", time.Duration(cfg.Gate.Cooldown))
				}
				if float64(cfg.Geofence.DefaultRadius) != 100 {
					t.Errorf("expected 100m, got %v", cfg.Geofence.DefaultRadius)
				}
				// Untouched sections keep defaults
				if cfg.Backend.POIPath != "/api/v1/app/pois" {
					t.Errorf("expected default poi path, got %q", cfg.Backend.POIPath)
				}
			},
		},
		{
			name: "InvalidEnum",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("gate:\n  failure_policy: maybe\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
		{
			name: "ShapefileWithoutPath",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("poi:\n  source: shapefile\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
		{
			name: "BrokenYAML",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("gate: [\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "narrator.yaml")
	t.Setenv(EnvBackendURL, "http://backend.test:9000")
	t.Setenv(EnvDeviceID, "web-1-pinned")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "http://backend.test:9000" {
		t.Errorf("env override not applied, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Device.ID != "web-1-pinned" {
		t.Errorf("device id override not applied, got %q", cfg.Device.ID)
	}

	// Overrides are never persisted
	content, _ := os.ReadFile(configPath)
	if strings.Contains(string(content), "backend.test") {
		t.Error("env value leaked into config file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NARRATOR_GATE_MODE=off\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvGateMode, "")
	os.Unsetenv(EnvGateMode)

	LoadEnv(filepath.Join(dir, "missing.env"), envPath)

	if got := os.Getenv(EnvGateMode); got != "off" {
		t.Errorf("expected off from .env, got %q", got)
	}
}

func TestBackendURLs(t *testing.T) {
	b := DefaultConfig().Backend
	b.BaseURL = "http://host:8080/"

	if got := b.URL(b.CheckPath); got != "http://host:8080/api/v1/app/narration/check" {
		t.Errorf("URL = %q", got)
	}
	if got := b.AudioURL(7); got != "http://host:8080/api/v1/tts/audios/7" {
		t.Errorf("AudioURL = %q", got)
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "narrator.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file, got %v", err)
	}
	// Second call leaves the file alone
	if err := os.WriteFile(path, []byte("custom"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "custom" {
		t.Error("GenerateDefault overwrote an existing file")
	}
}
