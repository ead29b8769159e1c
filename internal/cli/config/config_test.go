package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/settings"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %s", cfg.Server.Host)
	}
	if cfg.Settings.Backend != settings.FileBackend {
		t.Errorf("expected default settings backend 'file', got %s", cfg.Settings.Backend)
	}
	if cfg.Settings.Path != "settings.yml" {
		t.Errorf("expected default settings path 'settings.yml', got %s", cfg.Settings.Path)
	}

	schedule, err := cfg.Model.Schedule()
	if err != nil {
		t.Fatalf("expected default schedule to parse, got %v", err)
	}
	if schedule.Policy != loop.NextTick {
		t.Errorf("expected next tick policy, got %s", schedule.Policy)
	}
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	content := "server:\n  port: 9000\n"
	if err := os.WriteFile("objectmodel.yml", []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
model:
  item_data_changed_delay: 250ms
  item_data_changed_interval: 1s
  data_roles:
    - name
    - coord*
  item_data_changed_roles:
    - "*"
settings:
  backend: redis
  prefix: "om:"
  redis:
    addr: redis:6379
    db: 2
server:
  host: 0.0.0.0
  port: 3000
  jwt_secret: secret
`
	if err := os.WriteFile(filepath.Join(tmpDir, "objectmodel.yml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:3000" {
		t.Errorf("expected addr 0.0.0.0:3000, got %s", cfg.Server.Addr())
	}
	if cfg.Server.JWTSecret != "secret" {
		t.Errorf("expected jwt secret to be loaded, got %q", cfg.Server.JWTSecret)
	}
	if cfg.Settings.Backend != settings.RedisBackend {
		t.Errorf("expected redis backend, got %s", cfg.Settings.Backend)
	}
	if cfg.Settings.Redis.Addr != "redis:6379" || cfg.Settings.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Settings.Redis)
	}
	if cfg.Settings.Prefix != "om:" {
		t.Errorf("expected prefix 'om:', got %s", cfg.Settings.Prefix)
	}
	if strings.Join(cfg.Model.DataRoles, ",") != "name,coord*" {
		t.Errorf("unexpected data roles %v", cfg.Model.DataRoles)
	}

	schedule, err := cfg.Model.Schedule()
	if err != nil {
		t.Fatalf("expected schedule to parse, got %v", err)
	}
	want := loop.Schedule{Policy: loop.FixedDelay, Delay: 250 * time.Millisecond, Interval: time.Second}
	if schedule != want {
		t.Errorf("expected schedule %+v, got %+v", want, schedule)
	}

	opts, err := cfg.Model.ListOptions()
	if err != nil {
		t.Fatalf("expected list options, got %v", err)
	}
	if len(opts) != 3 {
		t.Errorf("expected 3 list options, got %d", len(opts))
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("OBJECTMODEL_SERVER_PORT", "4000")
	t.Setenv("OBJECTMODEL_SETTINGS_BACKEND", "memory")

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000 from environment, got %d", cfg.Server.Port)
	}
	if cfg.Settings.Backend != settings.MemoryBackend {
		t.Errorf("expected memory backend from environment, got %s", cfg.Settings.Backend)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad delay",
			content: "model:\n  item_data_changed_delay: soon\n",
			wantErr: "item_data_changed_delay",
		},
		{
			name:    "negative interval",
			content: "model:\n  item_data_changed_interval: -1s\n",
			wantErr: "item_data_changed_interval",
		},
		{
			name:    "bad port",
			content: "server:\n  port: 70000\n",
			wantErr: "server.port",
		},
		{
			name:    "unknown backend",
			content: "settings:\n  backend: etcd\n",
			wantErr: "unknown settings backend",
		},
		{
			name:    "postgres without url",
			content: "settings:\n  backend: postgres\n",
			wantErr: "settings.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "objectmodel.yml"), []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			_, err := LoadFrom(tmpDir)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "objectmodel.yml"), []byte("server: [\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFrom(tmpDir); err == nil {
		t.Error("expected error for invalid yaml")
	}
}
