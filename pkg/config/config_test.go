package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Listen != ":8000" || cfg.Memory.HistoryLimit != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if _, ok := cfg.GetTelegramConfig(); ok {
		t.Error("telegram should be disabled by default")
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridpilot.yaml")
	data := `
backend:
  url: http://backend:9000
  timeout: 15s
provider:
  model: deepseek-chat
gateways:
  telegram:
    enabled: true
    token: file-token
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRIDPILOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("GRIDPILOT_APP_INCLUDE_TABLE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.URL != "http://backend:9000" || cfg.Backend.Timeout != 15*time.Second {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Backend.Listen != ":8000" {
		t.Errorf("unset field lost its default: %q", cfg.Backend.Listen)
	}
	if cfg.Provider.Model != "deepseek-chat" || cfg.Provider.Name != "openai" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	tg, ok := cfg.GetTelegramConfig()
	if !ok || tg.Token != "env-token" {
		t.Errorf("telegram = %+v, %v", tg, ok)
	}
	if !cfg.App.IncludeTable {
		t.Error("env bool override not applied")
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("backend: [unterminated"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected decode error")
	}
}
