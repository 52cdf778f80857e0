package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GRIDPILOT"

type Config struct {
	App      AppConfig      `yaml:"app"`
	Backend  BackendConfig  `yaml:"backend"`
	Provider ProviderConfig `yaml:"provider"`
	Document DocumentConfig `yaml:"document"`
	Gateways GatewaysConfig `yaml:"gateways"`
	Memory   MemoryConfig   `yaml:"memory"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name       string `yaml:"name" split_words:"true"`
	PromptsDir string `yaml:"prompts_dir" split_words:"true"`
	// IncludeTable sends the serialized sheet with every turn.
	IncludeTable bool `yaml:"include_table" split_words:"true"`
	// ReportChanges diffs the sheet around every run.
	ReportChanges bool `yaml:"report_changes" split_words:"true"`
}

// BackendConfig covers both sides of the chat endpoint: the URL a client
// talks to and the address the server listens on.
type BackendConfig struct {
	URL      string        `yaml:"url" split_words:"true"`
	Token    string        `yaml:"token" split_words:"true"`
	Listen   string        `yaml:"listen" split_words:"true"`
	Timeout  time.Duration `yaml:"timeout" split_words:"true"`
	MaxSteps int           `yaml:"max_steps" split_words:"true"`
}

type ProviderConfig struct {
	Name    string `yaml:"name" split_words:"true"`
	APIKey  string `yaml:"api_key" split_words:"true"`
	Model   string `yaml:"model" split_words:"true"`
	BaseURL string `yaml:"base_url,omitempty" split_words:"true"`
}

type DocumentConfig struct {
	RemoteURL   string        `yaml:"remote_url" split_words:"true"`
	TargetMatch string        `yaml:"target_match" split_words:"true"`
	WorkbookURL string        `yaml:"workbook_url" split_words:"true"`
	Headless    bool          `yaml:"headless" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

type GatewaysConfig struct {
	Telegram GatewayConfig `yaml:"telegram"`
}

type GatewayConfig struct {
	Token   string `yaml:"token" split_words:"true"`
	Enabled bool   `yaml:"enabled" split_words:"true"`
}

type MemoryConfig struct {
	Path         string `yaml:"path" split_words:"true"`
	HistoryLimit int    `yaml:"history_limit" split_words:"true"`
}

type LoggingConfig struct {
	Dir string `yaml:"dir" split_words:"true"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:       "gridpilot",
			PromptsDir: "./prompts",
		},
		Backend: BackendConfig{
			URL:      "http://localhost:8000",
			Listen:   ":8000",
			Timeout:  60 * time.Second,
			MaxSteps: 8,
		},
		Provider: ProviderConfig{
			Name:  "openai",
			Model: "gpt-4o-mini",
		},
		Document: DocumentConfig{
			TargetMatch: "excel",
			Headless:    true,
			Timeout:     60 * time.Second,
		},
		Memory: MemoryConfig{
			Path:         "gridpilot.db",
			HistoryLimit: 10,
		},
		Logging: LoggingConfig{
			Dir: "logs",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// GRIDPILOT_* environment overrides. A missing file is not an error. JSON
// files load too, being valid YAML.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	groups := []struct {
		prefix string
		spec   any
	}{
		{envPrefix + "_APP", &cfg.App},
		{envPrefix + "_BACKEND", &cfg.Backend},
		{envPrefix + "_PROVIDER", &cfg.Provider},
		{envPrefix + "_DOCUMENT", &cfg.Document},
		{envPrefix + "_TELEGRAM", &cfg.Gateways.Telegram},
		{envPrefix + "_MEMORY", &cfg.Memory},
		{envPrefix + "_LOGGING", &cfg.Logging},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return nil, fmt.Errorf("env overrides %s: %w", g.prefix, err)
		}
	}

	return cfg, nil
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg := c.Gateways.Telegram
	if tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
