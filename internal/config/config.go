// Package config loads the YAML configuration from the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/defaults"
)

// FileName is the config file name inside the data directory.
const FileName = "config.yaml"

// Config holds the application configuration. Only Model is meant to change
// while the process runs (via the /model command, the API, or a config-file
// edit picked up by the watcher); everything else is read at startup.
type Config struct {
	DataDir      string `yaml:"data_dir,omitempty"`
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	PersonaFile  string `yaml:"persona_file"`
	HistoryLimit int    `yaml:"history_limit"`
	MaxAttempts  int    `yaml:"max_attempts"`

	AutoExport   bool   `yaml:"auto_export"`
	ExportFormat string `yaml:"export_format"`

	Providers []ProviderConfig `yaml:"providers"`
	Retention RetentionConfig  `yaml:"retention"`
	Serve     ServeConfig      `yaml:"serve"`
}

// ProviderConfig holds per-provider credentials and overrides.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// RetentionConfig controls the stored-conversation sweeper.
type RetentionConfig struct {
	Days     int    `yaml:"days"` // 0 disables the sweeper
	Schedule string `yaml:"schedule"`
}

// ServeConfig configures the HTTP/WebSocket surface.
type ServeConfig struct {
	Addr           string   `yaml:"addr"`
	Token          string   `yaml:"token,omitempty"`
	RateLimit      int      `yaml:"rate_limit"` // requests per minute per client
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	dataDir, err := defaults.DataDir()
	if err != nil {
		dataDir = ".saga"
	}
	return &Config{
		DataDir:      dataDir,
		Provider:     ai.ProviderGemini,
		Model:        ai.DefaultModel,
		PersonaFile:  "persona.md",
		HistoryLimit: 6,
		MaxAttempts:  3,
		ExportFormat: "csv",
		Retention:    RetentionConfig{Schedule: "@hourly"},
		Serve:        ServeConfig{Addr: ":8321", RateLimit: 60},
	}
}

// Load reads <data_dir>/config.yaml, falling back to defaults when the file
// does not exist.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	return cfg.loadFile(filepath.Join(cfg.DataDir, FileName), true)
}

// LoadFrom loads config from a specific path.
func LoadFrom(path string) (*Config, error) {
	return DefaultConfig().loadFile(path, false)
}

func (c *Config) loadFile(path string, missingOK bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if missingOK && os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.expand()
	return c, nil
}

// Save writes the config to <data_dir>/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.DataDir, FileName), data, 0600)
}

// expand applies environment expansion to secret-bearing fields and `~` to
// the data dir.
func (c *Config) expand() {
	c.DataDir = expandHome(c.DataDir)
	c.Serve.Token = os.ExpandEnv(c.Serve.Token)
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
		c.Providers[i].BaseURL = os.ExpandEnv(c.Providers[i].BaseURL)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// DBPath returns the path to the SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "data", "saga.db")
}

// PersonaPath returns the absolute path of the persona file.
func (c *Config) PersonaPath() string {
	if filepath.IsAbs(c.PersonaFile) {
		return c.PersonaFile
	}
	return filepath.Join(c.DataDir, c.PersonaFile)
}

// SystemInstruction reads the persona file, falling back to the embedded
// default, then to empty.
func (c *Config) SystemInstruction() string {
	if data, err := os.ReadFile(c.PersonaPath()); err == nil {
		return strings.TrimSpace(string(data))
	}
	if data, err := defaults.GetDefault("persona.md"); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

// ProviderFor returns the provider entry by name, or nil.
func (c *Config) ProviderFor(name string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

// ActiveModel resolves the model for the active provider: the per-provider
// override first, then the top-level Model when it belongs to the provider,
// then the provider's default. The top-level Model names a Gemini model, so
// it only applies to other providers when no default exists.
func (c *Config) ActiveModel() string {
	if p := c.ProviderFor(c.Provider); p != nil && p.Model != "" {
		return p.Model
	}
	if c.Provider == "" || c.Provider == ai.ProviderGemini {
		if c.Model != "" {
			return c.Model
		}
	}
	if m := ai.DefaultModelFor(c.Provider); m != "" {
		return m
	}
	return c.Model
}
