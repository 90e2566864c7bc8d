// Package config loads the server configuration from a YAML file and
// fills in defaults for anything the file leaves out.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen    string       `yaml:"listen"`
	StorePath string       `yaml:"storePath"`
	LogLevel  string       `yaml:"logLevel"`
	Query     QueryConfig  `yaml:"query"`
	Assist    AssistConfig `yaml:"assist"`
}

type QueryConfig struct {
	// MaxRows is the LIMIT injected into statements that lack one.
	MaxRows int `yaml:"maxRows"`
}

type AssistConfig struct {
	BaseURL   string `yaml:"baseURL"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// APIKey reads the assist API key from the configured environment
// variable. Empty means the assist feature is disabled.
func (a AssistConfig) APIKey() string {
	return os.Getenv(a.APIKeyEnv)
}

// Load reads the configuration at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.applyDefaults()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Listen:    ":8080",
		StorePath: "querydeck.db",
		LogLevel:  "info",
		Query:     QueryConfig{MaxRows: 1000},
		Assist: AssistConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// applyDefaults restores defaults for fields the file set to zero
// values.
func (c *Config) applyDefaults() {
	d := defaults()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.StorePath == "" {
		c.StorePath = d.StorePath
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Query.MaxRows == 0 {
		c.Query.MaxRows = d.Query.MaxRows
	}
	if c.Assist.BaseURL == "" {
		c.Assist.BaseURL = d.Assist.BaseURL
	}
	if c.Assist.Model == "" {
		c.Assist.Model = d.Assist.Model
	}
	if c.Assist.APIKeyEnv == "" {
		c.Assist.APIKeyEnv = d.Assist.APIKeyEnv
	}
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.StorePath == "" {
		return errors.New("storePath is required")
	}
	if c.Query.MaxRows < 0 {
		return fmt.Errorf("query.maxRows must be positive, got %d", c.Query.MaxRows)
	}
	return nil
}
