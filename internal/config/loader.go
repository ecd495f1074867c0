package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Load loads config from the default path (~/.embykeeper/config.json).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromFile(filepath.Join(home, ".embykeeper", "config.json"))
}

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	expandDataDir(cfg)

	return cfg, nil
}

// envOverrides are EMBYKEEPER_-prefixed variables that take precedence
// over the config file.
type envOverrides struct {
	DataDir    string `env:"EMBYKEEPER_DATADIR"`
	Timeout    int    `env:"EMBYKEEPER_TIMEOUT"`
	Retries    int    `env:"EMBYKEEPER_RETRIES"`
	OCRAPIKey  string `env:"EMBYKEEPER_OCR_APIKEY"`
	OCRBaseURL string `env:"EMBYKEEPER_OCR_BASEURL"`
	OCRModel   string `env:"EMBYKEEPER_OCR_MODEL"`
}

func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("failed to parse env overrides: %w", err)
	}
	if ov.DataDir != "" {
		cfg.DataDir = ov.DataDir
	}
	if ov.Timeout > 0 {
		cfg.Timeout = ov.Timeout
	}
	if ov.Retries > 0 {
		cfg.Retries = ov.Retries
	}
	if ov.OCRAPIKey != "" {
		cfg.OCR.APIKey = ov.OCRAPIKey
	}
	if ov.OCRBaseURL != "" {
		cfg.OCR.BaseURL = ov.OCRBaseURL
	}
	if ov.OCRModel != "" {
		cfg.OCR.Model = ov.OCRModel
	}
	return nil
}

// expandDataDir expands a leading ~ in the data directory path.
func expandDataDir(cfg *Config) {
	dd := cfg.DataDir
	if len(dd) >= 2 && dd[0] == '~' && dd[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, dd[2:])
		}
	}
}
