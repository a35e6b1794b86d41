package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Quote struct {
		Suffix         string `yaml:"suffix"`          // market suffix appended to tickers
		PadDays        int    `yaml:"pad_days"`        // window padding around requested bounds
		TimeoutSeconds int    `yaml:"timeout_seconds"` // HTTP client timeout
	} `yaml:"quote"`
	Analysis struct {
		DefaultWindowDays int `yaml:"default_window_days"` // purchase-overlay window
		DefaultYears      int `yaml:"default_years"`       // P/VP lookback
	} `yaml:"analysis"`
	CVM struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"cvm"`
	// Aliases extends the built-in renamed-issuer table (old code → new code).
	Aliases map[string]string `yaml:"aliases"`
	Proxy   string            `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is fine; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("QUOTE_SUFFIX"); v != "" {
		cfg.Quote.Suffix = v
	}
	if v := os.Getenv("QUOTE_PAD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quote.PadDays = n
		}
	}
	if v := os.Getenv("CVM_BASE_URL"); v != "" {
		cfg.CVM.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "database/dados_fii.db"
	}
	if cfg.Quote.Suffix == "" {
		cfg.Quote.Suffix = ".SA"
	}
	if cfg.Quote.PadDays == 0 {
		cfg.Quote.PadDays = 5
	}
	if cfg.Quote.TimeoutSeconds == 0 {
		cfg.Quote.TimeoutSeconds = 30
	}
	if cfg.Analysis.DefaultWindowDays == 0 {
		cfg.Analysis.DefaultWindowDays = 365
	}
	if cfg.Analysis.DefaultYears == 0 {
		cfg.Analysis.DefaultYears = 5
	}
	if cfg.CVM.BaseURL == "" {
		cfg.CVM.BaseURL = "https://dados.cvm.gov.br/dados/FII/DOC/INF_MENSAL/DADOS/"
	}

	return cfg, nil
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Quote.PadDays < 0 {
		return fmt.Errorf("quote.pad_days must not be negative")
	}
	if c.Quote.TimeoutSeconds <= 0 {
		return fmt.Errorf("quote.timeout_seconds must be positive")
	}
	if c.Analysis.DefaultWindowDays <= 0 {
		return fmt.Errorf("analysis.default_window_days must be positive")
	}
	if c.Analysis.DefaultYears <= 0 {
		return fmt.Errorf("analysis.default_years must be positive")
	}
	return nil
}
