// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFormat         string        `mapstructure:"LOG_FORMAT"`
	LogFile           string        `mapstructure:"LOG_FILE"`
	GithubToken       string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL      string        `mapstructure:"GITHUB_API_URL"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	TickInterval      time.Duration `mapstructure:"TICK_INTERVAL"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	DBURL             string        `mapstructure:"DB_URL"`
	HistoryLimit      int           `mapstructure:"HISTORY_LIMIT"`
	ReportConcurrency int           `mapstructure:"REPORT_CONCURRENCY"`
}

// HistoryEnabled reports whether a database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DBURL != ""
}

var defaults = map[string]any{
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "text",
	"LOG_FILE":           "",
	"GITHUB_TOKEN":       "",
	"GITHUB_API_URL":     "https://api.github.com/",
	"REQUEST_TIMEOUT":    "15s",
	"TICK_INTERVAL":      "1s",
	"HTTP_ADDR":          ":8080",
	"DB_URL":             "",
	"HISTORY_LIMIT":      20,
	"REPORT_CONCURRENCY": 5,
}

// LoadConfig reads configuration from a .env file in the working directory
// (if any) and environment variables. The environment wins.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading .env: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	u, err := url.Parse(c.GithubAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GITHUB_API_URL must be an absolute http(s) URL, got %q", c.GithubAPIURL)
	}
	if !strings.HasSuffix(c.GithubAPIURL, "/") {
		c.GithubAPIURL += "/"
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 100 {
		return errors.New("HISTORY_LIMIT must be between 1 and 100")
	}
	if c.ReportConcurrency <= 0 {
		return errors.New("REPORT_CONCURRENCY must be at least 1")
	}
	return nil
}
