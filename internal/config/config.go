package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Port           int           `yaml:"port"`
	DataDir        string        `yaml:"data_dir"`
	LogLevel       string        `yaml:"log_level"`
	Development    bool          `yaml:"development"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	Backends       Backends      `yaml:"backends"`
	Chat           Chat          `yaml:"chat"`
	Version        string        `yaml:"-"`
}

// Backends holds the base URLs of the remote calculation services
type Backends struct {
	CalculatorBaseURL string `yaml:"calculator_base_url"`
	StatsBaseURL      string `yaml:"stats_base_url"`
	AnalyticsBaseURL  string `yaml:"analytics_base_url"`
	ChatBaseURL       string `yaml:"chat_base_url"`
}

// Chat holds chat completion settings
type Chat struct {
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Default returns the configuration used when nothing else is provided
func Default() Config {
	return Config{
		Port:           8080,
		DataDir:        "./data",
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		CORSOrigins:    []string{"*"},
		Backends: Backends{
			CalculatorBaseURL: "http://localhost:8001",
			StatsBaseURL:      "http://localhost:8002",
			AnalyticsBaseURL:  "http://localhost:8000",
			ChatBaseURL:       "https://api.openai.com/v1",
		},
		Chat: Chat{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a helpful assistant.",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.normalize()

	return cfg, nil
}

// applyEnv overlays recognised environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("WORKBENCH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKBENCH_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}

	overrides := map[string]*string{
		"WORKBENCH_DATA_DIR":  &c.DataDir,
		"LOG_LEVEL":           &c.LogLevel,
		"CALCULATOR_BASE_URL": &c.Backends.CalculatorBaseURL,
		"STATS_BASE_URL":      &c.Backends.StatsBaseURL,
		"ANALYTICS_BASE_URL":  &c.Backends.AnalyticsBaseURL,
		"CHAT_BASE_URL":       &c.Backends.ChatBaseURL,
		"CHAT_API_KEY":        &c.Chat.APIKey,
		"CHAT_MODEL":          &c.Chat.Model,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	return nil
}

// normalize trims trailing slashes so "{base}/path" never doubles up
func (c *Config) normalize() {
	c.Backends.CalculatorBaseURL = strings.TrimRight(c.Backends.CalculatorBaseURL, "/")
	c.Backends.StatsBaseURL = strings.TrimRight(c.Backends.StatsBaseURL, "/")
	c.Backends.AnalyticsBaseURL = strings.TrimRight(c.Backends.AnalyticsBaseURL, "/")
	c.Backends.ChatBaseURL = strings.TrimRight(c.Backends.ChatBaseURL, "/")
	for i, origin := range c.CORSOrigins {
		c.CORSOrigins[i] = strings.TrimSpace(origin)
	}
}

// Validate checks the configuration for values the server cannot run with
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}

	urls := map[string]string{
		"calculator_base_url": c.Backends.CalculatorBaseURL,
		"stats_base_url":      c.Backends.StatsBaseURL,
		"analytics_base_url":  c.Backends.AnalyticsBaseURL,
		"chat_base_url":       c.Backends.ChatBaseURL,
	}
	for name, raw := range urls {
		if err := checkBaseURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func checkBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL %q has no host", raw)
	}
	return nil
}
