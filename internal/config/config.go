// Package config provides configuration loading and validation for the
// matchcore service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the service configuration. Values come from an optional
// JSON file overlaid with environment variables; missing values use defaults.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// Backends. Empty URLs select the in-memory implementations, which are
	// suitable for a single instance only.
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL    string `json:"redis_url,omitempty"`    // Redis URL for limiter and cache

	// Inference
	GeminiAPIKey            string `json:"gemini_api_key,omitempty"`            // Gemini API key; empty disables the backend
	GeminiModel             string `json:"gemini_model,omitempty"`              // Gemini model name
	InferenceTimeoutSeconds int    `json:"inference_timeout_seconds,omitempty"` // Hard cap per backend call

	// Sweep
	SweepSchedule string `json:"sweep_schedule,omitempty"` // Cron expression for the expiry sweep

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Debug-level logging
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Port:                    8080,
		GeminiModel:             "gemini-2.5-flash",
		InferenceTimeoutSeconds: 30,
		SweepSchedule:           "@hourly",
	}
}

// Load builds the configuration: defaults, overlaid with the JSON file at
// path (when non-empty), overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = cfg.merge(*fileCfg)
	}

	cfg = cfg.merge(fromEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile loads configuration from a JSON file.
func loadFile(path string) (*Config, error) {
	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// fromEnv reads the environment-variable overlay.
func fromEnv() Config {
	var cfg Config
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = os.Getenv("GEMINI_MODEL")
	if v := os.Getenv("INFERENCE_TIMEOUT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.InferenceTimeoutSeconds = seconds
		}
	}
	cfg.SweepSchedule = os.Getenv("SWEEP_SCHEDULE")
	if v := os.Getenv("VERBOSE"); v != "" {
		cfg.Verbose, _ = strconv.ParseBool(v)
	}
	return cfg
}

// merge returns c with every non-zero field of overlay applied on top.
func (c Config) merge(overlay Config) Config {
	result := c
	if overlay.Port != 0 {
		result.Port = overlay.Port
	}
	if overlay.DatabaseURL != "" {
		result.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.RedisURL != "" {
		result.RedisURL = overlay.RedisURL
	}
	if overlay.GeminiAPIKey != "" {
		result.GeminiAPIKey = overlay.GeminiAPIKey
	}
	if overlay.GeminiModel != "" {
		result.GeminiModel = overlay.GeminiModel
	}
	if overlay.InferenceTimeoutSeconds != 0 {
		result.InferenceTimeoutSeconds = overlay.InferenceTimeoutSeconds
	}
	if overlay.SweepSchedule != "" {
		result.SweepSchedule = overlay.SweepSchedule
	}
	if overlay.Verbose {
		result.Verbose = true
	}
	return result
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.InferenceTimeoutSeconds < 1 {
		return fmt.Errorf("config error: 'inference_timeout_seconds' must be at least 1, got: %d", c.InferenceTimeoutSeconds)
	}
	return nil
}

// InferenceTimeout returns the per-call timeout as a duration.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}
