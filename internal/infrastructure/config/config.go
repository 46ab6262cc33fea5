package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Desktop   DesktopConfig
	Interp    InterpConfig
	AI        AIConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// DesktopConfig holds the simulated desktop dimensions and icon layout.
type DesktopConfig struct {
	Width        float64 `envconfig:"DESKTOP_WIDTH" default:"1920"`
	Height       float64 `envconfig:"DESKTOP_HEIGHT" default:"1080"`
	IconManifest string  `envconfig:"ICON_MANIFEST" default:""`
}

// InterpConfig holds action interpreter tuning.
type InterpConfig struct {
	// PaceMS is the delay before each action, keeping a human-visible
	// cadence. Zero disables pacing.
	PaceMS int `envconfig:"PACE_MS" default:"600"`
}

// Pace returns the inter-action delay as a duration.
func (c InterpConfig) Pace() time.Duration {
	return time.Duration(c.PaceMS) * time.Millisecond
}

// AIConfig holds upstream generative-AI service configuration.
type AIConfig struct {
	BaseURL    string  `envconfig:"AI_BASE_URL" default:""`
	APIKey     string  `envconfig:"AI_API_KEY" default:""`
	TextModel  string  `envconfig:"AI_TEXT_MODEL" default:""`
	ImageModel string  `envconfig:"AI_IMAGE_MODEL" default:""`
	RPS        float64 `envconfig:"AI_RPS" default:"2"`
}

// StorageConfig holds on-disk persistence configuration.
type StorageConfig struct {
	// Dir is the root of file, session, and user persistence. Empty
	// runs fully in memory.
	Dir string `envconfig:"STORAGE_DIR" default:"./data"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Desktop: DesktopConfig{
			Width:  1920,
			Height: 1080,
		},
		Interp: InterpConfig{
			PaceMS: 600,
		},
		AI: AIConfig{
			RPS: 2,
		},
		Storage: StorageConfig{
			Dir: "./data",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
