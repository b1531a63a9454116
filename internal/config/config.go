// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	OpenAIAPIKey          string
	OpenAITranscribeModel string
	AnthropicAPIKey       string
	AnthropicModel        string
	ProviderTimeout       time.Duration

	MaxAudioSize        int
	MinAudioSize        int
	ConfidenceThreshold float64
	DefaultLanguage     string

	SessionCapacity      int
	SessionIdleAfter     time.Duration
	SessionTimeout       time.Duration
	SessionSweepInterval time.Duration
	CommandQueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/taskvoice.db"),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		AnthropicAPIKey:       getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:        getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		ProviderTimeout:       getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		MaxAudioSize:        getEnvInt("MAX_AUDIO_SIZE", 10*1024*1024),
		MinAudioSize:        getEnvInt("MIN_AUDIO_SIZE", 100),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.8),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "en-US"),

		SessionCapacity:      getEnvInt("SESSION_CAPACITY", 10),
		SessionIdleAfter:     getEnvDuration("SESSION_IDLE_AFTER", 5*time.Minute),
		SessionTimeout:       getEnvDuration("SESSION_TIMEOUT", time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 30*time.Second),
		CommandQueueSize:     getEnvInt("COMMAND_QUEUE_SIZE", 16),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MinAudioSize <= 0 {
		return fmt.Errorf("MIN_AUDIO_SIZE must be > 0")
	}
	if c.MaxAudioSize <= c.MinAudioSize {
		return fmt.Errorf("MAX_AUDIO_SIZE must be > MIN_AUDIO_SIZE")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be > 0")
	}
	if c.SessionIdleAfter <= 0 || c.SessionTimeout <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("session durations must be > 0")
	}
	if c.SessionIdleAfter >= c.SessionTimeout {
		return fmt.Errorf("SESSION_IDLE_AFTER must be < SESSION_TIMEOUT")
	}
	if c.CommandQueueSize <= 0 {
		return fmt.Errorf("COMMAND_QUEUE_SIZE must be > 0")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be > 0")
	}
	return nil
}

// TranscriptionEnabled reports whether a speech-to-text backend is
// configured.
func (c *Config) TranscriptionEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// GenerativeEnabled reports whether the fallback classifier and
// response generation are configured.
func (c *Config) GenerativeEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
