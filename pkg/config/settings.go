// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigurationError reports settings that make the service unable to start.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ErrorCode is the stable error-code string for configuration failures.
const ErrorCode = "configuration_error"

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Settings holds all runtime configuration.
type Settings struct {
	// Application
	AppName  string
	Debug    bool
	LogLevel string

	// Server
	Host string
	Port int

	// Storage
	SessionDir  string
	MaxFileSize int64

	// LLM
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int

	// LLM response cache
	UseLLMCache bool
	LLMCacheTTL time.Duration

	// Analysis queue
	WorkerCount int
	QueueSize   int

	// CORS
	AllowedOrigins []string
}

// Load reads settings from environment variables, applying defaults for
// everything optional. A missing OpenAI API key is a hard failure.
func Load() (*Settings, error) {
	s := &Settings{
		AppName:  getEnv("APP_NAME", "ctxopt"),
		Debug:    getEnvBool("DEBUG", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 8000),

		SessionDir:  getEnv("SESSION_DIR", "./data/sessions"),
		MaxFileSize: int64(getEnvInt("MAX_FILE_SIZE", 10485760)), // 10MB

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		MaxTokens:         getEnvInt("MAX_TOKENS", 4000),
		Temperature:       getEnvFloat("TEMPERATURE", 0.1),
		RequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 60),

		UseLLMCache: getEnvBool("USE_LLM_CACHE", true),
		LLMCacheTTL: time.Duration(getEnvInt("LLM_CACHE_TTL", 3600)) * time.Second,

		WorkerCount: getEnvInt("WORKER_COUNT", 2),
		QueueSize:   getEnvInt("QUEUE_SIZE", 32),

		AllowedOrigins: parseOrigins(os.Getenv("ALLOWED_ORIGINS")),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks settings consistency.
func (s *Settings) Validate() error {
	if s.OpenAIAPIKey == "" {
		return &ConfigurationError{Message: "No LLM API keys configured (set OPENAI_API_KEY)"}
	}
	if s.Port < 1 || s.Port > 65535 {
		return &ConfigurationError{Message: fmt.Sprintf("Invalid port: %d", s.Port)}
	}
	if s.MaxFileSize <= 0 {
		return &ConfigurationError{Message: fmt.Sprintf("Invalid max file size: %d", s.MaxFileSize)}
	}
	return nil
}

// Addr returns the host:port listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8000",
			"http://127.0.0.1:8000",
		}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
