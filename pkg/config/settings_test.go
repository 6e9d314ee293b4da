package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ctxopt", s.AppName)
	assert.Equal(t, "0.0.0.0", s.Host)
	assert.Equal(t, 8000, s.Port)
	assert.Equal(t, "0.0.0.0:8000", s.Addr())
	assert.Equal(t, "./data/sessions", s.SessionDir)
	assert.Equal(t, int64(10485760), s.MaxFileSize)
	assert.Equal(t, "gpt-4o", s.OpenAIModel)
	assert.Equal(t, "https://api.openai.com/v1", s.OpenAIBaseURL)
	assert.Equal(t, 4000, s.MaxTokens)
	assert.InDelta(t, 0.1, s.Temperature, 1e-9)
	assert.True(t, s.UseLLMCache)
	assert.Equal(t, time.Hour, s.LLMCacheTTL)
	assert.Equal(t, 2, s.WorkerCount)
	assert.Equal(t, 32, s.QueueSize)
	assert.Contains(t, s.AllowedOrigins, "http://localhost:3000")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("MAX_TOKENS", "2000")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("USE_LLM_CACHE", "false")
	t.Setenv("LLM_CACHE_TTL", "60")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, "gpt-4o-mini", s.OpenAIModel)
	assert.Equal(t, 2000, s.MaxTokens)
	assert.InDelta(t, 0.7, s.Temperature, 1e-9)
	assert.False(t, s.UseLLMCache)
	assert.Equal(t, time.Minute, s.LLMCacheTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, s.AllowedOrigins)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestSettings_Validate(t *testing.T) {
	valid := &Settings{OpenAIAPIKey: "sk-test", Port: 8000, MaxFileSize: 1024}
	assert.NoError(t, valid.Validate())

	badPort := &Settings{OpenAIAPIKey: "sk-test", Port: 0, MaxFileSize: 1024}
	assert.True(t, IsConfigurationError(badPort.Validate()))

	badSize := &Settings{OpenAIAPIKey: "sk-test", Port: 8000, MaxFileSize: 0}
	assert.True(t, IsConfigurationError(badSize.Validate()))
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("TEMPERATURE", "cold")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, s.Port)
	assert.InDelta(t, 0.1, s.Temperature, 1e-9)
}
