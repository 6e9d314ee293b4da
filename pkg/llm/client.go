// Package llm wraps the external LLM collaborator: an OpenAI-compatible
// chat-completions endpoint, fronted by a fingerprint-keyed response cache
// and a request rate limiter.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ServiceError is a failure of the external LLM call or of coercing its
// response into usable JSON. It is never the client's fault.
type ServiceError struct {
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

// ErrorCode is the stable error-code string for LLM service failures.
const ErrorCode = "llm_service_error"

// IsServiceError checks if an error is an LLM service error.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// Request describes one LLM call.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	// SkipCache bypasses the response cache for this call only.
	SkipCache bool
}

// Caller is the abstract LLM capability: prompt in, text out.
type Caller interface {
	Call(ctx context.Context, req Request) (string, error)
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// RequestsPerMinute limits outbound call rate; zero disables limiting.
	RequestsPerMinute int
	UseCache          bool
	CacheTTL          time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ResponseCache
}

// NewClient creates an LLM client. The cache is owned by the caller and
// may be nil to disable caching entirely.
func NewClient(cfg ClientConfig, cache *ResponseCache) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		cache:      cache,
	}
}

// Cache returns the client's response cache (may be nil).
func (c *Client) Cache() *ResponseCache { return c.cache }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Call sends one chat-completions request, consulting and populating the
// response cache unless the request opted out.
func (c *Client) Call(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}

	var key string
	useCache := c.cfg.UseCache && c.cache != nil && !req.SkipCache
	if useCache {
		key = Fingerprint(req, c.cfg.Model)
		if cached, ok := c.cache.Get(key); ok {
			slog.Debug("Using cached LLM response")
			return cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &ServiceError{Message: fmt.Sprintf("LLM call failed: %v", err), Err: err}
		}
	}

	response, err := c.doRequest(ctx, req)
	if err != nil {
		return "", err
	}

	if useCache {
		c.cache.Set(key, response, c.cfg.CacheTTL)
	}
	return response, nil
}

func (c *Client) doRequest(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM call failed: %v", err), Err: err}
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM call failed: %v", err), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	slog.Debug("Calling LLM API", "model", c.cfg.Model)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM API call failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM API call failed: %v", err), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{
			Message: fmt.Sprintf("LLM API returned status %d: %s", resp.StatusCode, truncate(string(data), 200)),
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM API returned unreadable body: %v", err), Err: err}
	}
	if parsed.Error != nil {
		return "", &ServiceError{Message: fmt.Sprintf("LLM API error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ServiceError{Message: "LLM API returned no choices"}
	}

	slog.Info("LLM API call successful", "model", c.cfg.Model)
	return parsed.Choices[0].Message.Content, nil
}

// Fingerprint derives the cache key for a request: a hash over every
// parameter that affects the response.
func Fingerprint(req Request, model string) string {
	payload, _ := json.Marshal(struct {
		Prompt       string  `json:"prompt"`
		SystemPrompt string  `json:"system_prompt"`
		MaxTokens    int     `json:"max_tokens"`
		Temperature  float64 `json:"temperature"`
		Model        string  `json:"model"`
	}{req.Prompt, req.SystemPrompt, req.MaxTokens, req.Temperature, model})
	sum := sha256.Sum256(payload)
	return "llm:" + hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
