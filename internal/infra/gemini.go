package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultAITimeout bounds a single endpoint attempt.
	DefaultAITimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ModelUnavailable reports whether the error says the requested model does not
// exist or does not support the call. Those errors move the fallback chain on.
func (e *APIError) ModelUnavailable() bool {
	return isModelUnavailable(e.Message)
}

func isModelUnavailable(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not found") || strings.Contains(m, "not supported")
}

// GenerationConfig holds the sampling parameters sent with a prompt.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

// ClassificationGeneration keeps the output deterministic and short.
var ClassificationGeneration = &GenerationConfig{Temperature: 0, MaxOutputTokens: 100, TopP: 0.1}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// GeminiClientConfig configures the Gemini transport.
type GeminiClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiClient is a thin JSON-over-HTTP client for the Generative Language API.
// Every call goes through a circuit breaker so a dead upstream stops costing
// one timeout per page view.
type GeminiClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewGeminiClient creates a client. Zero config values fall back to defaults.
func NewGeminiClient(cfg GeminiClientConfig, logger *zap.Logger) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAITimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	settings := gobreaker.Settings{
		Name:        "gemini-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client-side answers (bad key, unknown model) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
			}
			return err == nil
		},
	}

	return &GeminiClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		cb:         gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// Timeout returns the per-attempt deadline.
func (c *GeminiClient) Timeout() time.Duration {
	return c.timeout
}

// Generate sends a single-prompt generateContent call to model and returns the
// first candidate's text ("" when the response carries none).
func (c *GeminiClient) Generate(ctx context.Context, apiKey, model, prompt string, gen *GenerationConfig) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: gen,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// ListModels returns model ids (without the "models/" prefix) in listing order.
func (c *GeminiClient) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/models?key=%s", c.baseURL, url.QueryEscape(apiKey))

	var resp listModelsResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if id := strings.TrimPrefix(m.Name, "models/"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *GeminiClient) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, decodeAPIError(res)
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

func decodeAPIError(res *http.Response) *APIError {
	apiErr := &APIError{Status: res.StatusCode, Message: fmt.Sprintf("HTTP %d", res.StatusCode)}
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
