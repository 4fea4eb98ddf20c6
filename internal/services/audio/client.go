package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mindcast/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultVoice       = "nova"
)

// Config captures the runtime settings for the synthesis service.
type Config struct {
	APIKey         string
	BaseURL        string
	Voice          string
	TimeoutSeconds int
}

// Artifact is the stored audio a synthesis call produced.
type Artifact struct {
	AudioURL     string
	DurationSecs int64
	CostCents    int64
}

// Client wraps the text-to-speech service that synthesizes a transcript
// and stores the resulting audio, returning a durable URL. Calls are
// single-shot: retry policy belongs to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an audio client from configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Voice:          strings.TrimSpace(cfg.Voice),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Voice == "" {
		client.cfg.Voice = defaultVoice
	}
	return client
}

type synthesizeRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice"`
}

type synthesizeResponse struct {
	AudioURL        string `json:"audio_url"`
	DurationSeconds int64  `json:"duration_seconds"`
	CostCents       int64  `json:"cost_cents"`
	Error           *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize converts a transcript into stored audio.
func (c *Client) Synthesize(ctx context.Context, transcript string) (*Artifact, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "synthesize",
			"transcript required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "synthesize",
			"api key required", nil)
	}
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "synthesize",
			"base url required", nil)
	}

	encoded, err := json.Marshal(synthesizeRequest{Input: transcript, Voice: c.cfg.Voice})
	if err != nil {
		return nil, fmt.Errorf("audio: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("audio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "audio", "synthesize",
			"read response body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(resp.StatusCode, body)
	}

	var synthesized synthesizeResponse
	if err := json.Unmarshal(body, &synthesized); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "audio", "synthesize",
			"decode response", err)
	}
	if synthesized.Error != nil {
		return nil, services.Wrap(services.ErrExternalService, "audio", "synthesize",
			"api error: "+strings.TrimSpace(synthesized.Error.Message), nil)
	}
	if synthesized.AudioURL == "" {
		return nil, services.Wrap(services.ErrExternalService, "audio", "synthesize",
			"response missing audio url", nil)
	}

	return &Artifact{
		AudioURL:     synthesized.AudioURL,
		DurationSecs: synthesized.DurationSeconds,
		CostCents:    synthesized.CostCents,
	}, nil
}

// HealthCheck verifies the client is configured for synthesis.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrValidation, "audio", "health", "api key required", nil)
	}
	if c.cfg.BaseURL == "" {
		return services.Wrap(services.ErrValidation, "audio", "health", "base url required", nil)
	}
	return nil
}

// statusError classifies a non-2xx response. Timeouts and rate limits
// stay retryable; other 4xx statuses are permanent and must fail the
// call immediately.
func statusError(status int, body []byte) error {
	marker := services.ErrExternalService
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		marker = services.ErrTimeout
	case status == http.StatusTooManyRequests:
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		marker = services.ErrValidation
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return services.Wrap(marker, "audio", "synthesize",
		fmt.Sprintf("http %d: %s", status, snippet), nil)
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "audio", "synthesize", "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "audio", "synthesize", "request timed out", err)
	}
	return services.Wrap(services.ErrExternalService, "audio", "synthesize", "request failed", err)
}
