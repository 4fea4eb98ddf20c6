package generation

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
	defaultHTTPTimeout   = 90 * time.Second
	defaultModel         = "anthropic/claude-3.5-haiku"
	defaultBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultTargetMinutes = 8

	// Blended per-1k-token price in hundredths of a cent, used to
	// attribute generation cost to the job when the provider does not
	// report spend directly.
	centiCentsPerThousandTokens = 40
)

const systemPrompt = `You are an expert audio lesson writer. Write a clear,
engaging spoken-word lesson script on the requested topic. Plain prose only:
no headings, no markdown, no stage directions. Open with a hook, develop the
core ideas with concrete examples, and close with a short recap.`

// Config captures the runtime settings for the transcript service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	TargetMinutes  int
}

// Transcript is the product of one generation call.
type Transcript struct {
	Text      string
	WordCount int64
	CostCents int64
}

// Client wraps the chat completion API that writes lesson transcripts.
// Calls are single-shot: retry and circuit-breaking policy belongs to the
// caller.
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

// NewClient constructs a generation client from configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			TargetMinutes:  cfg.TargetMinutes,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.TargetMinutes <= 0 {
		client.cfg.TargetMinutes = defaultTargetMinutes
	}
	return client
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateTranscript writes a lesson script for a topic title.
func (c *Client) GenerateTranscript(ctx context.Context, topicTitle string) (*Transcript, error) {
	topicTitle = strings.TrimSpace(topicTitle)
	if topicTitle == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "transcript",
			"topic title required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "transcript",
			"api key required", nil)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Write a roughly %d minute audio lesson about: %s",
				c.cfg.TargetMinutes, topicTitle)},
		},
		Temperature: 0.7,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("generation: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("generation", "transcript", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "generation", "transcript",
			"read response body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError("generation", "transcript", resp.StatusCode, body)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "generation", "transcript",
			"decode response", err)
	}
	if completion.Error != nil {
		return nil, services.Wrap(services.ErrExternalService, "generation", "transcript",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}

	text := ""
	if len(completion.Choices) > 0 {
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if text == "" {
		return nil, services.Wrap(services.ErrExternalService, "generation", "transcript",
			"empty completion content", nil)
	}

	return &Transcript{
		Text:      text,
		WordCount: int64(len(strings.Fields(text))),
		CostCents: estimateCostCents(completion.Usage.TotalTokens),
	}, nil
}

// HealthCheck verifies the API key and endpoint are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrValidation, "generation", "health",
			"api key required", nil)
	}
	return nil
}

func estimateCostCents(totalTokens int64) int64 {
	if totalTokens <= 0 {
		return 0
	}
	centiCents := totalTokens * centiCentsPerThousandTokens / 1000
	cents := (centiCents + 99) / 100
	if cents < 1 {
		cents = 1
	}
	return cents
}

// statusError classifies a non-2xx response. Timeouts and rate limits
// stay retryable; other 4xx statuses are permanent and must fail the
// call immediately.
func statusError(component, operation string, status int, body []byte) error {
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
	return services.Wrap(marker, component, operation,
		fmt.Sprintf("http %d: %s", status, snippet), nil)
}

func classifyTransportError(component, operation string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, component, operation, "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, component, operation, "request timed out", err)
	}
	return services.Wrap(services.ErrExternalService, component, operation, "request failed", err)
}
