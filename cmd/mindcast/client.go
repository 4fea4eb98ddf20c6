package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mindcast/internal/api"
)

// apiClient talks to the mindcastd HTTP API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *apiClient) status(ctx context.Context) (*api.StatusResponse, []byte, error) {
	var out api.StatusResponse
	raw, err := c.call(ctx, http.MethodGet, "/api/status", nil, &out)
	return &out, raw, err
}

func (c *apiClient) stats(ctx context.Context) (*api.StatsResponse, []byte, error) {
	var out api.StatsResponse
	raw, err := c.call(ctx, http.MethodGet, "/api/stats", nil, &out)
	return &out, raw, err
}

func (c *apiClient) topic(ctx context.Context, key string) (*api.TopicDetailResponse, []byte, error) {
	var out api.TopicDetailResponse
	raw, err := c.call(ctx, http.MethodGet, "/api/topics/"+url.PathEscape(key), nil, &out)
	return &out, raw, err
}

func (c *apiClient) resolve(ctx context.Context, req api.ResolveRequest) (*api.ResolveResponse, []byte, error) {
	var out api.ResolveResponse
	raw, err := c.call(ctx, http.MethodPost, "/api/resolve", req, &out)
	return &out, raw, err
}

func (c *apiClient) demote(ctx context.Context, key string, req api.DemoteRequest) (*api.DemoteResponse, []byte, error) {
	var out api.DemoteResponse
	raw, err := c.call(ctx, http.MethodPost, "/api/topics/"+url.PathEscape(key)+"/demote", req, &out)
	return &out, raw, err
}

func (c *apiClient) sweep(ctx context.Context) (map[string]int, []byte, error) {
	out := map[string]int{}
	raw, err := c.call(ctx, http.MethodPost, "/api/sweep", nil, &out)
	return out, raw, err
}

func (c *apiClient) remaster(ctx context.Context) (map[string]int, []byte, error) {
	out := map[string]int{}
	raw, err := c.call(ctx, http.MethodPost, "/api/remaster", nil, &out)
	return out, raw, err
}

func (c *apiClient) call(ctx context.Context, method, path string, payload, target any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is mindcastd running? %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var envelope api.ErrorBody
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			return raw, fmt.Errorf("%s (%s)", envelope.Error.Message, envelope.Error.Kind)
		}
		return raw, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}
