// Package ai talks to a local Ollama-style model server for device
// categorization and workbook analysis. Enrichment is always optional:
// callers probe IsAvailable first and skip it when the server is down.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the model server does not answer the
// availability probe.
var ErrUnavailable = errors.New("model server unavailable")

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048

	probeTimeout    = 5 * time.Second
	generateTimeout = 120 * time.Second
)

// Client is a thin HTTP client for the local model server.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

// NewClient creates a client for the server at baseURL using model as the
// default generation model.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpc:   &http.Client{},
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// DefaultModel returns the configured default model name.
func (c *Client) DefaultModel() string { return c.model }

// Model describes one model the server has loaded.
type Model struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// IsAvailable probes the server with a bounded timeout.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Models lists the models the server has available.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	return payload.Models, nil
}

// GenerateOptions tunes one generation call. Zero values fall back to the
// client defaults.
type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// GenerateResult is the non-streaming generation response.
type GenerateResult struct {
	Response      string
	Model         string
	TotalDuration time.Duration
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

func (c *Client) buildRequest(prompt string, opts GenerateOptions, stream bool) generateRequest {
	m := opts.Model
	if m == "" {
		m = c.model
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return generateRequest{
		Model:  m,
		Prompt: prompt,
		Stream: stream,
		Options: generateOptions{
			Temperature: temp,
			NumPredict:  maxTokens,
		},
	}
}

// Generate runs one non-streaming generation.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	body, err := json.Marshal(c.buildRequest(prompt, opts, false))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, raw)
	}

	var payload struct {
		Response      string `json:"response"`
		Model         string `json:"model"`
		TotalDuration int64  `json:"total_duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding generation response: %w", err)
	}

	return &GenerateResult{
		Response:      payload.Response,
		Model:         payload.Model,
		TotalDuration: time.Duration(payload.TotalDuration),
	}, nil
}
