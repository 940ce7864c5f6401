// Package agent talks to the external agent backend that turns routed
// messages into replies. The gateway never runs model inference itself.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/dispatch"
)

// Client is an HTTP dispatch.Responder against the agent backend.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient builds a backend client from config. Timeout covers the whole
// run, not individual reads; the backend streams nothing back.
func NewClient(cfg config.AgentConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Respond posts the request to the backend and decodes the outcome.
func (c *Client) Respond(ctx context.Context, req dispatch.Request) (dispatch.Outcome, error) {
	if c.endpoint == "" {
		return dispatch.Outcome{}, fmt.Errorf("agent: no endpoint configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return dispatch.Outcome{}, fmt.Errorf("agent: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return dispatch.Outcome{}, fmt.Errorf("agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return dispatch.Outcome{}, fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dispatch.Outcome{}, fmt.Errorf("agent: backend returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var outcome dispatch.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return dispatch.Outcome{}, fmt.Errorf("agent: decode response: %w", err)
	}
	return outcome, nil
}
