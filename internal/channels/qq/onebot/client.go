package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the bridge's HTTP command API.
// Sends are fire-and-report: no retry or backoff at this layer.
type Client struct {
	httpURL string
	token   string
	hc      *http.Client
}

// NewClient creates a client for the bridge HTTP endpoint.
func NewClient(httpURL, accessToken string) *Client {
	return &Client{
		httpURL: strings.TrimRight(httpURL, "/"),
		token:   accessToken,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the bridge's command response envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

// call POSTs a command to {httpURL}/{action} and decodes data into out.
func (c *Client) call(ctx context.Context, action string, params any, out any) error {
	var body io.Reader
	if params != nil {
		blob, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("onebot: marshal %s params: %w", action, err)
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL+"/"+action, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("onebot: %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("onebot: %s: status %d", action, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("onebot: %s: decode response: %w", action, err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("onebot: %s: retcode %d", action, envelope.RetCode)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("onebot: %s: decode data: %w", action, err)
		}
	}
	return nil
}

type sendResult struct {
	MessageID json.Number `json:"message_id"`
}

// SendPrivateMsg sends segments to a user and returns the wire message id.
func (c *Client) SendPrivateMsg(ctx context.Context, userID string, segments []Segment) (string, error) {
	var result sendResult
	params := map[string]any{"user_id": userID, "message": segments}
	if err := c.call(ctx, "send_private_msg", params, &result); err != nil {
		return "", err
	}
	return result.MessageID.String(), nil
}

// SendGroupMsg sends segments to a group and returns the wire message id.
func (c *Client) SendGroupMsg(ctx context.Context, groupID string, segments []Segment) (string, error) {
	var result sendResult
	params := map[string]any{"group_id": groupID, "message": segments}
	if err := c.call(ctx, "send_group_msg", params, &result); err != nil {
		return "", err
	}
	return result.MessageID.String(), nil
}

// LoginInfo is the bridge's bot identity.
type LoginInfo struct {
	UserID   json.Number `json:"user_id"`
	Nickname string      `json:"nickname"`
}

// GetLoginInfo fetches the logged-in bot identity.
func (c *Client) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	var info LoginInfo
	if err := c.call(ctx, "get_login_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type statusData struct {
	Online bool `json:"online"`
}

// GetStatus fetches the bridge's online flag.
func (c *Client) GetStatus(ctx context.Context) (bool, error) {
	var data statusData
	if err := c.call(ctx, "get_status", nil, &data); err != nil {
		return false, err
	}
	return data.Online, nil
}

// ProbeResult is the outcome of a liveness/identity probe.
type ProbeResult struct {
	OK       bool
	SelfID   string
	Nickname string
	Status   string // "online", "offline", or "unknown"
	Err      error
}

// Probe checks bridge liveness and identity: get_login_info first, then
// get_status. A failure of the first call fails the probe; a failure of the
// second degrades Status to "unknown" rather than failing overall.
func (c *Client) Probe(ctx context.Context, timeout time.Duration) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := c.GetLoginInfo(ctx)
	if err != nil {
		return ProbeResult{Err: err}
	}

	result := ProbeResult{
		OK:       true,
		SelfID:   info.UserID.String(),
		Nickname: info.Nickname,
		Status:   "unknown",
	}

	online, err := c.GetStatus(ctx)
	if err == nil {
		if online {
			result.Status = "online"
		} else {
			result.Status = "offline"
		}
	}
	return result
}
