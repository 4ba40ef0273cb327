// Package signalclient talks to the signaling service on behalf of a
// calling client.
package signalclient

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

	"peercall/pkg/constants"
	apperrors "peercall/pkg/errors"
)

// Client is an HTTP client for the signaling routes
type Client struct {
	BaseURL string
	HTTP    *http.Client

	HeartbeatInterval time.Duration
	WatchInterval     time.Duration
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP: &http.Client{
			Timeout: constants.DefaultTimeout,
		},
		HeartbeatInterval: constants.HeartbeatInterval,
		WatchInterval:     constants.RemoteStatusInterval,
	}
}

type idBody struct {
	ID string `json:"id"`
}

type registerBody struct {
	Handle string `json:"handle"`
}

type onlineBody struct {
	Online bool `json:"online"`
}

type matchBody struct {
	ID *string `json:"id"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Register returns the durable id for handle
func (c *Client) Register(ctx context.Context, handle string) (string, error) {
	var out idBody
	if err := c.do(ctx, http.MethodPost, "/register", registerBody{Handle: handle}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.TransportError("Registration returned no id", nil)
	}
	return out.ID, nil
}

// Ping sends one presence heartbeat for id
func (c *Client) Ping(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/presence/ping", idBody{ID: id}, nil)
}

// IsOnline asks whether id is currently online
func (c *Client) IsOnline(ctx context.Context, id string) (bool, error) {
	var out onlineBody
	if err := c.do(ctx, http.MethodGet, "/presence/online?id="+url.QueryEscape(id), nil, &out); err != nil {
		return false, err
	}
	return out.Online, nil
}

// JoinRandom enters the matchmaking pool
func (c *Client) JoinRandom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/random/register", idBody{ID: id}, nil)
}

// PickRandom asks for a random waiting partner other than id.
// ok is false when nobody else is waiting.
func (c *Client) PickRandom(ctx context.Context, id string) (partner string, ok bool, err error) {
	var out matchBody
	if err := c.do(ctx, http.MethodGet, "/random/match?id="+url.QueryEscape(id), nil, &out); err != nil {
		return "", false, err
	}
	if out.ID == nil {
		return "", false, nil
	}
	return *out.ID, true, nil
}

// LeaveRandom leaves the matchmaking pool
func (c *Client) LeaveRandom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/random/unregister", idBody{ID: id}, nil)
}

// do sends in as JSON and decodes a 2xx body into out. Service errors come
// back as AppErrors carrying the server's code and status; network failures
// are TransportErrors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperrors.TransportError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
			return apperrors.TransportError(fmt.Sprintf("%s %s: status %s", method, path, resp.Status), nil)
		}
		return apperrors.NewWithStatus(apperrors.ErrorCode(eb.Code), eb.Error, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.TransportError(fmt.Sprintf("%s %s: decode response", method, path), err)
	}
	return nil
}
