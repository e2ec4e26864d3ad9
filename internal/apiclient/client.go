// Package apiclient is a typed client for the reviewd HTTP API. It satisfies
// the same controller surface as control.Service, so the CLI and the MCP
// server drive one daemon and share its single-session guard.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// StatusError is returned for non-2xx responses that do not map onto a
// control sentinel.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// Client talks to a reviewd server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. "http://localhost:9090".
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Health returns the server's reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Start starts a review session.
func (c *Client) Start(ctx context.Context, req control.StartRequest) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/reviews", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// Cancel cancels a session.
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(sessionID, ""), nil, nil)
}

// ExtendWindow asks for the challenge window to be extended.
func (c *Client) ExtendWindow(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "/extend"), nil, nil)
}

// SubmitChallenges submits human challenges keyed by finding ID.
func (c *Client) SubmitChallenges(ctx context.Context, sessionID string, challenges map[string]string) (control.SubmitResult, error) {
	var res control.SubmitResult
	body := struct {
		Challenges map[string]string `json:"challenges"`
	}{challenges}
	err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/challenges"), body, &res)
	return res, err
}

// GetState returns a session's state.
func (c *Client) GetState(ctx context.Context, sessionID string) (*workflows.ReviewState, error) {
	var st workflows.ReviewState
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Active returns the active session's state.
func (c *Client) Active(ctx context.Context) (*workflows.ReviewState, error) {
	var st workflows.ReviewState
	if err := c.do(ctx, http.MethodGet, "/api/v1/reviews/current", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// List returns persisted review records, newest first.
func (c *Client) List(ctx context.Context, limit int) ([]store.Record, error) {
	path := "/api/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Records []store.Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/v1/reviews/" + url.PathEscape(sessionID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError maps API error bodies back onto the control sentinels so
// callers can use errors.Is across the wire.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && msg == "no active session":
		return control.ErrNoActiveSession
	case resp.StatusCode == http.StatusNotFound && msg == "session not found":
		return control.ErrSessionNotFound
	case resp.StatusCode == http.StatusConflict:
		return wrapSentinel(control.ErrSessionRunning, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return wrapSentinel(workflows.ErrInvalidInput, msg)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

func wrapSentinel(sentinel error, msg string) error {
	rest := strings.TrimPrefix(strings.TrimPrefix(msg, sentinel.Error()), ": ")
	if rest == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, rest)
}
