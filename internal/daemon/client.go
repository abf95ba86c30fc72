package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobscout/internal/pipeline"
)

// ErrDaemonUnavailable marks transport failures reaching the daemon API.
var ErrDaemonUnavailable = errors.New("jobscout daemon unavailable")

// Client is the CLI-side HTTP client for the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client against the daemon bind address. A bare
// host:port is promoted to an http URL.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon api address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// StartSearch launches a session and returns its identifier.
func (c *Client) StartSearch(ctx context.Context, req pipeline.SearchRequest) (string, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/api/search", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// Progress fetches a session's current state.
func (c *Client) Progress(ctx context.Context, sessionID string) (*pipeline.MultiStageProgress, error) {
	var progress pipeline.MultiStageProgress
	if err := c.do(ctx, http.MethodGet, "/api/search/"+url.PathEscape(sessionID)+"/progress", nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// StopSearch stops a session.
func (c *Client) StopSearch(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/search/"+url.PathEscape(sessionID)+"/stop", nil, nil)
}

// PauseSearch pauses a session.
func (c *Client) PauseSearch(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/search/"+url.PathEscape(sessionID)+"/pause", nil, nil)
}

// ResumeSearch resumes a paused session.
func (c *Client) ResumeSearch(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/search/"+url.PathEscape(sessionID)+"/resume", nil, nil)
}

// Sessions lists persisted sessions.
func (c *Client) Sessions(ctx context.Context) ([]SessionSummary, error) {
	var resp sessionListResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// DeleteSession removes a session's snapshot and stored postings.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectFailure(err) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon api returned status %d", resp.StatusCode)
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isConnectFailure(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
