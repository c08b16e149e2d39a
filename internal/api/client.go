// Package api is the client for the upstream content-generation service.
package api

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

	"github.com/jonathan/content-studio/internal/types"
)

// Endpoint paths relative to the base URL
const (
	pathGenerateStream = "/generate/stream"
	pathStatus         = "/status/"
	pathURLs           = "/urls/"
	pathAPIKeys        = "/api-keys"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// Config holds client configuration
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds non-streaming calls. Streams are bounded only by their context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the generation service
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stream  *http.Client
}

// NewClient creates a client for the service at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
	if cfg.HTTPClient != nil {
		c.http = cfg.HTTPClient
		c.stream = cfg.HTTPClient
	} else {
		c.http = &http.Client{Timeout: cfg.Timeout}
		c.stream = &http.Client{}
	}
	return c, nil
}

type streamRequest struct {
	types.GenerationRequest
	VideoID string `json:"video_id"`
}

// OpenStream starts a generation run and returns the event stream body.
// The caller must close it; cancelling ctx aborts the stream.
func (c *Client) OpenStream(ctx context.Context, runID string, req types.GenerationRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(streamRequest{GenerationRequest: req, VideoID: runID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, pathGenerateStream, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to open generation stream: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close() //nolint:errcheck
		return nil, err
	}
	return resp.Body, nil
}

// FetchStatus returns the server's view of a run
func (c *Client) FetchStatus(ctx context.Context, runID string) (*types.StatusSnapshot, error) {
	var snap types.StatusSnapshot
	if err := c.doJSON(ctx, http.MethodGet, pathStatus+url.PathEscape(runID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FetchURLs returns the player URLs of a run
func (c *Client) FetchURLs(ctx context.Context, runID string) (*types.PlayerURLs, error) {
	var urls types.PlayerURLs
	if err := c.doJSON(ctx, http.MethodGet, pathURLs+url.PathEscape(runID), nil, &urls); err != nil {
		return nil, err
	}
	return &urls, nil
}

// ListAPIKeys lists the account's generation API keys
func (c *Client) ListAPIKeys(ctx context.Context) ([]types.APIKey, error) {
	var keys []types.APIKey
	if err := c.doJSON(ctx, http.MethodGet, pathAPIKeys, nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAPIKey generates a new key. The secret is only returned here.
func (c *Client) CreateAPIKey(ctx context.Context, req types.CreateAPIKeyRequest) (*types.APIKey, error) {
	var key types.APIKey
	if err := c.doJSON(ctx, http.MethodPost, pathAPIKeys, req, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// RevokeAPIKey revokes a key by id
func (c *Client) RevokeAPIKey(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, pathAPIKeys+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
