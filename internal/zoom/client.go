package zoom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/relay/config"
)

// maxResponseBytes bounds a single upstream response body.
const maxResponseBytes = 32 << 20

// Response is a buffered upstream API response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client calls the Zoom REST API with a caller-supplied bearer token.
type Client struct {
	baseURL     string
	pageTimeout time.Duration
	maxPages    int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates an API client rooted at cfg.APIBaseURL.
func NewClient(cfg config.ZoomConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	return &Client{
		baseURL:     cfg.APIBaseURL,
		pageTimeout: cfg.PageTimeout(),
		maxPages:    maxPages,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// Do sends one request to path (relative to the API base) and buffers the response.
// Non-2xx statuses are returned as a Response, not as an error.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, accessToken string) (*Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        buf,
	}, nil
}
