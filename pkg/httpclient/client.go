package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps response bodies read into memory (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// MaxRequestSize caps marshalled request bodies (5MB)
	MaxRequestSize = 5 * 1024 * 1024
)

// Client wraps http.Client with trace propagation, logging and size limits.
type Client struct {
	client *http.Client
	logger ectologger.Logger
}

type Config struct {
	Timeout            time.Duration
	MaxIdleConns       int
	IdleConnTimeout    time.Duration
	DisableCompression bool
	DisableKeepAlives  bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

func NewClient(cfg Config, logger ectologger.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:       cfg.MaxIdleConns,
		IdleConnTimeout:    cfg.IdleConnTimeout,
		DisableCompression: cfg.DisableCompression,
		DisableKeepAlives:  cfg.DisableKeepAlives,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger,
	}
}

// NewClientFrom wraps an existing http.Client, typically an httptest server client.
func NewClientFrom(client *http.Client, logger ectologger.Logger) *Client {
	return &Client{client: client, logger: logger}
}

type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Duration    time.Duration
}

// Do executes req and reads the whole body. Non-2xx statuses are not errors here.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, redact(req))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, MaxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	duration := time.Since(start)
	c.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)", req.Method, redact(req), resp.StatusCode, duration)

	return &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    duration,
	}, nil
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.Do(ctx, req)
}

// PostJSON marshals body and posts it with Content-Type application/json.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	if len(payload) > MaxRequestSize {
		return nil, fmt.Errorf("request body too large: %d bytes (max %d)", len(payload), MaxRequestSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.Do(ctx, req)
}

// redact drops the query string, which can carry partner identifiers.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
