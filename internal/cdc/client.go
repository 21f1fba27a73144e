// Package cdc is a client for the public CDC voucher API.
//
// Only one endpoint is used: GET /v1/public/vouchers/groups/{id}, which
// returns a campaign description and the state of every voucher in the group.
// Outbound calls are paced with a token bucket so a burst of local traffic
// cannot flood the public API.
package cdc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"voucherwatch/internal/models"
)

// MaxResponseBytes bounds the size of a voucher group response.
const MaxResponseBytes = 5 << 20

const voucherGroupPath = "/v1/public/vouchers/groups/"

// ErrVoucherNotFound is returned when the API reports no such voucher group.
var ErrVoucherNotFound = errors.New("voucher group not found")

// Fetcher loads voucher group data by voucher ID.
type Fetcher interface {
	FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error)
}

// UpstreamError reports a non-2xx response from the API.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return "API request failed: " + e.Status
}

// Unwrap lets errors.Is match ErrVoucherNotFound for 404 responses.
func (e *UpstreamError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrVoucherNotFound
	}
	return nil
}

// Client implements Fetcher over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPacing limits outbound requests to rps per second with the given
// burst. A non-positive rps disables pacing.
func WithPacing(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "voucherwatch",
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromConfig builds a client from the upstream configuration.
func NewClientFromConfig(cfg models.UpstreamConfig) (*Client, error) {
	opts := []Option{
		WithPacing(cfg.RequestsPerSecond, cfg.Burst),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, WithUserAgent(cfg.UserAgent))
	}
	return NewClient(cfg.BaseURL, opts...)
}

// FetchVoucherGroup retrieves the voucher group identified by voucherID.
func (c *Client) FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	if err := models.ValidateVoucherID(voucherID); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for upstream capacity: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+voucherGroupPath+url.PathEscape(voucherID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call voucher API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		slog.Debug("Voucher API returned error status", "status", resp.StatusCode)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read voucher API response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("voucher API response exceeds %d bytes", MaxResponseBytes)
	}

	var data models.VoucherData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode voucher API response: %w", err)
	}

	return &data, nil
}

var _ Fetcher = (*Client)(nil)
