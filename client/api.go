package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
)

const (
	// MarketDataEndpoint is the base URL for quote, candle, and screener calls.
	MarketDataEndpoint = "https://api.schwabapi.com/marketdata/v1"
	// TraderEndpoint is the base URL for account, order, and transaction calls.
	TraderEndpoint = "https://api.schwabapi.com/trader/v1"

	// DefaultRequestsPerMinute matches the ceiling Schwab applies to an
	// individual app registration.
	DefaultRequestsPerMinute = 120
)

// CredentialSource hands out a currently valid access token. auth.Checker
// implements it.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client wraps the Schwab REST surface. The base URLs default to the
// production endpoints and are overridable for tests.
type Client struct {
	MarketDataURL string
	TraderURL     string

	creds      CredentialSource
	httpClient *http.Client
	limiter    *RateLimiter
}

// Option adjusts a Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per minute. Zero or negative disables
// the limiter.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(perMinute) }
}

// New builds a Client around a credential source.
func New(creds CredentialSource, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, autherr.New(autherr.Config, "credential source is required", nil)
	}
	c := &Client{
		MarketDataURL: MarketDataEndpoint,
		TraderURL:     TraderEndpoint,
		creds:         creds,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       NewRateLimiter(DefaultRequestsPerMinute),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c, nil
}

// call obtains a fresh access token, attaches it as a bearer header, and
// sends one request. The token is never cached between calls; the credential
// source decides whether a refresh is due.
func (c *Client) call(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	accessToken, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("url", urlStr).Msg("Failed to create request")
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", urlStr).Msg("Sending API request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("url", urlStr).Msg("API request failed")
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := readBodyPreview(resp.Body)
		closeResponseBody(resp)
		log.Error().Int("status", resp.StatusCode).Str("url", urlStr).Str("body", preview).Msg("API request returned non-OK status")
		return nil, fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, preview)
	}
	return resp, nil
}

// getJSON performs a GET and decodes the JSON payload into out.
func (c *Client) getJSON(ctx context.Context, urlStr string, out interface{}) error {
	resp, err := c.call(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	defer closeResponseBody(resp)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("url", urlStr).Msg("Failed to read response body")
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Error().Err(err).Str("body_preview", string(payload[:min(len(payload), 200)])).Msg("Failed to parse API response")
		return err
	}
	return nil
}

func readBodyPreview(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return string(b)
}

func closeResponseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 1024*1024)
	_ = resp.Body.Close()
}
