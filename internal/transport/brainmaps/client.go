// Package brainmaps is the authenticated HTTP transport for the brainmaps
// service: URL construction, JSON and raw-body requests, and mapping of
// non-success statuses to domain errors.
package brainmaps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/schlegelp/brainmappy/internal/domain"
	"github.com/schlegelp/brainmappy/internal/logger"
	"github.com/schlegelp/brainmappy/internal/metrics"
	"github.com/schlegelp/brainmappy/internal/version"
)

// DefaultBaseURL is the production brainmaps endpoint.
const DefaultBaseURL = "https://brainmaps.googleapis.com"

// maxErrorBodyBytes caps how much of an error response is kept in the error.
const maxErrorBodyBytes = 512

var userAgent = "brainmappy/" + version.Version

// Config holds the transport settings.
type Config struct {
	// BaseURL overrides DefaultBaseURL (used in tests and for proxies).
	BaseURL string
	// TokenSource supplies OAuth2 credentials. Ignored when HTTPClient is set.
	TokenSource oauth2.TokenSource
	// HTTPClient, when set, is used as-is. It must already carry auth.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client performs authenticated requests against the brainmaps service.
// It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// New creates a transport client. With neither an HTTP client nor a token
// source configured, requests go out unauthenticated; the service will
// reject them, but tests against local servers work.
func New(cfg *Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		if cfg.TokenSource != nil {
			hc = oauth2.NewClient(context.Background(), cfg.TokenSource)
		} else {
			hc = &http.Client{Timeout: 5 * time.Minute}
		}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{base: base, http: hc, logger: log}, nil
}

// URL joins path segments onto the base URL, with optional query parameters.
func (c *Client) URL(segments []string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.Join(segments, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// GetJSON performs a GET and decodes the JSON response into out.
// op is a low-cardinality operation name used as a metrics label.
func (c *Client) GetJSON(ctx context.Context, op string, segments []string, query url.Values, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, c.URL(segments, query), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, domain.ErrUnexpectedResponse)
	}
	return nil
}

// PostJSON performs a POST with a JSON body and decodes the JSON response
// into out.
func (c *Client) PostJSON(ctx context.Context, op string, segments []string, reqBody, out any) error {
	body, err := c.PostRaw(ctx, op, segments, reqBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, domain.ErrUnexpectedResponse)
	}
	return nil
}

// PostRaw performs a POST with a JSON body and returns the raw response
// bytes. Mesh batch responses are binary, not JSON.
func (c *Client) PostRaw(ctx context.Context, op string, segments []string, reqBody any) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, c.URL(segments, nil), payload)
}

func (c *Client) do(ctx context.Context, op, method, u string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)

	log := c.logger
	if l := logger.FromContext(ctx); l != nil {
		log = l
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, op, "error").Inc()
		return nil, fmt.Errorf("%s: %v: %w", op, err, domain.ErrTransport)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, op, "error").Inc()
		return nil, fmt.Errorf("%s: read response: %v: %w", op, err, domain.ErrTransport)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.APIRequestsTotal.WithLabelValues(method, op, strconv.Itoa(resp.StatusCode)).Inc()
		log.Warn("brainmaps request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", duration))
		return nil, fmt.Errorf("%s: %w", op, domain.NewStatusError(resp.StatusCode, trimBody(body)))
	}

	metrics.APIRequestsTotal.WithLabelValues(method, op, "success").Inc()
	metrics.APIRequestDuration.WithLabelValues(method, op).Observe(duration.Seconds())
	log.Debug("brainmaps request",
		zap.String("op", op),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", duration))

	return body, nil
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes]
	}
	return s
}
