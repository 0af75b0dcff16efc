// Package nodesapi implements the platform repositories over the HTTP/JSON
// API of the trading platform.
package nodesapi

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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
	"github.com/kilianp07/flexmarket/infra/logger"
)

const maxErrorBody = 512

// Client sends requests to the platform API.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     logger.Logger
	reg     prometheus.Registerer
	metrics *requestMetrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, typically by an authenticating one.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger replaces the component logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRegisterer registers request metrics on reg instead of the default
// Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.reg = reg }
}

// New creates a Client for the configured base URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{base: base}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout()}
	}
	if c.log == nil {
		c.log = logger.New("platform")
	}
	if c.metrics, err = newRequestMetrics(c.reg); err != nil {
		return nil, fmt.Errorf("platform metrics: %w", err)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// Platform returns the repositories backed by this client.
func (c *Client) Platform() *platform.Client {
	return &platform.Client{
		Users:                     users{repository[model.User]{c, "users"}},
		Organizations:             repository[model.Organization]{c, "organizations"},
		Subscriptions:             repository[model.Subscription]{c, "subscriptions"},
		Memberships:               repository[model.Membership]{c, "memberships"},
		GridNodes:                 gridNodes{repository[model.GridNode]{c, "grid-nodes"}},
		GridNodeLinks:             repository[model.GridNodeLink]{c, "grid-node-links"},
		GridLocations:             repository[model.GridLocation]{c, "grid-locations"},
		Markets:                   repository[model.Market]{c, "markets"},
		Orders:                    repository[model.Order]{c, "orders"},
		Trades:                    repository[model.Trade]{c, "trades"},
		Assets:                    repository[model.Asset]{c, "assets"},
		AssetTypes:                repository[model.AssetType]{c, "asset-types"},
		AssetGridAssignments:      repository[model.AssetGridAssignment]{c, "asset-grid-assignments"},
		AssetPortfolios:           repository[model.AssetPortfolio]{c, "asset-portfolios"},
		AssetPortfolioAssignments: repository[model.AssetPortfolioAssignment]{c, "asset-portfolio-assignments"},
	}
}

// do sends one request below collection and decodes the JSON answer into out
// when out is not nil.
func (c *Client) do(ctx context.Context, method, collection string, segments []string, query url.Values, in, out any) error {
	u := c.base.JoinPath(append([]string{collection}, segments...)...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", collection, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.observe(collection, method, "error", elapsed)
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.observe(collection, method, strconv.Itoa(resp.StatusCode), elapsed)
	c.log.Debugw("platform request", map[string]any{
		"method":     method,
		"path":       u.Path,
		"status":     resp.StatusCode,
		"latency_ms": elapsed.Milliseconds(),
	})

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, u.Path, platform.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, u.Path, platform.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &platform.APIError{Method: method, Path: u.Path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(excerpt))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", collection, err)
	}
	return nil
}
