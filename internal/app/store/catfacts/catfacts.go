// Package catfacts fetches the facts listed on the home view.
package catfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/pantry/cache"
	"github.com/dalemusser/whiskers/pantry/requestid"
	"github.com/dalemusser/whiskers/pantry/retry"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public cat facts API.
const DefaultBaseURL = "https://catfact.ninja"

// Config configures a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Limit is the number of facts per page; defaults to 5.
	Limit int
	// TTL is how long a fetched page is reused; defaults to 10m.
	TTL time.Duration
	// Timeout bounds one fetch including retries; defaults to 10s.
	Timeout time.Duration
}

// Client fetches cat facts over HTTP and memoizes them in a cache.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  cache.Cache
	logger *zap.Logger
}

// New builds a Client. base is the transport under the retry layer
// (nil means http.DefaultTransport). Outgoing calls carry the inbound
// request ID.
func New(cfg Config, c cache.Cache, base http.RoundTripper, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := retry.DefaultHTTPConfig()
	hc.MaxAttempts = 3
	hc.InitialDelay = 200 * time.Millisecond
	return &Client{
		cfg:    cfg,
		http:   retry.NewClient(&requestid.Transport{Base: base}, hc, cfg.Timeout),
		cache:  c,
		logger: logger,
	}
}

type page struct {
	Data []models.CatFact `json:"data"`
}

func (c *Client) cacheKey() string {
	return "catfacts:" + strconv.Itoa(c.cfg.Limit)
}

// List returns the current page of facts, served from cache when fresh.
func (c *Client) List(ctx context.Context) ([]models.CatFact, error) {
	facts, err := cache.GetOrSetJSON(ctx, c.cache, c.cacheKey(), c.cfg.TTL, c.fetch)
	if err != nil && facts != nil {
		// fetched but not stored
		c.logger.Warn("cat facts cache store failed", zap.Error(err), requestid.Field(ctx))
		return facts, nil
	}
	return facts, err
}

func (c *Client) fetch(ctx context.Context) ([]models.CatFact, error) {
	u := c.cfg.BaseURL + "/facts?" + url.Values{"limit": {strconv.Itoa(c.cfg.Limit)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cat facts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cat facts: unexpected status %d", resp.StatusCode)
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode cat facts: %w", err)
	}
	c.logger.Debug("cat facts fetched", zap.Int("count", len(p.Data)), requestid.Field(ctx))
	if p.Data == nil {
		p.Data = []models.CatFact{}
	}
	return p.Data, nil
}
