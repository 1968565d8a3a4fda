// retry/http.go
package retry

import (
	"bytes"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// HTTPConfig adds HTTP policy to Config.
type HTTPConfig struct {
	Config

	// RetryStatusCodes defaults to 429, 500, 502, 503 and 504.
	RetryStatusCodes []int

	// MaxRetryAfter caps a server's Retry-After. Default: 30 seconds.
	MaxRetryAfter time.Duration
}

// DefaultHTTPConfig returns DefaultConfig with the standard retryable statuses.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Config:           DefaultConfig(),
		RetryStatusCodes: []int{429, 500, 502, 503, 504},
		MaxRetryAfter:    30 * time.Second,
	}
}

// Transport retries round trips that fail to connect or answer with a
// retryable status. The final response is returned as-is, so callers
// still see the last status when retries are exhausted.
type Transport struct {
	// Base defaults to http.DefaultTransport.
	Base   http.RoundTripper
	Config HTTPConfig
}

// NewClient returns an http.Client using a retrying Transport over base.
func NewClient(base http.RoundTripper, cfg HTTPConfig, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Base: base, Config: cfg},
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	cfg := t.Config
	cfg.Config = cfg.Config.withDefaults()
	if len(cfg.RetryStatusCodes) == 0 {
		cfg.RetryStatusCodes = DefaultHTTPConfig().RetryStatusCodes
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = DefaultHTTPConfig().MaxRetryAfter
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.Body, _ = req.GetBody()
	}

	b := newBackoff(cfg.Config)
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := base.RoundTrip(req)
		retryable := err != nil && ctx.Err() == nil && cfg.RetryIf(err)
		if err == nil {
			retryable = slices.Contains(cfg.RetryStatusCodes, resp.StatusCode)
		}
		if !retryable || attempt >= cfg.MaxAttempts {
			return resp, err
		}

		d := b.delay()
		if resp != nil {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				d = min(ra, cfg.MaxRetryAfter)
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, d)
		}
		if !sleep(ctx, d) {
			return nil, ctx.Err()
		}
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
