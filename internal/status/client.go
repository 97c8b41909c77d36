// Package status fetches exchange status/time endpoints. RateLimit
// hooks pace outbound sends against the exchange's own clock, so they
// poll these endpoints instead of trusting a local timer.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"tidal/internal/circuitbreaker"
)

// TimeParser extracts a server timestamp from a raw endpoint response.
type TimeParser func(body []byte) (time.Time, error)

// Config tunes the shared status client.
type Config struct {
	// Timeout bounds each status request.
	Timeout time.Duration
	// PollLimit caps status requests per second across all connections.
	// The endpoints are REST endpoints with their own rate limits.
	PollLimit rate.Limit
	// PollBurst is the limiter burst size.
	PollBurst int
	// FailThreshold and BreakerTimeout configure the breaker that stops
	// the client from hammering a dead endpoint.
	FailThreshold  int
	BreakerTimeout time.Duration
}

// DefaultConfig returns the standard polling guard rails.
func DefaultConfig() Config {
	return Config{
		Timeout:        5 * time.Second,
		PollLimit:      rate.Limit(10),
		PollBurst:      10,
		FailThreshold:  5,
		BreakerTimeout: 30 * time.Second,
	}
}

// Client is a rate-limited, breaker-guarded HTTP client for server
// time lookups. One instance is shared by every connection a session
// opens. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	logger  zerolog.Logger
}

// NewClient creates a status client with the given configuration.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(cfg.Timeout)

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(cfg.PollLimit, cfg.PollBurst),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    cfg.FailThreshold,
			SuccessThreshold: 1,
			Timeout:          cfg.BreakerTimeout,
		}),
		logger: logger,
	}
}

// ServerTime performs one GET against url and parses the server
// timestamp out of the body. Errors propagate to the caller; a run of
// failures opens the breaker and subsequent calls fail fast until its
// timeout elapses.
func (c *Client) ServerTime(ctx context.Context, url string, parse TimeParser) (time.Time, error) {
	if !c.breaker.Allow() {
		return time.Time{}, fmt.Errorf("status endpoint %s: circuit breaker open", url)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, fmt.Errorf("status poll limiter: %w", err)
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		c.breaker.Record(false)
		return time.Time{}, fmt.Errorf("status request %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		c.breaker.Record(false)
		return time.Time{}, fmt.Errorf("status request %s: HTTP %d", url, resp.StatusCode())
	}

	ts, err := parse(resp.Bytes())
	if err != nil {
		c.breaker.Record(false)
		c.logger.Warn().Err(err).Str("url", url).Msg("unparseable status response")
		return time.Time{}, fmt.Errorf("parse server time from %s: %w", url, err)
	}

	c.breaker.Record(true)
	return ts, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}
