package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

const gmocoinStatusURL = "https://api.coin.z.com/public/v1/status"

// GMOCoinRateLimit paces sends against GMO Coin's one-command-per-
// second subscription limit, observed via the status endpoint's
// response time.
func GMOCoinRateLimit(ctx context.Context, c hook.Conn, send func() error) error {
	return paceByServerTime(ctx, c, send, pacer{
		url:       gmocoinStatusURL,
		interval:  time.Second,
		threshold: time.Second,
		parse:     parseGMOCoinTime,
	})
}

func parseGMOCoinTime(raw []byte) (time.Time, error) {
	var body struct {
		ResponseTime string `json:"responsetime"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return time.Time{}, fmt.Errorf("decode status response: %w", err)
	}
	ts := strings.TrimSuffix(body.ResponseTime, "Z")
	t, err := time.Parse("2006-01-02T15:04:05.999", ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse responsetime: %w", err)
	}
	return t, nil
}

// pacer describes one server-time pacing scheme: poll url every
// interval until the server-observed delta since the send crosses
// threshold.
type pacer struct {
	url       string
	interval  time.Duration
	threshold time.Duration
	// strict requires the delta to exceed the threshold rather than
	// merely reach it.
	strict bool
	parse  func([]byte) (time.Time, error)
}

func (p pacer) met(delta time.Duration) bool {
	if p.strict {
		return delta > p.threshold
	}
	return delta >= p.threshold
}

// paceByServerTime holds the connection's send lock across the send
// and the pacing wait so concurrent senders queue behind the window.
// Poll failures propagate: the shared status client's breaker fails
// them fast when the endpoint is down, and the supervisor recycles.
func paceByServerTime(ctx context.Context, c hook.Conn, send func() error, p pacer) error {
	if err := c.AcquireSend(ctx); err != nil {
		return err
	}
	defer c.ReleaseSend()

	if err := send(); err != nil {
		return err
	}

	before, err := c.ServerTime(ctx, p.url, p.parse)
	if err != nil {
		return fmt.Errorf("pacing poll %s: %w", p.url, err)
	}
	for {
		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
		after, err := c.ServerTime(ctx, p.url, p.parse)
		if err != nil {
			return fmt.Errorf("pacing poll %s: %w", p.url, err)
		}
		if p.met(after.Sub(before)) {
			return nil
		}
	}
}
