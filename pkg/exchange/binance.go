package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

const binanceTimeURL = "https://api.binance.com/api/v3/time"

// BinanceMessageSign signs a ws-api request in place: it injects the
// API key and a millisecond timestamp into params, then adds the
// HMAC-SHA256 signature over the sorted "k=v&..." join. Payloads that
// are not ws-api requests with object params pass through untouched.
func BinanceMessageSign(c hook.Conn, creds hook.Credentials, payload map[string]any) {
	if !strings.HasPrefix(c.Path(), "/ws-api") {
		return
	}
	params, ok := payload["params"].(map[string]any)
	if !ok {
		return
	}

	params["apiKey"] = creds.APIKey
	params["timestamp"] = now().UnixMilli()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	params["signature"] = signHex(creds.Secret, strings.Join(parts, "&"))
}

// BinanceRateLimit paces sends against the spot stream's limit of five
// incoming messages per second, observed via the exchange's own clock.
func BinanceRateLimit(ctx context.Context, c hook.Conn, send func() error) error {
	return paceByServerTime(ctx, c, send, pacer{
		url:       binanceTimeURL,
		interval:  250 * time.Millisecond,
		threshold: 250 * time.Millisecond,
		strict:    true,
		parse:     parseBinanceTime,
	})
}

func parseBinanceTime(raw []byte) (time.Time, error) {
	var body struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return time.Time{}, fmt.Errorf("decode time response: %w", err)
	}
	return time.UnixMilli(body.ServerTime), nil
}
