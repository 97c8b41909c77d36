package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

// BybitAuth performs Bybit's WebSocket login. Public endpoints (any
// path containing "public", plus the spot v1 quote path) skip the
// handshake entirely.
func BybitAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	if strings.Contains(c.Path(), "public") || strings.HasPrefix(c.Path(), "/spot/quote") {
		return nil
	}

	expires := now().UnixMilli() + 5000
	signature := signHex(creds.Secret, fmt.Sprintf("GET/realtime%d", expires))
	req := map[string]any{
		"op":   "auth",
		"args": []any{creds.APIKey, expires, signature},
	}
	if err := c.SendJSONSelf(ctx, req); err != nil {
		return err
	}

	for {
		raw, err := c.NextText(ctx)
		if err != nil {
			return err
		}
		var data map[string]any
		if err := sonic.Unmarshal(raw, &data); err != nil {
			continue
		}
		if success, ok := data["success"]; ok {
			if b, _ := success.(bool); b {
				return nil
			}
			return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
		}
		// Spot v1 acks with an "auth" key instead of "success".
		if _, ok := data["auth"]; ok {
			return nil
		}
		if _, ok := data["code"]; ok {
			return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
		}
	}
}
