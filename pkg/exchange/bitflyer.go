package exchange

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

// BitflyerAuth performs bitFlyer Lightning's JSON-RPC auth call.
func BitflyerAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	timestamp := now().UnixMilli()
	nonce := newNonce()
	signature := signHex(creds.Secret, fmt.Sprintf("%d%s", timestamp, nonce))
	req := map[string]any{
		"method": "auth",
		"params": map[string]any{
			"api_key":   creds.APIKey,
			"timestamp": timestamp,
			"nonce":     nonce,
			"signature": signature,
		},
		"id": "auth",
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
		if id, ok := data["id"]; ok && id == "auth" {
			if _, rejected := data["error"]; rejected {
				return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
			}
			return nil
		}
	}
}
