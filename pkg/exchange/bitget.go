package exchange

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

// BitgetAuth performs the Bitget login op.
func BitgetAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	timestamp := now().Unix()
	signature := signBase64(creds.Secret, fmt.Sprintf("%dGET/user/verify", timestamp))
	req := map[string]any{
		"op": "login",
		"args": []any{map[string]any{
			"api_key":    creds.APIKey,
			"passphrase": creds.Passphrase,
			"timestamp":  fmt.Sprintf("%d", timestamp),
			"sign":       signature,
		}},
	}
	if err := c.SendJSONSelf(ctx, req); err != nil {
		return err
	}

	for {
		raw, err := c.NextText(ctx)
		if err != nil {
			return err
		}
		// Bitget answers its text-level pings with a bare "pong".
		var data map[string]any
		if err := sonic.Unmarshal(raw, &data); err != nil {
			continue
		}
		switch data["event"] {
		case "login":
			return nil
		case "error":
			return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
		}
	}
}
