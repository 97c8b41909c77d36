package exchange

import (
	"context"
	"strconv"

	"tidal/pkg/hook"
)

// MEXCAuth sends the MEXC contract login request. MEXC does not ack
// the login on a dedicated channel, so the request is fire-and-forget.
func MEXCAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	timestamp := strconv.FormatInt(now().Unix(), 10)
	signature := signHex(creds.Secret, creds.APIKey+timestamp)
	req := map[string]any{
		"method": "login",
		"param": map[string]any{
			"apiKey":    creds.APIKey,
			"reqTime":   timestamp,
			"signature": signature,
		},
	}
	return c.SendJSONSelf(ctx, req)
}
