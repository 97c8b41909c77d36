package exchange

import (
	"context"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

// OKXAuth performs the OKX login op. Connections to the public channel
// endpoint skip it.
func OKXAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	if strings.HasSuffix(c.Path(), "public") {
		return nil
	}

	timestamp := strconv.FormatInt(now().Unix(), 10)
	signature := signBase64(creds.Secret, timestamp+"GET/users/self/verify")
	req := map[string]any{
		"op": "login",
		"args": []any{map[string]any{
			"apiKey":     creds.APIKey,
			"passphrase": creds.Passphrase,
			"timestamp":  timestamp,
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
		// OKX also answers heartbeats with a bare "pong" here.
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
