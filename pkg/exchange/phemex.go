package exchange

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"

	"tidal/pkg/hook"
)

// PhemexAuth performs Phemex's user.auth request. The token expiry is
// one minute out; Phemex acks with result {"status":"success"}.
func PhemexAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	expiry := now().Unix() + 60
	signature := signHex(creds.Secret, fmt.Sprintf("%s%d", creds.APIKey, expiry))
	req := map[string]any{
		"method": "user.auth",
		"params": []any{"API", creds.APIKey, signature, expiry},
		"id":     123,
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
		if errVal, ok := data["error"]; ok && errVal != nil {
			return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
		}
		if reflect.DeepEqual(data["result"], map[string]any{"status": "success"}) {
			return nil
		}
	}
}
