package exchange

import (
	"context"
	"fmt"
	"time"

	"tidal/pkg/hook"
)

// heartbeatLoop sends immediately and then on every tick until the
// connection ends. A send failure means the socket is gone, so the
// loop just stops.
func heartbeatLoop(ctx context.Context, interval time.Duration, send func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := send(ctx); err != nil {
			return
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

// BybitHeartbeat sends the Bybit application-level ping every 30s.
func BybitHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 30*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, `{"op":"ping"}`)
	})
}

// BitbankHeartbeat sends the bitbank (Socket.IO) ping every 15s.
func BitbankHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 15*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, "2")
	})
}

// BinanceHeartbeat sends an unsolicited protocol pong every 60s, per
// Binance's keep-alive guidance.
func BinanceHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, time.Minute, func(ctx context.Context) error {
		return c.SendPong(ctx)
	})
}

// PhemexHeartbeat sends the Phemex server.ping request every 10s.
func PhemexHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 10*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, `{"method":"server.ping","params":[],"id":123}`)
	})
}

// OKXHeartbeat sends the literal "ping" every 15s.
func OKXHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 15*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, "ping")
	})
}

// BitgetHeartbeat sends the literal "ping" every 25s.
func BitgetHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 25*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, "ping")
	})
}

// MEXCHeartbeat sends the MEXC contract ping every 10s.
func MEXCHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 10*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, `{"method":"ping"}`)
	})
}

// KuCoinHeartbeat sends the KuCoin ping, with a fresh id each time,
// every 15s.
func KuCoinHeartbeat(ctx context.Context, c hook.Conn) {
	heartbeatLoop(ctx, 15*time.Second, func(ctx context.Context) error {
		return c.SendText(ctx, fmt.Sprintf(`{"id": "%s", "type": "ping"}`, newPingID()))
	})
}
