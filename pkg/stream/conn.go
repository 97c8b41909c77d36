package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"tidal/internal/keyring"
	"tidal/internal/status"
	"tidal/internal/ws"
	"tidal/pkg/hook"
)

// authTapBuffer bounds the frames queued for a running auth handshake.
const authTapBuffer = 256

// Conn is one managed connection: a live socket plus the background
// activities its host's hooks require. Heartbeat and auth run as
// goroutines scoped to the socket's lifetime and never outlive it.
// Conn implements hook.Conn.
type Conn struct {
	host   string
	path   string
	logger zerolog.Logger

	store  *keyring.Store
	reg    *hook.Registry
	status *status.Client

	sock   *ws.Socket
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sendSem serializes rate-limited sends; capacity one.
	sendSem chan struct{}

	authIntent bool
	authOn     atomic.Bool
	authDone   chan struct{}
	authErr    error
	tap        chan []byte
}

func newConn(host, path string, authIntent bool, store *keyring.Store, reg *hook.Registry, st *status.Client, logger zerolog.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		host:       host,
		path:       path,
		logger:     logger,
		store:      store,
		reg:        reg,
		status:     st,
		ctx:        ctx,
		cancel:     cancel,
		sendSem:    make(chan struct{}, 1),
		authIntent: authIntent,
		authDone:   make(chan struct{}),
		tap:        make(chan []byte, authTapBuffer),
	}
}

// start binds the socket and launches the host's background hooks. It
// must run before the socket's read loop starts, so frames never reach
// a connection whose socket is still unbound. Credentials are resolved
// here, at hook-invocation time, so rotated keys take effect on the
// next reconnect.
func (c *Conn) start(sock *ws.Socket) {
	c.sock = sock

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-sock.Done()
		c.cancel()
	}()

	if hb, ok := c.reg.HeartbeatFor(c.host); ok {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			hb(c.ctx, c)
		}()
	}

	entry, ok := c.reg.AuthFor(c.host)
	if !ok || !c.authIntent {
		close(c.authDone)
		return
	}
	creds, ok := c.store.Lookup(entry.Account)
	if !ok {
		// No credentials: the connection serves public data only.
		c.logger.Debug().Str("account", entry.Account).Msg("no credentials, skipping auth")
		close(c.authDone)
		return
	}

	c.logger.Debug().Str("account", entry.Account).Str("api_key", creds.Masked()).Msg("starting auth handshake")
	c.authOn.Store(true)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.authDone)
		defer c.authOn.Store(false)

		err := entry.Func(c.ctx, c, creds)
		var authErr *hook.AuthError
		switch {
		case err == nil:
		case errors.As(err, &authErr):
			// Explicit rejection: park authenticated sends behind a
			// typed error rather than stalling them forever.
			c.authErr = err
			c.logger.Warn().Err(err).Str("host", c.host).Msg("auth handshake rejected")
		default:
			// Socket died mid-handshake; the cycle is ending anyway.
			c.logger.Debug().Err(err).Str("host", c.host).Msg("auth handshake interrupted")
		}
	}()
}

// teardown cancels the background activities and waits for them. The
// socket must already be closed or closing.
func (c *Conn) teardown() {
	c.cancel()
	c.wg.Wait()
}

// feed accepts one inbound frame from the transport read loop. Text
// frames are mirrored to a running auth handshake before dispatch.
func (c *Conn) feed(f ws.Frame) {
	if f.Kind == ws.FrameText && c.authOn.Load() {
		select {
		case c.tap <- f.Data:
		default:
			c.logger.Warn().Str("host", c.host).Msg("auth tap full, frame not mirrored")
		}
	}
}

// waitAuth blocks non-self JSON sends until the auth activity (if any)
// has completed, so no authenticated subscription races ahead of login.
func (c *Conn) waitAuth(ctx context.Context) error {
	select {
	case <-c.authDone:
		if c.authErr != nil {
			return fmt.Errorf("%w: %w", ErrAuthFailed, c.authErr)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// transmit performs one physical send, wrapped by the host's RateLimit
// hook when one is registered.
func (c *Conn) transmit(ctx context.Context, send func() error) error {
	if rl, ok := c.reg.RateLimitFor(c.host); ok {
		return rl(ctx, c, send)
	}
	return send()
}

// SendText writes a text frame.
func (c *Conn) SendText(ctx context.Context, text string) error {
	return c.transmit(ctx, func() error { return c.sock.SendText(text) })
}

// SendBytes writes a binary frame.
func (c *Conn) SendBytes(ctx context.Context, data []byte) error {
	return c.transmit(ctx, func() error { return c.sock.SendBytes(data) })
}

// SendJSON writes a JSON payload. The send waits for the auth
// handshake to complete, is signed by the host's MessageSign hook when
// the payload shape allows it, and is paced by the RateLimit hook.
func (c *Conn) SendJSON(ctx context.Context, v any) error {
	return c.sendJSON(ctx, v, false)
}

// SendJSONSelf writes a JSON payload without waiting on the auth gate.
// It exists so auth hooks can send their own handshake.
func (c *Conn) SendJSONSelf(ctx context.Context, v any) error {
	return c.sendJSON(ctx, v, true)
}

func (c *Conn) sendJSON(ctx context.Context, v any, self bool) error {
	if !self {
		if err := c.waitAuth(ctx); err != nil {
			return err
		}
	}

	if entry, ok := c.reg.SignFor(c.host); ok {
		if payload, isMap := v.(map[string]any); isMap {
			if creds, haveCreds := c.store.Lookup(entry.Account); haveCreds {
				entry.Func(c, creds, payload)
			}
		}
	}

	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.transmit(ctx, func() error { return c.sock.SendText(string(data)) })
}

// SendPong writes a protocol-level pong frame.
func (c *Conn) SendPong(ctx context.Context) error {
	return c.transmit(ctx, func() error { return c.sock.SendPong() })
}

// NextText returns the next inbound text frame mirrored to the auth
// handshake. Only meaningful from inside an auth hook.
func (c *Conn) NextText(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.tap:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrNotConnected
	}
}

// AcquireSend takes the send-serialization lock.
func (c *Conn) AcquireSend(ctx context.Context) error {
	select {
	case c.sendSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// ReleaseSend releases the send-serialization lock.
func (c *Conn) ReleaseSend() {
	<-c.sendSem
}

// ServerTime polls a status/time endpoint through the session's shared
// status client.
func (c *Conn) ServerTime(ctx context.Context, url string, parse status.TimeParser) (time.Time, error) {
	return c.status.ServerTime(ctx, url, parse)
}

// Host returns the connection's remote host, without the port.
func (c *Conn) Host() string { return c.host }

// Path returns the request path of the connection URL.
func (c *Conn) Path() string { return c.path }

// Closed reports whether the underlying socket has ended.
func (c *Conn) Closed() bool { return c.sock == nil || c.sock.Closed() }

// Done is closed when the connection's socket ends.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// Logger returns the connection's logger.
func (c *Conn) Logger() zerolog.Logger { return c.logger }

var _ hook.Conn = (*Conn)(nil)
