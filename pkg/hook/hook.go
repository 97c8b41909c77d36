// Package hook defines the per-host extension points a managed
// connection can activate: keep-alive heartbeats, post-connect auth
// handshakes, outbound message signing, and send rate limiting.
// Exchanges differ only in the hook implementations they register;
// the connection lifecycle never branches on an exchange name.
package hook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tidal/internal/keyring"
	"tidal/internal/status"
)

// Credentials is one account's API authentication material, resolved
// from the session's credential store at hook-invocation time.
type Credentials = keyring.Credentials

// Conn is the view of a managed connection exposed to hooks.
type Conn interface {
	// Host is the remote host the connection was opened against,
	// without the port. All registry lookups key on it.
	Host() string
	// Path is the request path of the connection URL. Some hooks are
	// no-ops on public endpoints and decide by path.
	Path() string

	// SendText writes a text frame, paced by the host's RateLimit hook
	// when one is registered.
	SendText(ctx context.Context, text string) error
	// SendBytes writes a binary frame, paced like SendText.
	SendBytes(ctx context.Context, data []byte) error
	// SendJSONSelf writes a JSON payload without waiting on the auth
	// gate. Auth hooks use it for their own handshake; everything else
	// goes through the gated send path.
	SendJSONSelf(ctx context.Context, v any) error
	// SendPong writes a protocol-level pong frame.
	SendPong(ctx context.Context) error

	// NextText returns the next inbound text frame while an auth
	// handshake is reading responses. It fails when the socket closes.
	NextText(ctx context.Context) ([]byte, error)

	// AcquireSend takes the connection's send-serialization lock.
	// RateLimit hooks hold it across the send and the pacing wait so
	// concurrent callers are strictly one-at-a-time on the wire.
	AcquireSend(ctx context.Context) error
	// ReleaseSend releases the send-serialization lock.
	ReleaseSend()

	// ServerTime polls an exchange status/time endpoint through the
	// session's shared status client.
	ServerTime(ctx context.Context, url string, parse status.TimeParser) (time.Time, error)

	// Closed reports whether the underlying socket has ended.
	Closed() bool
	// Logger returns the connection's logger.
	Logger() zerolog.Logger
}

// Heartbeat sends keep-alive payloads until the socket closes. A send
// failure ends the activity without surfacing anywhere.
type Heartbeat func(ctx context.Context, c Conn)

// Auth performs the post-connect handshake. It returns nil on the
// exchange's success predicate, an *AuthError on its explicit failure
// predicate, and any other error when the socket dies first. It is
// never retried within a connection cycle.
type Auth func(ctx context.Context, c Conn, creds keyring.Credentials) error

// MessageSign mutates an outbound JSON payload in place before it is
// sent. Implementations no-op unless the payload carries the field
// shape they recognize.
type MessageSign func(c Conn, creds keyring.Credentials, payload map[string]any)

// RateLimit wraps one physical send so it completes no faster than the
// exchange's server-observed pacing window allows.
type RateLimit func(ctx context.Context, c Conn, send func() error) error

// AuthError is an auth handshake rejected by the exchange. The
// connection parks authenticated sends behind it instead of letting
// them stall forever.
type AuthError struct {
	// Host is the exchange host that rejected the handshake.
	Host string
	// Detail is the rejection payload, verbatim.
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected by %s: %s", e.Host, e.Detail)
}
