package stream

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"tidal/internal/backoff"
)

// TextHandler receives an inbound text frame.
type TextHandler func(text string, c *Conn)

// BytesHandler receives an inbound binary frame.
type BytesHandler func(data []byte, c *Conn)

// JSONHandler receives an inbound frame decoded as JSON.
type JSONHandler func(v any, c *Conn)

// SendPlan is the fixed set of outbound payloads issued, in order,
// immediately after every successful (re)connect. It is never mutated
// by hook handshakes.
type SendPlan struct {
	Text  []string
	Bytes [][]byte
	JSON  []any
}

func (p SendPlan) empty() bool {
	return len(p.Text) == 0 && len(p.Bytes) == 0 && len(p.JSON) == 0
}

// HandlerPlan is the set of registered inbound callbacks, keyed by
// payload kind. Registration order is fan-out order.
type HandlerPlan struct {
	Text  []TextHandler
	Bytes []BytesHandler
	JSON  []JSONHandler
}

// Config holds the per-stream settings assembled from options and
// validated at Open time.
type Config struct {
	URL     string `validate:"required,url"`
	Backoff backoff.Config
	// Auth marks the stream as opened with authenticated intent. An
	// auth hook only starts when this is set and credentials resolve.
	Auth             bool
	HandshakeTimeout time.Duration `validate:"min=0"`
	Header           http.Header
}

var validate = validator.New()

func (c *Config) validateConfig() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	b := c.Backoff
	if b.Min <= 0 || b.Max <= 0 || b.Initial < 0 {
		return fmt.Errorf("backoff durations must be positive")
	}
	if b.Min >= b.Max {
		return fmt.Errorf("backoff min (%v) must be below max (%v)", b.Min, b.Max)
	}
	if b.Factor <= 1 {
		return fmt.Errorf("backoff factor (%v) must exceed 1", b.Factor)
	}
	return nil
}

type streamConfig struct {
	Config
	send    SendPlan
	handler HandlerPlan
}

// Option configures one stream at Open time.
type Option func(*streamConfig)

// WithSendText appends text payloads to the send plan.
func WithSendText(payloads ...string) Option {
	return func(c *streamConfig) { c.send.Text = append(c.send.Text, payloads...) }
}

// WithSendBytes appends binary payloads to the send plan.
func WithSendBytes(payloads ...[]byte) Option {
	return func(c *streamConfig) { c.send.Bytes = append(c.send.Bytes, payloads...) }
}

// WithSendJSON appends JSON payloads to the send plan. Payloads of
// type map[string]any pass through the host's MessageSign hook before
// transmission.
func WithSendJSON(payloads ...any) Option {
	return func(c *streamConfig) { c.send.JSON = append(c.send.JSON, payloads...) }
}

// WithTextHandler registers text frame handlers.
func WithTextHandler(handlers ...TextHandler) Option {
	return func(c *streamConfig) { c.handler.Text = append(c.handler.Text, handlers...) }
}

// WithBytesHandler registers binary frame handlers.
func WithBytesHandler(handlers ...BytesHandler) Option {
	return func(c *streamConfig) { c.handler.Bytes = append(c.handler.Bytes, handlers...) }
}

// WithJSONHandler registers JSON frame handlers. Registering at least
// one turns on JSON decoding of every inbound frame.
func WithJSONHandler(handlers ...JSONHandler) Option {
	return func(c *streamConfig) { c.handler.JSON = append(c.handler.JSON, handlers...) }
}

// WithBackoff overrides the reconnect backoff schedule.
func WithBackoff(cfg backoff.Config) Option {
	return func(c *streamConfig) { c.Backoff = cfg }
}

// WithoutAuth opens the stream for public data only: the auth hook is
// skipped even when one is registered for the host.
func WithoutAuth() Option {
	return func(c *streamConfig) { c.Auth = false }
}

// WithHandshakeTimeout bounds the opening WebSocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *streamConfig) { c.HandshakeTimeout = d }
}

// WithHeader sets extra headers for the handshake request.
func WithHeader(h http.Header) Option {
	return func(c *streamConfig) { c.Header = h }
}
