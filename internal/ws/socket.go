// Package ws wraps one transport-level WebSocket connection. It adapts
// gws's callback-driven read loop into frame/close events and guards
// writes after closure. Reconnection policy lives with the caller.
package ws

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// FrameKind classifies an inbound data frame.
type FrameKind int

const (
	// FrameText is a UTF-8 text frame.
	FrameText FrameKind = iota
	// FrameBinary is a binary frame.
	FrameBinary
)

// Frame is one inbound data frame. Data is an owned copy, valid after
// the read callback returns.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Events receives socket callbacks. OnFrame must not block: frames are
// delivered from the transport read loop.
type Events struct {
	OnFrame func(Frame)
	OnClose func(err error)
}

// Options configures a dial attempt.
type Options struct {
	// HandshakeTimeout bounds the opening handshake. Zero means 10s.
	HandshakeTimeout time.Duration
	// Header is sent with the handshake request.
	Header http.Header
}

// ErrSocketClosed is returned by writes on a closed socket.
var ErrSocketClosed = errors.New("websocket closed")

// Socket owns one open WebSocket connection.
type Socket struct {
	conn   *gws.Conn
	logger zerolog.Logger

	closed atomic.Bool
	local  atomic.Bool
	done   chan struct{}
	err    error
}

type eventHandler struct {
	sock *Socket
	ev   Events
}

// Dial opens a WebSocket connection. The returned socket is inert
// until Start, so the caller can finish wiring the socket's owner
// before the first frame is delivered.
func Dial(url string, ev Events, opts Options, logger zerolog.Logger) (*Socket, error) {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}

	sock := &Socket{
		logger: logger,
		done:   make(chan struct{}),
	}
	handler := &eventHandler{sock: sock, ev: ev}

	conn, _, err := gws.NewClient(handler, &gws.ClientOption{
		Addr:             url,
		HandshakeTimeout: opts.HandshakeTimeout,
		RequestHeader:    opts.Header,
	})
	if err != nil {
		return nil, err
	}
	sock.conn = conn

	return sock, nil
}

// Start launches the read loop. Frames begin arriving immediately.
func (s *Socket) Start() {
	go s.conn.ReadLoop()
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.sock.logger.Debug().Msg("websocket open")
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	s := h.sock
	s.closed.Store(true)
	s.err = normalizeClose(err, s.local.Load())
	close(s.done)

	s.logger.Debug().Err(err).Msg("websocket closed")
	if h.ev.OnClose != nil {
		h.ev.OnClose(s.err)
	}
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	kind := FrameText
	if message.Opcode == gws.OpcodeBinary {
		kind = FrameBinary
	}

	// Copy: dispatch is deferred past this callback's lifetime.
	data := make([]byte, len(message.Bytes()))
	copy(data, message.Bytes())

	if h.ev.OnFrame != nil {
		h.ev.OnFrame(Frame{Kind: kind, Data: data})
	}
}

// normalizeClose maps expected shutdown causes to nil so the caller
// can tell a clean cycle from a failed one.
func normalizeClose(err error, local bool) error {
	if err == nil || local {
		return nil
	}
	var ce *gws.CloseError
	if errors.As(err, &ce) && (ce.Code == 1000 || ce.Code == 1001) {
		return nil
	}
	return err
}

// SendText writes a text frame.
func (s *Socket) SendText(text string) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	return s.conn.WriteMessage(gws.OpcodeText, []byte(text))
}

// SendBytes writes a binary frame.
func (s *Socket) SendBytes(data []byte) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	return s.conn.WriteMessage(gws.OpcodeBinary, data)
}

// SendPong writes a protocol-level pong frame.
func (s *Socket) SendPong() error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	return s.conn.WritePong(nil)
}

// Close tears the connection down. The read loop observes the closure
// and fires OnClose with a nil (clean) cause.
func (s *Socket) Close() {
	if s.closed.Load() {
		return
	}
	s.local.Store(true)
	_ = s.conn.NetConn().Close()
}

// Closed reports whether the socket has ended.
func (s *Socket) Closed() bool {
	return s.closed.Load()
}

// Done is closed when the socket ends.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err returns the close cause after Done: nil for a clean closure,
// the transport error otherwise.
func (s *Socket) Err() error {
	return s.err
}
