package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lxzan/gws"
)

// mockServer is an in-process WebSocket endpoint for supervisor tests:
// it records every inbound text frame, exposes connected sockets, and
// can reject handshakes or drop live connections on demand.
type mockServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*gws.Conn
	reject   bool
	greeting string
	onText   func(conn *gws.Conn, text string)
	signals  chan string
}

type mockServerEvents struct {
	m *mockServer
}

func (e *mockServerEvents) OnOpen(socket *gws.Conn)             {}
func (e *mockServerEvents) OnClose(socket *gws.Conn, err error) {}
func (e *mockServerEvents) OnPong(socket *gws.Conn, p []byte)   {}

func (e *mockServerEvents) OnPing(socket *gws.Conn, p []byte) {
	_ = socket.WritePong(p)
}

func (e *mockServerEvents) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	text := string(message.Bytes())

	e.m.mu.Lock()
	handler := e.m.onText
	e.m.mu.Unlock()

	e.m.signals <- text
	if handler != nil {
		handler(socket, text)
	}
}

func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{signals: make(chan string, 256)}
	upgrader := gws.NewUpgrader(&mockServerEvents{m: m}, &gws.ServerOption{})

	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		reject := m.reject
		m.mu.Unlock()
		if reject {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		m.mu.Lock()
		m.conns = append(m.conns, socket)
		greeting := m.greeting
		m.mu.Unlock()

		// Sent before the read loop starts, so the client sees it the
		// instant its connection comes up.
		if greeting != "" {
			_ = socket.WriteMessage(gws.OpcodeText, []byte(greeting))
		}
		go socket.ReadLoop()
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockServer) url() string {
	return "ws" + strings.TrimPrefix(m.srv.URL, "http")
}

func (m *mockServer) setReject(reject bool) {
	m.mu.Lock()
	m.reject = reject
	m.mu.Unlock()
}

// setGreeting makes the server push one text frame to every new
// connection immediately after the handshake.
func (m *mockServer) setGreeting(text string) {
	m.mu.Lock()
	m.greeting = text
	m.mu.Unlock()
}

func (m *mockServer) setOnText(fn func(conn *gws.Conn, text string)) {
	m.mu.Lock()
	m.onText = fn
	m.mu.Unlock()
}

func (m *mockServer) connCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// broadcast writes a text frame to every connection seen so far.
func (m *mockServer) broadcast(text string) {
	m.mu.Lock()
	conns := append([]*gws.Conn(nil), m.conns...)
	m.mu.Unlock()
	for _, conn := range conns {
		_ = conn.WriteMessage(gws.OpcodeText, []byte(text))
	}
}

// dropAll severs every connection at the TCP level, simulating a
// network failure rather than a clean close.
func (m *mockServer) dropAll() {
	m.mu.Lock()
	conns := append([]*gws.Conn(nil), m.conns...)
	m.mu.Unlock()
	for _, conn := range conns {
		_ = conn.NetConn().Close()
	}
}
