package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidal/internal/backoff"
	"tidal/internal/ws"
	"tidal/pkg/hook"
)

// fastBackoff keeps reconnect cycles in the tens of milliseconds.
func fastBackoff() backoff.Config {
	return backoff.Config{Min: 0.01, Max: 0.05, Factor: 1.5, Initial: 0.02}
}

func nextSignal(t *testing.T, m *mockServer) string {
	t.Helper()
	select {
	case s := <-m.signals:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("server received no frame")
		return ""
	}
}

func waitReady(t *testing.T, st *Stream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, st.WaitReady(ctx))
}

// scriptedAuth logs in with a JSON op and reads until the server
// accepts or rejects, the way exchange auth hooks do.
func scriptedAuth(ctx context.Context, c hook.Conn, creds hook.Credentials) error {
	if err := c.SendJSONSelf(ctx, map[string]any{"op": "login", "key": creds.APIKey}); err != nil {
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
		switch data["event"] {
		case "login":
			return nil
		case "error":
			return &hook.AuthError{Host: c.Host(), Detail: string(raw)}
		}
	}
}

func TestStream_ConnectAndReceive(t *testing.T) {
	m := newMockServer(t)
	s := NewSession()
	defer s.Close()

	texts := make(chan string, 16)
	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithTextHandler(func(text string, _ *Conn) { texts <- text }),
	)
	require.NoError(t, err)
	waitReady(t, st)
	assert.Equal(t, ws.StateConnected, st.State())
	require.NotNil(t, st.Current())

	m.broadcast("hello")

	select {
	case got := <-texts:
		assert.Equal(t, "hello", got)
	case <-time.After(3 * time.Second):
		t.Fatal("handler never ran")
	}
}

// The server pushes a frame the instant the connection comes up, and
// the handler replies through the connection it was handed. The reply
// must go out on a fully-bound connection even though the frame raced
// the connect sequence.
func TestStream_HandlerRepliesToGreetingFrame(t *testing.T) {
	m := newMockServer(t)
	m.setGreeting(`{"event":"welcome"}`)

	s := NewSession()
	defer s.Close()

	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithTextHandler(func(text string, c *Conn) {
			assert.NoError(t, c.SendText(context.Background(), "ack:"+text))
		}),
	)
	require.NoError(t, err)
	waitReady(t, st)

	assert.Equal(t, `ack:{"event":"welcome"}`, nextSignal(t, m))
}

func TestStream_SendPlanReplaysOnReconnect(t *testing.T) {
	m := newMockServer(t)
	s := NewSession()
	defer s.Close()

	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithSendText(`{"op":"subscribe","args":["trade"]}`),
	)
	require.NoError(t, err)
	waitReady(t, st)
	assert.Contains(t, nextSignal(t, m), "subscribe")

	m.dropAll()

	// The supervisor reconnects and replays the same plan verbatim.
	assert.Contains(t, nextSignal(t, m), "subscribe")
	assert.GreaterOrEqual(t, m.connCount(), 2)
}

func TestStream_RetriesFailedDials(t *testing.T) {
	m := newMockServer(t)
	m.setReject(true)

	s := NewSession()
	defer s.Close()

	st, err := s.Open(m.url(), WithBackoff(fastBackoff()))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, st.Current())

	m.setReject(false)
	waitReady(t, st)
}

func TestStream_AuthRunsBeforePlanSends(t *testing.T) {
	m := newMockServer(t)
	m.setOnText(func(conn *gws.Conn, text string) {
		if strings.Contains(text, `"op":"login"`) {
			_ = conn.WriteMessage(gws.OpcodeText, []byte(`{"event":"login"}`))
		}
	})

	reg := hook.NewRegistry()
	reg.Auth["127.0.0.1"] = hook.AuthEntry{Account: "test", Func: scriptedAuth}

	s := NewSession(
		WithRegistry(reg),
		WithCredential("test", hook.Credentials{APIKey: "key", Secret: []byte("secret")}),
	)
	defer s.Close()

	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithSendJSON(map[string]any{"op": "subscribe"}),
	)
	require.NoError(t, err)
	waitReady(t, st)

	assert.Contains(t, nextSignal(t, m), "login")
	assert.Contains(t, nextSignal(t, m), "subscribe")
}

func TestStream_AuthRejectionGatesSends(t *testing.T) {
	m := newMockServer(t)
	m.setOnText(func(conn *gws.Conn, text string) {
		if strings.Contains(text, `"op":"login"`) {
			_ = conn.WriteMessage(gws.OpcodeText, []byte(`{"event":"error","msg":"bad key"}`))
		}
	})

	reg := hook.NewRegistry()
	reg.Auth["127.0.0.1"] = hook.AuthEntry{Account: "test", Func: scriptedAuth}

	s := NewSession(
		WithRegistry(reg),
		WithCredential("test", hook.Credentials{APIKey: "key", Secret: []byte("secret")}),
	)
	defer s.Close()

	st, err := s.Open(m.url(), WithBackoff(fastBackoff()))
	require.NoError(t, err)
	waitReady(t, st)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = st.Current().SendJSON(ctx, map[string]any{"op": "subscribe"})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestStream_SkipsAuthWithoutCredentials(t *testing.T) {
	m := newMockServer(t)

	reg := hook.NewRegistry()
	reg.Auth["127.0.0.1"] = hook.AuthEntry{Account: "test", Func: scriptedAuth}

	s := NewSession(WithRegistry(reg))
	defer s.Close()

	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithSendJSON(map[string]any{"op": "subscribe"}),
	)
	require.NoError(t, err)
	waitReady(t, st)

	// No credentials: the gate opens immediately and no login is sent.
	assert.Contains(t, nextSignal(t, m), "subscribe")
}

func TestStream_WithoutAuthSkipsHandshake(t *testing.T) {
	m := newMockServer(t)

	reg := hook.NewRegistry()
	reg.Auth["127.0.0.1"] = hook.AuthEntry{Account: "test", Func: scriptedAuth}

	s := NewSession(
		WithRegistry(reg),
		WithCredential("test", hook.Credentials{APIKey: "key", Secret: []byte("secret")}),
	)
	defer s.Close()

	st, err := s.Open(m.url(),
		WithBackoff(fastBackoff()),
		WithoutAuth(),
		WithSendJSON(map[string]any{"op": "subscribe"}),
	)
	require.NoError(t, err)
	waitReady(t, st)

	assert.Contains(t, nextSignal(t, m), "subscribe")
}

// Concurrent senders funnel through the send-serialization lock held
// by the RateLimit hook: every enter/exit pair in the hook's critical
// section must be strictly alternating, never nested.
func TestStream_RateLimitedSendsAreSerialized(t *testing.T) {
	m := newMockServer(t)

	var mu sync.Mutex
	var sections []string

	reg := hook.NewRegistry()
	reg.RateLimit["127.0.0.1"] = func(ctx context.Context, c hook.Conn, send func() error) error {
		if err := c.AcquireSend(ctx); err != nil {
			return err
		}
		defer c.ReleaseSend()

		mu.Lock()
		sections = append(sections, "enter")
		mu.Unlock()

		err := send()
		// Hold the lock through a simulated pacing wait.
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		sections = append(sections, "exit")
		mu.Unlock()
		return err
	}

	s := NewSession(WithRegistry(reg))
	defer s.Close()

	st, err := s.Open(m.url(), WithBackoff(fastBackoff()))
	require.NoError(t, err)
	waitReady(t, st)

	c := st.Current()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, c.SendText(context.Background(), fmt.Sprintf("msg-%d", n)))
		}(i)
	}
	wg.Wait()

	got := make(map[string]bool)
	for i := 0; i < 4; i++ {
		got[nextSignal(t, m)] = true
	}
	assert.Len(t, got, 4)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sections, 8)
	for i, ev := range sections {
		want := "enter"
		if i%2 == 1 {
			want = "exit"
		}
		assert.Equalf(t, want, ev, "section event %d", i)
	}
}

func TestStream_HeartbeatHookRuns(t *testing.T) {
	m := newMockServer(t)

	reg := hook.NewRegistry()
	reg.Heartbeat["127.0.0.1"] = func(ctx context.Context, c hook.Conn) {
		_ = c.SendText(ctx, `{"op":"ping"}`)
		<-ctx.Done()
	}

	s := NewSession(WithRegistry(reg))
	defer s.Close()

	st, err := s.Open(m.url(), WithBackoff(fastBackoff()))
	require.NoError(t, err)
	waitReady(t, st)

	assert.Contains(t, nextSignal(t, m), "ping")
}
