package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tidal/internal/status"
	"tidal/pkg/hook"
)

// fakeConn is a scripted hook.Conn: inbound frames are queued on a
// channel, outbound payloads are recorded, and server-time polls walk
// a fixed list of timestamps.
type fakeConn struct {
	host string
	path string

	mu       sync.Mutex
	jsonSent []map[string]any
	texts    []string
	pongs    int
	acquires int
	releases int
	timeIdx  int

	inbound chan []byte
	sentCh  chan string

	times   []time.Time
	timeErr error
}

func newFakeConn(host, path string) *fakeConn {
	return &fakeConn{
		host:    host,
		path:    path,
		inbound: make(chan []byte, 16),
		sentCh:  make(chan string, 16),
	}
}

func (f *fakeConn) Host() string { return f.host }
func (f *fakeConn) Path() string { return f.path }

func (f *fakeConn) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	f.sentCh <- text
	return nil
}

func (f *fakeConn) SendBytes(_ context.Context, _ []byte) error { return nil }

func (f *fakeConn) SendJSONSelf(_ context.Context, v any) error {
	payload, _ := v.(map[string]any)
	f.mu.Lock()
	f.jsonSent = append(f.jsonSent, payload)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SendPong(_ context.Context) error {
	f.mu.Lock()
	f.pongs++
	f.mu.Unlock()
	f.sentCh <- "<pong>"
	return nil
}

func (f *fakeConn) NextText(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.inbound:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) AcquireSend(_ context.Context) error {
	f.mu.Lock()
	f.acquires++
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) ReleaseSend() {
	f.mu.Lock()
	f.releases++
	f.mu.Unlock()
}

func (f *fakeConn) ServerTime(_ context.Context, _ string, _ status.TimeParser) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeErr != nil {
		return time.Time{}, f.timeErr
	}
	if f.timeIdx >= len(f.times) {
		return time.Time{}, errors.New("server time script exhausted")
	}
	t := f.times[f.timeIdx]
	f.timeIdx++
	return t, nil
}

func (f *fakeConn) Closed() bool           { return false }
func (f *fakeConn) Logger() zerolog.Logger { return zerolog.Nop() }

var _ hook.Conn = (*fakeConn)(nil)

func (f *fakeConn) sentJSON(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.jsonSent...)
}

// fixNow pins the package clock for deterministic signatures.
func fixNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func fixNonce(t *testing.T, nonce string) {
	t.Helper()
	prev := newNonce
	newNonce = func() string { return nonce }
	t.Cleanup(func() { newNonce = prev })
}

func fixPingID(t *testing.T, id string) {
	t.Helper()
	prev := newPingID
	newPingID = func() string { return id }
	t.Cleanup(func() { newPingID = prev })
}
