// Package stream supervises WebSocket connections to exchange
// streaming APIs: reconnect with jittered exponential backoff, per-host
// hook activation, auth-gated and rate-paced sends, and ordered fan-out
// of inbound frames to registered handlers.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tidal/internal/backoff"
	"tidal/internal/ws"
)

// Stream is a supervised, logically-continuous connection to one URL.
// The supervisor keeps a cycle running for the life of the owning
// session: dial, start hooks, replay the send plan, read until the
// socket ends, back off, repeat.
type Stream struct {
	session *Session
	cfg     streamConfig
	host    string
	path    string
	logger  zerolog.Logger

	state *ws.State
	disp  *dispatcher

	mu      sync.Mutex
	current *Conn
	readyCh chan struct{}

	done chan struct{}
}

func newStream(session *Session, cfg streamConfig, host, path string) *Stream {
	logger := session.logger.With().Str("host", host).Logger()
	st := &Stream{
		session: session,
		cfg:     cfg,
		host:    host,
		path:    path,
		logger:  logger,
		state:   &ws.State{},
		disp:    newDispatcher(cfg.handler, logger),
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	st.state.Store(ws.StateDisconnected)
	return st
}

// run is the supervisor loop. It exits only when the owning session
// closes; every failure inside a cycle is logged and retried.
func (s *Stream) run() {
	defer close(s.done)
	defer s.state.Store(ws.StateClosed)

	go s.disp.run(s.session.ctx)

	bo := backoff.New(s.cfg.Backoff)
	for {
		select {
		case <-s.session.ctx.Done():
			return
		default:
		}

		err := s.cycle()
		s.endCycle()

		select {
		case <-s.session.ctx.Done():
			return
		default:
		}

		if err == nil {
			bo.Reset()
			continue
		}

		s.logger.Warn().Err(err).Str("url", s.cfg.URL).Msg("connection cycle ended")
		s.state.Store(ws.StateReconnecting)
		select {
		case <-time.After(bo.Next()):
		case <-s.session.ctx.Done():
			return
		}
	}
}

// cycle runs one connect-to-disconnect attempt. A nil return means the
// socket opened and later closed cleanly, which resets the backoff.
func (s *Stream) cycle() error {
	s.state.Store(ws.StateConnecting)

	c := newConn(s.host, s.path, s.cfg.Auth, s.session.store, s.session.reg, s.session.status, s.logger)

	sock, err := ws.Dial(s.cfg.URL, ws.Events{
		OnFrame: func(f ws.Frame) {
			c.feed(f)
			s.disp.enqueue(f, c)
		},
	}, ws.Options{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Header:           s.cfg.Header,
	}, s.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	// Bind the managed connection before the read loop starts so no
	// frame can reach a handler ahead of the socket being attached.
	c.start(sock)

	// Session shutdown tears the socket down mid-cycle.
	stop := context.AfterFunc(s.session.ctx, sock.Close)
	defer stop()

	sock.Start()
	s.setCurrent(c)
	s.state.Store(ws.StateConnected)
	s.logger.Info().Str("url", s.cfg.URL).Msg("websocket connected")

	planErr := s.replayPlan(c)
	if planErr != nil {
		sock.Close()
	}

	<-sock.Done()
	c.teardown()

	if planErr != nil {
		return fmt.Errorf("send plan: %w", planErr)
	}
	return sock.Err()
}

// replayPlan re-issues the send plan, in full and in original order,
// once per successful connect. JSON payloads wait on the auth gate.
func (s *Stream) replayPlan(c *Conn) error {
	ctx := s.session.ctx
	for _, text := range s.cfg.send.Text {
		if err := c.SendText(ctx, text); err != nil {
			return err
		}
	}
	for _, data := range s.cfg.send.Bytes {
		if err := c.SendBytes(ctx, data); err != nil {
			return err
		}
	}
	for _, v := range s.cfg.send.JSON {
		if err := c.SendJSON(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) setCurrent(c *Conn) {
	s.mu.Lock()
	s.current = c
	close(s.readyCh)
	s.mu.Unlock()
}

// endCycle clears the current connection and re-arms the ready signal
// so late waiters observe the next attempt, not a stale one.
func (s *Stream) endCycle() {
	s.mu.Lock()
	if s.current != nil {
		s.current = nil
		s.readyCh = make(chan struct{})
	}
	s.mu.Unlock()
	s.state.Store(ws.StateDisconnected)
}

// WaitReady blocks until the current cycle's connection is open — or,
// when the current attempt fails, the next successful one.
func (s *Stream) WaitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		cur, ready := s.current, s.readyCh
		s.mu.Unlock()
		if cur != nil {
			return nil
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrSessionClosed
		}
	}
}

// Done is closed when the supervisor exits, i.e. the owning session
// closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Current returns the live connection, or nil while disconnected.
func (s *Stream) Current() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns the stream's connection state.
func (s *Stream) State() ws.ConnState {
	return s.state.Load()
}

// URL returns the target URL.
func (s *Stream) URL() string {
	return s.cfg.URL
}
