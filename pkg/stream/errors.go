package stream

import "errors"

// Sentinel errors for stream lifecycle conditions.
var (
	// ErrSessionClosed is returned when opening or waiting on a stream
	// after its owning session shut down.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotConnected is returned by sends on a connection whose socket
	// has ended.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrAuthFailed gates authenticated sends after the exchange
	// explicitly rejected the auth handshake. The gate holds until the
	// next reconnect cycle runs a fresh handshake.
	ErrAuthFailed = errors.New("websocket auth handshake failed")
	// ErrQueueClosed is returned by a drained, closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)
