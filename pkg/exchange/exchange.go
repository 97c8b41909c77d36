// Package exchange implements the per-host hooks for the supported
// exchanges and the default registry binding them to their streaming
// hosts. Hook behavior follows each exchange's published WebSocket
// protocol: keep-alive payloads and intervals, login handshakes, ws-api
// request signing, and server-observed send pacing.
package exchange

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"tidal/pkg/stream"
)

// now is swapped out by tests for deterministic signatures.
var now = time.Now

// newNonce returns a 16-byte hex nonce. Swapped out by tests.
var newNonce = func() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// newPingID returns the id for keep-alive payloads that require one.
var newPingID = uuid.NewString

func signHex(secret []byte, msg string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func signBase64(secret []byte, msg string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewSession creates a stream session preloaded with the default
// exchange registry. Options are applied on top, so a caller-supplied
// registry still wins.
func NewSession(opts ...stream.SessionOption) *stream.Session {
	all := append([]stream.SessionOption{stream.WithRegistry(DefaultRegistry())}, opts...)
	return stream.NewSession(all...)
}
