package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"tidal/internal/backoff"
	"tidal/internal/keyring"
	"tidal/internal/status"
	"tidal/pkg/hook"
)

// Session owns the shared collaborators of a set of streams: the hook
// registry, the credential store, the status/time client, and the
// shutdown signal every supervisor loops on.
type Session struct {
	store  *keyring.Store
	reg    *hook.Registry
	status *status.Client
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

type sessionConfig struct {
	logger    zerolog.Logger
	reg       *hook.Registry
	statusCfg status.Config
	creds     map[string]hook.Credentials
}

// SessionOption configures a session at construction time.
type SessionOption func(*sessionConfig)

// WithLogger sets the session logger. Default is a no-op logger.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = logger }
}

// WithRegistry sets the hook registry. Default is an empty registry;
// exchange.DefaultRegistry wires the known exchanges.
func WithRegistry(reg *hook.Registry) SessionOption {
	return func(c *sessionConfig) { c.reg = reg }
}

// WithCredential stores credentials under an account name. The name is
// what registry entries reference, e.g. "bybit" or "bybit_testnet".
func WithCredential(account string, creds hook.Credentials) SessionOption {
	return func(c *sessionConfig) { c.creds[account] = creds }
}

// WithStatusConfig tunes the shared status/time polling client.
func WithStatusConfig(cfg status.Config) SessionOption {
	return func(c *sessionConfig) { c.statusCfg = cfg }
}

// NewSession creates a session. Streams opened from it run until
// Close.
func NewSession(opts ...SessionOption) *Session {
	cfg := sessionConfig{
		logger:    zerolog.Nop(),
		reg:       hook.NewRegistry(),
		statusCfg: status.DefaultConfig(),
		creds:     make(map[string]hook.Credentials),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := keyring.NewStore()
	for account, creds := range cfg.creds {
		store.Set(account, creds)
	}

	cfg.logger.Debug().Strs("accounts", store.Names()).Msg("session created")

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:  store,
		reg:    cfg.reg,
		status: status.NewClient(cfg.statusCfg, cfg.logger),
		logger: cfg.logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Open starts a supervised stream to url. It is fire-and-forget: the
// supervisor runs in the background and only construction-time
// argument errors are returned here. Use WaitReady to block until the
// first handshake.
func (s *Session) Open(rawURL string, opts ...Option) (*Stream, error) {
	cfg := streamConfig{
		Config: Config{
			URL:     rawURL,
			Backoff: backoff.DefaultConfig(),
			Auth:    true,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.validateConfig(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q: want ws or wss", u.Scheme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	st := newStream(s, cfg, u.Hostname(), u.Path)
	s.streams = append(s.streams, st)
	go st.run()
	return st, nil
}

// SetCredential stores or rotates an account's credentials. Hooks read
// the store at invocation time, so a rotation is picked up by the next
// reconnect cycle.
func (s *Session) SetCredential(account string, creds hook.Credentials) {
	s.store.Set(account, creds)
}

// RemoveCredential deletes an account's credentials.
func (s *Session) RemoveCredential(account string) {
	s.store.Remove(account)
}

// Close shuts the session down: every supervisor exits after its
// current socket is torn down. Blocks until all streams finish.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	streams := s.streams
	s.mu.Unlock()

	s.cancel()
	for _, st := range streams {
		<-st.done
	}
	return s.status.Close()
}

// Done is closed when the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}
