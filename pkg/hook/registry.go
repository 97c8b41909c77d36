package hook

// AuthEntry binds an auth hook to the credential account it signs with.
type AuthEntry struct {
	// Account names the credential store entry for this host.
	Account string
	Func    Auth
}

// SignEntry binds a message-sign hook to its credential account.
type SignEntry struct {
	Account string
	Func    MessageSign
}

// Registry maps remote hosts to hook implementations, one optional
// entry per category. It is populated from static configuration at
// startup and never mutated afterwards: supporting a new exchange
// means adding entries, not editing the connection code.
type Registry struct {
	Heartbeat map[string]Heartbeat
	Auth      map[string]AuthEntry
	Sign      map[string]SignEntry
	RateLimit map[string]RateLimit
}

// NewRegistry returns an empty registry. A host absent from a table is
// a no-op for that category.
func NewRegistry() *Registry {
	return &Registry{
		Heartbeat: make(map[string]Heartbeat),
		Auth:      make(map[string]AuthEntry),
		Sign:      make(map[string]SignEntry),
		RateLimit: make(map[string]RateLimit),
	}
}

// HeartbeatFor returns the heartbeat hook for host, if any.
func (r *Registry) HeartbeatFor(host string) (Heartbeat, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.Heartbeat[host]
	return h, ok
}

// AuthFor returns the auth entry for host, if any.
func (r *Registry) AuthFor(host string) (AuthEntry, bool) {
	if r == nil {
		return AuthEntry{}, false
	}
	e, ok := r.Auth[host]
	return e, ok
}

// SignFor returns the message-sign entry for host, if any.
func (r *Registry) SignFor(host string) (SignEntry, bool) {
	if r == nil {
		return SignEntry{}, false
	}
	e, ok := r.Sign[host]
	return e, ok
}

// RateLimitFor returns the rate-limit hook for host, if any.
func (r *Registry) RateLimitFor(host string) (RateLimit, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.RateLimit[host]
	return h, ok
}
