package keyring

import "sync"

// Credentials holds one account's API authentication material.
type Credentials struct {
	// APIKey is the public key identifier.
	APIKey string
	// Secret is the private signing key. Kept as bytes because every
	// hook feeds it straight into an HMAC.
	Secret []byte
	// Passphrase is the extra credential some exchanges require.
	Passphrase string
}

// Store maps account names to credentials. Connections never cache
// what they read from it, so a rotated entry takes effect on the next
// lookup. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]Credentials
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{accounts: make(map[string]Credentials)}
}

// Set stores or replaces the credentials for an account.
func (s *Store) Set(name string, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[name] = creds
}

// SetKey is a convenience for accounts without a passphrase.
func (s *Store) SetKey(name, apiKey, secret string) {
	s.Set(name, Credentials{APIKey: apiKey, Secret: []byte(secret)})
}

// Lookup returns the credentials for an account. A missing entry is a
// valid, non-fatal outcome reported through the bool.
func (s *Store) Lookup(name string) (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.accounts[name]
	return creds, ok
}

// Remove deletes an account's credentials.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, name)
}

// Names returns the account names currently stored.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		names = append(names, name)
	}
	return names
}

// Masked returns the API key with all but its edges hidden, for logs.
func (c Credentials) Masked() string {
	if len(c.APIKey) <= 8 {
		return "****"
	}
	return c.APIKey[:4] + "****" + c.APIKey[len(c.APIKey)-4:]
}
