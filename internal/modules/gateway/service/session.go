package service

import "sync"

// Session holds the current credential and the authorization snapshot. The
// snapshot is replaced wholesale on every fresh authorize and dropped on
// disconnect or credential replacement; the credential itself survives
// disconnects, since the next connect decides what to do with it.
type Session struct {
	mu         sync.RWMutex
	credential string
	account    *AccountInfo

	lmu       sync.Mutex
	listeners []func(AccountInfo)
}

func NewSession() *Session {
	return &Session{}
}

// SetCredential replaces the token and drops the authorization snapshot:
// whatever account was authorized before no longer belongs to this
// credential. It never reconnects on its own; credential management and
// connection lifecycle stay independently testable.
func (s *Session) SetCredential(token string) {
	s.mu.Lock()
	s.credential = token
	s.account = nil
	s.mu.Unlock()
}

func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// GetAccountInfo returns nil until a fresh authorization succeeds. Callers
// are expected to check this before issuing trade requests.
func (s *Session) GetAccountInfo() *AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return nil
	}
	cp := *s.account
	return &cp
}

func (s *Session) OnAuthorized(fn func(AccountInfo)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

func (s *Session) storeAccount(info AccountInfo) {
	s.mu.Lock()
	s.account = &info
	s.mu.Unlock()

	s.lmu.Lock()
	snapshot := make([]func(AccountInfo), len(s.listeners))
	copy(snapshot, s.listeners)
	s.lmu.Unlock()
	for _, fn := range snapshot {
		fn(info)
	}
}

func (s *Session) clear() {
	s.mu.Lock()
	s.account = nil
	s.mu.Unlock()
}
