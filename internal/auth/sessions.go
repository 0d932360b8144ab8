package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"mcphub/pkg/logging"
)

const (
	sessionTTL      = time.Hour
	maxAttempts     = 5
	lockoutDuration = 5 * time.Minute
)

// SessionStore issues and validates administrative session tokens. Sessions
// live in memory only; a process restart invalidates them all, which is the
// intended durability.
type SessionStore struct {
	mu       sync.Mutex
	password string
	sessions map[string]time.Time

	// failed login timestamps per remote IP, for lockout
	attempts map[string][]time.Time

	now func() time.Time
}

// NewSessionStore creates a store that validates logins against password.
func NewSessionStore(password string) *SessionStore {
	return &SessionStore{
		password: password,
		sessions: make(map[string]time.Time),
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Login verifies the password and issues a session token. Repeated failures
// from one IP lock that IP out for a while; the failure is indistinguishable
// from a wrong password to the caller.
func (s *SessionStore) Login(password, ip string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rateLimitedLocked(ip) {
		logging.Warn("Auth", "Login rate limit exceeded for %s", ip)
		return "", false
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		s.attempts[ip] = append(s.attempts[ip], s.now())
		logging.Warn("Auth", "Failed login attempt from %s", ip)
		return "", false
	}

	delete(s.attempts, ip)

	token := newToken()
	s.sessions[token] = s.now().Add(sessionTTL)
	logging.Info("Auth", "Session created: %s...", token[:8])
	return token, true
}

// Validate reports whether the token belongs to a live session. Expired and
// unknown tokens fail closed; expired ones are dropped on the spot.
func (s *SessionStore) Validate(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.now().After(expiry) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Invalidate drops a session.
func (s *SessionStore) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		logging.Info("Auth", "Session invalidated: %s...", token[:8])
	}
}

// rateLimitedLocked prunes stale attempts and reports whether ip is locked
// out. Caller holds the lock.
func (s *SessionStore) rateLimitedLocked(ip string) bool {
	cutoff := s.now().Add(-lockoutDuration)
	recent := s.attempts[ip][:0]
	for _, t := range s.attempts[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	s.attempts[ip] = recent
	return len(recent) >= maxAttempts
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken;
		// there is no sensible recovery.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
