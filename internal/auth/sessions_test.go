package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAndValidate(t *testing.T) {
	store := NewSessionStore("hunter2")

	token, ok := store.Login("hunter2", "10.0.0.1")
	require.True(t, ok)
	require.NotEmpty(t, token)
	assert.Len(t, token, 64)

	assert.True(t, store.Validate(token))
	assert.False(t, store.Validate("unknown-token"))
	assert.False(t, store.Validate(""))
}

func TestLoginWrongPassword(t *testing.T) {
	store := NewSessionStore("hunter2")

	token, ok := store.Login("wrong", "10.0.0.1")
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestInvalidate(t *testing.T) {
	store := NewSessionStore("hunter2")

	token, ok := store.Login("hunter2", "10.0.0.1")
	require.True(t, ok)

	store.Invalidate(token)
	assert.False(t, store.Validate(token))

	// Invalidating twice is harmless.
	store.Invalidate(token)
}

func TestSessionExpiry(t *testing.T) {
	store := NewSessionStore("hunter2")

	now := time.Now()
	store.now = func() time.Time { return now }

	token, ok := store.Login("hunter2", "10.0.0.1")
	require.True(t, ok)
	assert.True(t, store.Validate(token))

	// Just inside the TTL.
	now = now.Add(sessionTTL - time.Second)
	assert.True(t, store.Validate(token))

	// Past the TTL the session fails closed and is dropped.
	now = now.Add(2 * time.Second)
	assert.False(t, store.Validate(token))
	assert.False(t, store.Validate(token))
}

func TestLoginRateLimit(t *testing.T) {
	store := NewSessionStore("hunter2")

	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < maxAttempts; i++ {
		_, ok := store.Login("wrong", "10.0.0.1")
		assert.False(t, ok)
	}

	// Even the correct password is rejected while locked out.
	_, ok := store.Login("hunter2", "10.0.0.1")
	assert.False(t, ok)

	// A different IP is unaffected.
	_, ok = store.Login("hunter2", "10.0.0.2")
	assert.True(t, ok)

	// After the lockout window the original IP can log in again.
	now = now.Add(lockoutDuration + time.Second)
	_, ok = store.Login("hunter2", "10.0.0.1")
	assert.True(t, ok)
}

func TestSuccessfulLoginClearsAttempts(t *testing.T) {
	store := NewSessionStore("hunter2")

	for i := 0; i < maxAttempts-1; i++ {
		store.Login("wrong", "10.0.0.1")
	}

	_, ok := store.Login("hunter2", "10.0.0.1")
	require.True(t, ok)

	// The counter reset; failures start from zero again.
	for i := 0; i < maxAttempts-1; i++ {
		store.Login("wrong", "10.0.0.1")
	}
	_, ok = store.Login("hunter2", "10.0.0.1")
	assert.True(t, ok)
}

func TestTokensAreUnique(t *testing.T) {
	store := NewSessionStore("hunter2")

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, ok := store.Login("hunter2", "10.0.0.1")
		require.True(t, ok)
		require.False(t, seen[token], "token issued twice")
		seen[token] = true
	}
}
