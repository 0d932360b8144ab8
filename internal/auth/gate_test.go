package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateAuthorizeToolCall(t *testing.T) {
	tests := []struct {
		name          string
		apiToken      string
		authorization string
		want          bool
	}{
		{name: "valid token", apiToken: "secret", authorization: "Bearer secret", want: true},
		{name: "wrong token", apiToken: "secret", authorization: "Bearer wrong", want: false},
		{name: "missing header", apiToken: "secret", authorization: "", want: false},
		{name: "missing Bearer prefix", apiToken: "secret", authorization: "secret", want: false},
		{name: "lowercase scheme rejected", apiToken: "secret", authorization: "bearer secret", want: false},
		{name: "token is a prefix of configured", apiToken: "secret", authorization: "Bearer sec", want: false},
		{name: "configured is a prefix of token", apiToken: "sec", authorization: "Bearer secret", want: false},
		{name: "open gate accepts anything", apiToken: "", authorization: "", want: true},
		{name: "open gate accepts garbage", apiToken: "", authorization: "Bearer whatever", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.apiToken)
			assert.Equal(t, tt.want, gate.AuthorizeToolCall(tt.authorization))
		})
	}
}

func TestGateOpen(t *testing.T) {
	assert.True(t, NewGate("").Open())
	assert.False(t, NewGate("x").Open())
}
