package upstream

import (
	"errors"
	"fmt"
)

// ConfigError rejects an upstream definition at registration time. No
// server is created when Add returns one.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid upstream config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid upstream config for %q: %s", e.Name, e.Reason)
}

// IsConfigError reports whether err is a registration-time config rejection.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ErrServerNotFound is returned when looking up an upstream that is not
// registered.
var ErrServerNotFound = errors.New("upstream server not found")

// ErrServerNotReady is returned when an upstream exists but has no usable
// connection (crashed, stopped, or still connecting).
var ErrServerNotReady = errors.New("upstream server not ready")
