package upstream

import (
	"os"
	"strings"
)

// For mocking in tests
var osLookupEnv = os.LookupEnv

// resolveSecret resolves a config value that may be an environment variable
// reference. A value of the form "$NAME" is looked up in the process
// environment; anything else is used verbatim. An unset variable is an
// explicit failure, never an empty string.
func resolveSecret(value string) (string, *ConfigError) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}

	name := strings.TrimPrefix(value, "$")
	resolved, ok := osLookupEnv(name)
	if !ok || resolved == "" {
		return "", &ConfigError{Reason: "environment variable " + name + " is not set"}
	}
	return resolved, nil
}
