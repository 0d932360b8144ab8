package upstream

import (
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"regexp"

	"mcphub/internal/config"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// For mocking in tests
var (
	netListen    = net.Listen
	execLookPath = exec.LookPath
)

// validateDefinition checks an upstream definition before anything is
// created for it. All violations are ConfigErrors.
func validateDefinition(def config.UpstreamDefinition) *ConfigError {
	if def.Name == "" || len(def.Name) > 50 || !nameRe.MatchString(def.Name) {
		return &ConfigError{Name: def.Name, Reason: "name must be 1-50 characters of [a-zA-Z0-9_-]"}
	}

	switch def.Kind {
	case config.UpstreamKindHTTP:
		return validateHTTP(def)
	case config.UpstreamKindStdio:
		return validateCommand(def)
	case config.UpstreamKindService:
		if ce := validateCommand(def); ce != nil {
			return ce
		}
		return validateServicePort(def)
	default:
		return &ConfigError{Name: def.Name, Reason: fmt.Sprintf("unknown transport kind %q", def.Kind)}
	}
}

func validateHTTP(def config.UpstreamDefinition) *ConfigError {
	if def.URL == "" {
		return &ConfigError{Name: def.Name, Reason: "url is required for http upstreams"}
	}
	parsed, err := url.Parse(def.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &ConfigError{Name: def.Name, Reason: fmt.Sprintf("invalid url %q", def.URL)}
	}
	return nil
}

func validateCommand(def config.UpstreamDefinition) *ConfigError {
	if def.Command == "" {
		return &ConfigError{Name: def.Name, Reason: "command is required"}
	}
	if _, err := execLookPath(def.Command); err != nil {
		return &ConfigError{Name: def.Name, Reason: fmt.Sprintf("command %q not found in PATH", def.Command)}
	}
	return nil
}

// validateServicePort checks the port range and that nothing is already
// listening on it; a service that cannot bind its port would only fail
// later, during its health-check budget.
func validateServicePort(def config.UpstreamDefinition) *ConfigError {
	if def.Port < 1024 || def.Port > 65535 {
		return &ConfigError{Name: def.Name, Reason: fmt.Sprintf("port %d outside allowed range 1024-65535", def.Port)}
	}

	ln, err := netListen("tcp", fmt.Sprintf("localhost:%d", def.Port))
	if err != nil {
		return &ConfigError{Name: def.Name, Reason: fmt.Sprintf("port %d is already in use", def.Port)}
	}
	ln.Close()
	return nil
}
