package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osReadFile = os.ReadFile

// upstreamsFile is the YAML document layout of an upstreams file.
type upstreamsFile struct {
	Upstreams []UpstreamDefinition `yaml:"upstreams"`
}

// Load builds the runtime configuration from the process environment,
// optionally seeded from a .env file in the working directory, and layers the
// upstreams file (if any) over the compiled-in upstream defaults.
func Load() (Config, error) {
	// Missing .env is fine; environment variables win either way.
	_ = godotenv.Load()

	cfg := Config{
		Host:          envOr("HOST", DefaultHost),
		Port:          DefaultPort,
		APIToken:      os.Getenv("MCP_API_TOKEN"),
		AdminPassword: envOr("ADMIN_PASSWORD", "admin"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		UpstreamsFile: os.Getenv("MCPHUB_UPSTREAMS"),
	}

	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		cfg.Port = port
	}

	if raw := os.Getenv("DEBUG"); raw != "" {
		cfg.Debug = raw == "true" || raw == "1"
	}

	upstreams, err := loadUpstreams(cfg.UpstreamsFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Upstreams = upstreams

	return cfg, nil
}

// loadUpstreams merges the upstreams file over the defaults. Entries in the
// file replace defaults with the same name; order is defaults first, then
// file-only additions.
func loadUpstreams(path string) ([]UpstreamDefinition, error) {
	merged := DefaultUpstreams()

	if path == "" {
		return merged, nil
	}

	data, err := osReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upstreams file %s: %w", path, err)
	}

	var file upstreamsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing upstreams file %s: %w", path, err)
	}

	byName := make(map[string]int, len(merged))
	for i, def := range merged {
		byName[def.Name] = i
	}

	for _, def := range file.Upstreams {
		ApplyUpstreamDefaults(&def)
		if idx, ok := byName[def.Name]; ok {
			merged[idx] = def
		} else {
			byName[def.Name] = len(merged)
			merged = append(merged, def)
		}
	}

	return merged, nil
}

// ApplyUpstreamDefaults fills optional service fields. Every path that
// accepts a definition (file or API) runs it so the health probe and the
// client endpoint agree on the same path and budget.
func ApplyUpstreamDefaults(def *UpstreamDefinition) {
	if def.Kind != UpstreamKindService {
		return
	}
	if def.HealthCheckPath == "" {
		def.HealthCheckPath = DefaultHealthCheckPath
	}
	if def.StartupTimeout == 0 {
		def.StartupTimeout = DefaultStartupTimeout
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
