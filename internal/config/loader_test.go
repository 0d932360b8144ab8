package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "MCP_API_TOKEN", "ADMIN_PASSWORD", "LOG_LEVEL", "DEBUG", "MCPHUB_UPSTREAMS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "admin", cfg.AdminPassword)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.APIToken)
	assert.False(t, cfg.Debug)
	assert.Equal(t, DefaultUpstreams(), cfg.Upstreams)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9090")
	t.Setenv("MCP_API_TOKEN", "secret-token")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "secret-token", cfg.APIToken)
	assert.Equal(t, "hunter2", cfg.AdminPassword)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestLoadUpstreamsFileMissing(t *testing.T) {
	originalReadFile := osReadFile
	osReadFile = func(path string) ([]byte, error) {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	defer func() { osReadFile = originalReadFile }()

	_, err := loadUpstreams("/nonexistent/upstreams.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading upstreams file")
}

func TestLoadUpstreamsMerge(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		validate func(t *testing.T, defs []UpstreamDefinition)
	}{
		{
			name: "file entry overrides default with same name",
			yaml: `
upstreams:
  - name: context7
    kind: http
    url: https://context7.example.com/mcp
`,
			validate: func(t *testing.T, defs []UpstreamDefinition) {
				def := findUpstream(t, defs, "context7")
				assert.Equal(t, UpstreamKindHTTP, def.Kind)
				assert.Equal(t, "https://context7.example.com/mcp", def.URL)
			},
		},
		{
			name: "file-only entry is appended",
			yaml: `
upstreams:
  - name: extra
    kind: stdio
    command: npx
    args: ["-y", "@example/mcp"]
`,
			validate: func(t *testing.T, defs []UpstreamDefinition) {
				def := findUpstream(t, defs, "extra")
				assert.Equal(t, UpstreamKindStdio, def.Kind)
				assert.Equal(t, "npx", def.Command)
				assert.Len(t, defs, len(DefaultUpstreams())+1)
			},
		},
		{
			name: "service entry gets health defaults",
			yaml: `
upstreams:
  - name: localsvc
    kind: service
    command: uvx
    port: 9200
`,
			validate: func(t *testing.T, defs []UpstreamDefinition) {
				def := findUpstream(t, defs, "localsvc")
				assert.Equal(t, DefaultHealthCheckPath, def.HealthCheckPath)
				assert.Equal(t, DefaultStartupTimeout, def.StartupTimeout)
			},
		},
		{
			name: "explicit service settings are kept",
			yaml: `
upstreams:
  - name: localsvc
    kind: service
    command: uvx
    port: 9200
    healthCheckPath: /health
    startupTimeout: 10s
`,
			validate: func(t *testing.T, defs []UpstreamDefinition) {
				def := findUpstream(t, defs, "localsvc")
				assert.Equal(t, "/health", def.HealthCheckPath)
				assert.Equal(t, 10*time.Second, def.StartupTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalReadFile := osReadFile
			osReadFile = func(path string) ([]byte, error) {
				return []byte(tt.yaml), nil
			}
			defer func() { osReadFile = originalReadFile }()

			defs, err := loadUpstreams("upstreams.yaml")
			require.NoError(t, err)
			tt.validate(t, defs)
		})
	}
}

func TestLoadUpstreamsInvalidYAML(t *testing.T) {
	originalReadFile := osReadFile
	osReadFile = func(path string) ([]byte, error) {
		return []byte("upstreams: [unclosed"), nil
	}
	defer func() { osReadFile = originalReadFile }()

	_, err := loadUpstreams("upstreams.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing upstreams file")
}

func findUpstream(t *testing.T, defs []UpstreamDefinition, name string) UpstreamDefinition {
	t.Helper()
	for _, def := range defs {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("upstream %s not found", name)
	return UpstreamDefinition{}
}
