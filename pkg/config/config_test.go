package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Endpoint.Candidates, 5)
	assert.Equal(t, Candidate{Host: "localhost", Port: 18792, Auth: true}, cfg.Endpoint.Candidates[0])
	assert.Equal(t, 9222, cfg.Endpoint.Candidates[1].Port)
	assert.True(t, cfg.Endpoint.LaunchFallback)
	assert.False(t, cfg.Endpoint.Headless)
	assert.Equal(t, []string{"--start-maximized"}, cfg.Endpoint.LaunchArgs)
	assert.Equal(t, 1280, cfg.Session.ViewportWidth)
	assert.Equal(t, 800, cfg.Session.ViewportHeight)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddress())
	assert.Equal(t, 30*time.Second, cfg.Server.ClientTimeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "no candidates without fallback",
			mutate: func(c *Config) {
				c.Endpoint.Candidates = nil
				c.Endpoint.LaunchFallback = false
			},
			wantErr: "launch_fallback is disabled",
		},
		{
			name: "no candidates with fallback",
			mutate: func(c *Config) {
				c.Endpoint.Candidates = nil
			},
		},
		{
			name: "invalid candidate port",
			mutate: func(c *Config) {
				c.Endpoint.Candidates = []Candidate{{Host: "localhost", Port: 70000}}
			},
			wantErr: "invalid port 70000",
		},
		{
			name: "tiny viewport",
			mutate: func(c *Config) {
				c.Session.ViewportWidth = 10
			},
			wantErr: "viewport_width",
		},
		{
			name: "zero click timeout",
			mutate: func(c *Config) {
				c.Session.ClickTimeout = 0
			},
			wantErr: "click_timeout must be positive",
		},
		{
			name: "invalid server port",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: "invalid server port",
		},
		{
			name: "invalid verbosity",
			mutate: func(c *Config) {
				c.Logging.Verbosity = "chatty"
			},
			wantErr: "invalid logging verbosity",
		},
		{
			name: "empty verbosity defaults",
			mutate: func(c *Config) {
				c.Logging.Verbosity = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvAuthToken, "")

	path := filepath.Join(t.TempDir(), "pbs.yaml")
	content := `
endpoint:
  candidates:
    - host: 127.0.0.1
      port: 9333
  auth_token: from-file
  launch_fallback: false
  headless: true
  connect_timeout: 2s
session:
  viewport_width: 1400
  viewport_height: 900
  full_page_screenshots: true
server:
  port: 9222
  client_timeout: 5s
navigation:
  denied:
    - "*://*.internal/*"
logging:
  verbosity: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []Candidate{{Host: "127.0.0.1", Port: 9333}}, cfg.Endpoint.Candidates)
	assert.Equal(t, "from-file", cfg.Endpoint.AuthToken)
	assert.False(t, cfg.Endpoint.LaunchFallback)
	assert.True(t, cfg.Endpoint.Headless)
	assert.Equal(t, 2*time.Second, cfg.Endpoint.ConnectTimeout)
	assert.Equal(t, 1400, cfg.Session.ViewportWidth)
	assert.True(t, cfg.Session.FullPageScreenshots)
	assert.Equal(t, DefaultClickTimeout, cfg.Session.ClickTimeout)
	assert.Equal(t, 9222, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ClientTimeout)
	assert.Equal(t, []string{"*://*.internal/*"}, cfg.Navigation.Denied)
	assert.Equal(t, "debug", cfg.Logging.Verbosity)
}

func TestLoad_EnvOverridesToken(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvAuthToken, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Endpoint.AuthToken)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvAuthToken, "")
	require.NoError(t, os.Unsetenv(EnvAuthToken))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvAuthToken+"=from-dotenv\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Endpoint.AuthToken)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("endpoint: [unterminated"), 0600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("server:\n  port: -1\n"), 0600))
	_, err = Load(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCandidate_Hostname(t *testing.T) {
	assert.Equal(t, "localhost", Candidate{Port: 9222}.Hostname())
	assert.Equal(t, "10.0.0.5", Candidate{Host: "10.0.0.5", Port: 18792}.Hostname())
}
