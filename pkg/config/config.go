package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvAuthToken overrides endpoint.auth_token when set.
const EnvAuthToken = "PBS_AUTH_TOKEN"

// Default values for the session server
const (
	DefaultHost            = "localhost"
	DefaultRelayPort       = 18792
	DefaultViewportWidth   = 1280
	DefaultViewportHeight  = 800
	DefaultScreenshotPath  = "screenshot.png"
	DefaultServerAddress   = "127.0.0.1"
	DefaultServerPort      = 9999
	DefaultMaxConnections  = 16
	DefaultClientTimeout   = 30 * time.Second
	DefaultCommandTimeout  = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultNavigateTimeout = 30 * time.Second
	DefaultClickTimeout    = 15 * time.Second
	DefaultSelectorTimeout = 10 * time.Second
)

// Config is the complete configuration of a pbs process.
type Config struct {
	// Endpoint discovery
	Endpoint EndpointConfig `yaml:"endpoint" json:"endpoint"`

	// Page defaults for new sessions
	Session SessionConfig `yaml:"session" json:"session"`

	// Socket server and client
	Server ServerConfig `yaml:"server" json:"server"`

	// URL rules applied to open
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Diagnostics
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Candidate is one endpoint the resolver may attach to.
type Candidate struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Auth marks an authenticated relay that needs the bearer token
	Auth bool `yaml:"auth" json:"auth"`
}

// Hostname returns the candidate host, or DefaultHost when unset.
func (c Candidate) Hostname() string {
	if c.Host == "" {
		return DefaultHost
	}
	return c.Host
}

// EndpointConfig controls how the browser endpoint is discovered.
type EndpointConfig struct {
	// Candidates are tried in order; the first successful attach wins
	Candidates []Candidate `yaml:"candidates" json:"candidates"`

	// AuthToken is the bearer credential for authenticated relays
	AuthToken string `yaml:"auth_token" json:"auth_token"`

	// LaunchFallback launches a local browser when no candidate attaches.
	// When false, exhausting the candidates is a connection error.
	LaunchFallback bool `yaml:"launch_fallback" json:"launch_fallback"`

	// Headless applies to launched browsers only
	Headless bool `yaml:"headless" json:"headless"`

	// LaunchArgs are passed to launched browsers
	LaunchArgs []string `yaml:"launch_args" json:"launch_args"`

	// ConnectTimeout bounds each attach attempt
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// SessionConfig holds page defaults.
type SessionConfig struct {
	ViewportWidth       int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight      int           `yaml:"viewport_height" json:"viewport_height"`
	DefaultTimeout      time.Duration `yaml:"default_timeout" json:"default_timeout"`
	NavigateTimeout     time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	ClickTimeout        time.Duration `yaml:"click_timeout" json:"click_timeout"`
	SelectorTimeout     time.Duration `yaml:"selector_timeout" json:"selector_timeout"`
	ScreenshotPath      string        `yaml:"screenshot_path" json:"screenshot_path"`
	FullPageScreenshots bool          `yaml:"full_page_screenshots" json:"full_page_screenshots"`
}

// ServerConfig holds socket transport settings.
type ServerConfig struct {
	Address        string        `yaml:"address" json:"address"`
	Port           int           `yaml:"port" json:"port"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	ClientTimeout  time.Duration `yaml:"client_timeout" json:"client_timeout"`
}

// ListenAddress returns address:port for the socket server.
func (s ServerConfig) ListenAddress() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// NavigationConfig restricts the URLs open may navigate to.
// Denied patterns take precedence; an empty allow list allows everything.
type NavigationConfig struct {
	Allowed []string `yaml:"allowed" json:"allowed"`
	Denied  []string `yaml:"denied" json:"denied"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// File mirrors diagnostics into ~/.pbs/logs
	File bool `yaml:"file" json:"file"`
}

// DefaultCandidates returns the built-in probe order: the authenticated
// relay first, then the usual remote debugging ports.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Host: DefaultHost, Port: DefaultRelayPort, Auth: true},
		{Host: DefaultHost, Port: 9222},
		{Host: DefaultHost, Port: 9223},
		{Host: DefaultHost, Port: 9224},
		{Host: DefaultHost, Port: 9225},
	}
}

// DefaultConfig returns a configuration suitable for a workstation with a
// debug-enabled Chrome.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Candidates:     DefaultCandidates(),
			LaunchFallback: true,
			Headless:       false,
			LaunchArgs:     []string{"--start-maximized"},
			ConnectTimeout: DefaultConnectTimeout,
		},
		Session: SessionConfig{
			ViewportWidth:   DefaultViewportWidth,
			ViewportHeight:  DefaultViewportHeight,
			DefaultTimeout:  DefaultCommandTimeout,
			NavigateTimeout: DefaultNavigateTimeout,
			ClickTimeout:    DefaultClickTimeout,
			SelectorTimeout: DefaultSelectorTimeout,
			ScreenshotPath:  DefaultScreenshotPath,
		},
		Server: ServerConfig{
			Address:        DefaultServerAddress,
			Port:           DefaultServerPort,
			MaxConnections: DefaultMaxConnections,
			ClientTimeout:  DefaultClientTimeout,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Endpoint.Candidates) == 0 && !c.Endpoint.LaunchFallback {
		return fmt.Errorf("no endpoint candidates configured and launch_fallback is disabled")
	}

	for i, cand := range c.Endpoint.Candidates {
		if cand.Port <= 0 || cand.Port > 65535 {
			return fmt.Errorf("endpoint candidate %d: invalid port %d", i, cand.Port)
		}
	}

	if c.Endpoint.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout cannot be negative")
	}

	if c.Session.ViewportWidth < 100 || c.Session.ViewportWidth > 5000 {
		return fmt.Errorf("viewport_width must be between 100 and 5000 pixels")
	}
	if c.Session.ViewportHeight < 100 || c.Session.ViewportHeight > 5000 {
		return fmt.Errorf("viewport_height must be between 100 and 5000 pixels")
	}

	for name, d := range map[string]time.Duration{
		"default_timeout":  c.Session.DefaultTimeout,
		"navigate_timeout": c.Session.NavigateTimeout,
		"click_timeout":    c.Session.ClickTimeout,
		"selector_timeout": c.Session.SelectorTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if c.Server.ClientTimeout <= 0 {
		return fmt.Errorf("client_timeout must be positive")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. A .env file in the
// working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if token := os.Getenv(EnvAuthToken); token != "" {
		c.Endpoint.AuthToken = token
	}
}
