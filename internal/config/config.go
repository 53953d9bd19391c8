// Package config loads and resolves PagePilot configuration. Config comes
// from an embedded YAML default, optionally overridden by a user file, with
// ${VAR} environment expansion applied before parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied during Resolve.
const (
	// DefaultCDPPort is the standard Chromium remote debugging port.
	DefaultCDPPort = 9222

	// DefaultBridgePort is where the WebSocket CDP bridge listens.
	DefaultBridgePort = 9223

	// DefaultSettleMinMS / DefaultSettleMaxMS bound the post-scroll settle
	// delay before an interaction dispatches.
	DefaultSettleMinMS = 300
	DefaultSettleMaxMS = 600

	// DefaultKeyDelayMS is the base gap between typed characters.
	DefaultKeyDelayMS = 35

	// DefaultConnectTimeout bounds endpoint discovery requests.
	DefaultConnectTimeout = 5 * time.Second
)

// Config is the on-disk shape. Zero values mean "use the default".
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint" json:"endpoint"`
	Bridge   BridgeConfig   `yaml:"bridge" json:"bridge"`
	Interact InteractConfig `yaml:"interact" json:"interact"`
	Journal  JournalConfig  `yaml:"journal" json:"journal"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// EndpointConfig describes the debugging endpoint of the browser that owns
// the page being driven.
type EndpointConfig struct {
	// URL of the DevTools endpoint, e.g. http://127.0.0.1:9222. Takes
	// precedence over Port when both are set.
	URL string `yaml:"url" json:"url"`
	// Port shorthand; resolved to http://127.0.0.1:<port>.
	Port int `yaml:"port" json:"port"`
	// Target pins an explicit target id. Optional.
	Target string `yaml:"target" json:"target"`
	// URLContains selects the first page target whose URL contains this
	// substring. Ignored when Target is set.
	URLContains string `yaml:"url_contains" json:"url_contains"`
	// ConnectTimeoutSeconds bounds /json discovery calls.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" json:"connect_timeout_seconds"`
}

// BridgeConfig configures the extension-facing CDP bridge.
type BridgeConfig struct {
	Port int `yaml:"port" json:"port"`
	// RequireAuth forces token auth even for loopback CDP clients.
	RequireAuth bool `yaml:"require_auth" json:"require_auth"`
}

// InteractConfig tunes interaction pacing.
type InteractConfig struct {
	SettleMinMS int `yaml:"settle_min_ms" json:"settle_min_ms"`
	SettleMaxMS int `yaml:"settle_max_ms" json:"settle_max_ms"`
	KeyDelayMS  int `yaml:"key_delay_ms" json:"key_delay_ms"`
}

// JournalConfig controls the SQLite action journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Quiet bool `yaml:"quiet" json:"quiet"`
}

// Resolved is a Config with every default filled in and derived values
// computed. Components consume Resolved, never Config.
type Resolved struct {
	EndpointURL    string
	Target         string
	URLContains    string
	ConnectTimeout time.Duration

	BridgePort        int
	BridgeRequireAuth bool

	SettleMin time.Duration
	SettleMax time.Duration
	KeyDelay  time.Duration

	JournalEnabled bool
	JournalPath    string

	Quiet bool
}

// LoadFromBytes parses YAML config with environment expansion.
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// Resolve fills defaults and computes derived values.
func (c Config) Resolve() (Resolved, error) {
	r := Resolved{
		Target:            c.Endpoint.Target,
		URLContains:       c.Endpoint.URLContains,
		ConnectTimeout:    DefaultConnectTimeout,
		BridgePort:        c.Bridge.Port,
		BridgeRequireAuth: c.Bridge.RequireAuth,
		JournalEnabled:    c.Journal.Enabled,
		JournalPath:       c.Journal.Path,
		Quiet:             c.Logging.Quiet,
	}

	if c.Endpoint.ConnectTimeoutSeconds > 0 {
		r.ConnectTimeout = time.Duration(c.Endpoint.ConnectTimeoutSeconds) * time.Second
	}

	switch {
	case c.Endpoint.URL != "":
		r.EndpointURL = strings.TrimRight(c.Endpoint.URL, "/")
	case c.Endpoint.Port > 0:
		r.EndpointURL = fmt.Sprintf("http://127.0.0.1:%d", c.Endpoint.Port)
	default:
		r.EndpointURL = fmt.Sprintf("http://127.0.0.1:%d", DefaultCDPPort)
	}
	if env := os.Getenv("PAGEPILOT_ENDPOINT"); env != "" {
		r.EndpointURL = strings.TrimRight(env, "/")
	}

	if r.BridgePort == 0 {
		r.BridgePort = DefaultBridgePort
	}

	r.SettleMin = time.Duration(pickMS(c.Interact.SettleMinMS, DefaultSettleMinMS)) * time.Millisecond
	r.SettleMax = time.Duration(pickMS(c.Interact.SettleMaxMS, DefaultSettleMaxMS)) * time.Millisecond
	if r.SettleMax < r.SettleMin {
		r.SettleMax = r.SettleMin
	}
	r.KeyDelay = time.Duration(pickMS(c.Interact.KeyDelayMS, DefaultKeyDelayMS)) * time.Millisecond

	if r.JournalEnabled && r.JournalPath == "" {
		dir, err := DataDir()
		if err != nil {
			return r, fmt.Errorf("journal path: %w", err)
		}
		r.JournalPath = filepath.Join(dir, "journal.db")
	}

	return r, nil
}

func pickMS(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// DataDir returns the directory for mutable state, creating it if needed.
// Override with PAGEPILOT_DATA_DIR.
func DataDir() (string, error) {
	if dir := os.Getenv("PAGEPILOT_DATA_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0o755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".pagepilot")
	return dir, os.MkdirAll(dir, 0o755)
}

// PortFromURL extracts the port of a debugging endpoint URL, or 0.
func PortFromURL(url string) int {
	var port int
	for _, pattern := range []string{"http://127.0.0.1:%d", "http://localhost:%d", "ws://127.0.0.1:%d", "ws://localhost:%d"} {
		if _, err := fmt.Sscanf(url, pattern, &port); err == nil && port > 0 {
			return port
		}
	}
	return 0
}
