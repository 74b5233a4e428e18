package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dispatch-cli/internal/events"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:8787/api"
	DefaultSandboxAddr = "127.0.0.1:8787"
	DefaultDebounce    = 250 * time.Millisecond
	DefaultTimeout     = 15 * time.Second
)

type Config struct {
	APIURL    string        `yaml:"api_url,omitempty"`
	WSURL     string        `yaml:"ws_url,omitempty"`
	Token     string        `yaml:"token,omitempty"`
	Debounce  time.Duration `yaml:"debounce,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	LogLevel  string        `yaml:"log_level,omitempty"`
	LogFormat string        `yaml:"log_format,omitempty"`
	Sandbox   Sandbox       `yaml:"sandbox,omitempty"`

	// Path is the file the config was read from ("" when none existed).
	Path string `yaml:"-"`
}

type Sandbox struct {
	Addr string `yaml:"addr,omitempty"`
	DB   string `yaml:"db,omitempty"`
}

// Dir returns ~/.dispatch unless DISPATCH_CONFIG_DIR overrides it.
func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.dispatch).
	if v := strings.TrimSpace(os.Getenv("DISPATCH_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dispatch"), nil
}

// Path returns $DISPATCH_CONFIG, or config.yaml inside Dir.
func Path() (string, error) {
	if v := strings.TrimSpace(os.Getenv("DISPATCH_CONFIG")); v != "" {
		return v, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadDotEnv reads .env from the working directory. Variables that are
// already set win; a missing file is fine.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path (Path() when empty), then applies the
// environment and defaults. Flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := &Config{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays DISPATCH_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("DISPATCH_API_URL", &c.APIURL)
	str("DISPATCH_WS_URL", &c.WSURL)
	str("DISPATCH_TOKEN", &c.Token)
	str("DISPATCH_LOG_LEVEL", &c.LogLevel)
	str("DISPATCH_LOG_FORMAT", &c.LogFormat)
	str("DISPATCH_SANDBOX_ADDR", &c.Sandbox.Addr)
	str("DISPATCH_SANDBOX_DB", &c.Sandbox.DB)
	if err := dur("DISPATCH_DEBOUNCE", &c.Debounce); err != nil {
		return err
	}
	return dur("DISPATCH_TIMEOUT", &c.Timeout)
}

// ApplyDefaults fills every unset field. Safe to call again after flags
// have changed APIURL.
func (c *Config) ApplyDefaults() error {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative (got %s)", c.Debounce)
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Sandbox.Addr == "" {
		c.Sandbox.Addr = DefaultSandboxAddr
	}
	if c.Sandbox.DB == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.Sandbox.DB = filepath.Join(dir, "sandbox.sqlite")
	}
	return nil
}

// WebsocketURL is ws_url when set, otherwise derived from the API host.
func (c *Config) WebsocketURL() (string, error) {
	if strings.TrimSpace(c.WSURL) != "" {
		return strings.TrimSpace(c.WSURL), nil
	}
	return events.WebsocketURL(c.APIURL)
}

// Redacted is the printable form used by `dispatch config`.
func (c *Config) Redacted() map[string]any {
	ws, err := c.WebsocketURL()
	if err != nil {
		ws = "invalid: " + err.Error()
	}
	token := ""
	if c.Token != "" {
		token = "********"
	}
	return map[string]any{
		"config_file": c.Path,
		"api_url":     c.APIURL,
		"ws_url":      ws,
		"token":       token,
		"debounce":    c.Debounce.String(),
		"timeout":     c.Timeout.String(),
		"log_level":   c.LogLevel,
		"log_format":  c.LogFormat,
		"sandbox": map[string]any{
			"addr": c.Sandbox.Addr,
			"db":   c.Sandbox.DB,
		},
	}
}
