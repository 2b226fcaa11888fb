// Package config holds user settings: a JSON file under the config directory,
// overlaid with CODESTATE_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/codestate/codestate-core/paths"
)

// Defaults applied when a setting is unset.
const (
	DefaultEditorCommand       = "code"
	DefaultListenAddr          = "127.0.0.1:7420"
	DefaultSettleAttempts      = 5
	DefaultSettleInitialDelay  = 100 * time.Millisecond
	DefaultExportFormat        = "json"
	maxSettleAttempts          = 20
	maxSettleInitialDelayMilli = 10_000
)

// Config holds the application configuration.
type Config struct {
	EditorCommand        string   `json:"editor_command,omitempty"`          // Command used to open files (e.g. "code", "cursor")
	AutoResume           *bool    `json:"auto_resume,omitempty"`             // Run on-open scripts at startup (default true)
	SettleAttempts       int      `json:"settle_attempts,omitempty"`         // Post-commit dirtiness re-checks (default 5)
	SettleInitialDelayMS int      `json:"settle_initial_delay_ms,omitempty"` // First re-check delay, doubled per attempt (default 100)
	ListenAddr           string   `json:"listen_addr,omitempty"`             // WebSocket listen address for `serve --ws`
	AllowedOrigins       []string `json:"allowed_origins,omitempty"`         // Browser origins besides loopback that may open the WebSocket
	ExportFormat         string   `json:"export_format,omitempty"`           // "json" or "yaml"
	Debug                bool     `json:"debug,omitempty"`                   // Debug-level logging

	mu       sync.RWMutex
	filePath string
}

// envOverrides mirrors Config for environment variables. Pointer fields stay
// nil when the variable is absent.
type envOverrides struct {
	EditorCommand  *string  `envconfig:"EDITOR"`
	AutoResume     *bool    `envconfig:"AUTO_RESUME"`
	SettleAttempts *int     `envconfig:"SETTLE_ATTEMPTS"`
	ListenAddr     *string  `envconfig:"LISTEN_ADDR"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	Debug          *bool    `envconfig:"DEBUG"`
}

// Load reads the config from the default path and applies env overrides.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{filePath: path}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays CODESTATE_* variables. Called before cfg is shared.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("codestate", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if env.EditorCommand != nil {
		c.EditorCommand = *env.EditorCommand
	}
	if env.AutoResume != nil {
		c.AutoResume = env.AutoResume
	}
	if env.SettleAttempts != nil {
		c.SettleAttempts = *env.SettleAttempts
	}
	if env.ListenAddr != nil {
		c.ListenAddr = *env.ListenAddr
	}
	if env.AllowedOrigins != nil {
		c.AllowedOrigins = env.AllowedOrigins
	}
	if env.Debug != nil {
		c.Debug = *env.Debug
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateLocked()
}

func (c *Config) validateLocked() error {
	if c.SettleAttempts < 0 || c.SettleAttempts > maxSettleAttempts {
		return fmt.Errorf("settle_attempts must be between 0 and %d, got %d", maxSettleAttempts, c.SettleAttempts)
	}
	if c.SettleInitialDelayMS < 0 || c.SettleInitialDelayMS > maxSettleInitialDelayMilli {
		return fmt.Errorf("settle_initial_delay_ms must be between 0 and %d, got %d", maxSettleInitialDelayMilli, c.SettleInitialDelayMS)
	}
	switch c.ExportFormat {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("export_format must be json or yaml, got %q", c.ExportFormat)
	}
	for _, o := range c.AllowedOrigins {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			return fmt.Errorf("allowed_origins entries must look like scheme://host[:port], got %q", o)
		}
	}
	return nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.filePath, data, 0644)
}

// Merge applies a partial JSON object on top of the current settings,
// validates, and saves. On any error the config is left unchanged.
func (c *Config) Merge(patch json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &Config{filePath: c.filePath}
	c.copyTo(next)
	if err := json.Unmarshal(patch, next); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := next.validateLocked(); err != nil {
		return err
	}

	prev := &Config{}
	c.copyTo(prev)
	next.copyTo(c)
	if err := c.saveLocked(); err != nil {
		prev.copyTo(c)
		return err
	}
	return nil
}

func (c *Config) copyTo(dst *Config) {
	dst.EditorCommand = c.EditorCommand
	dst.AutoResume = c.AutoResume
	dst.SettleAttempts = c.SettleAttempts
	dst.SettleInitialDelayMS = c.SettleInitialDelayMS
	dst.ListenAddr = c.ListenAddr
	dst.AllowedOrigins = slices.Clone(c.AllowedOrigins)
	dst.ExportFormat = c.ExportFormat
	dst.Debug = c.Debug
}

// Snapshot returns the effective settings with defaults filled in, as sent to the UI.
func (c *Config) Snapshot() map[string]any {
	return map[string]any{
		"editor_command":          c.GetEditorCommand(),
		"auto_resume":             c.AutoResumeEnabled(),
		"settle_attempts":         c.GetSettleAttempts(),
		"settle_initial_delay_ms": c.GetSettleInitialDelay().Milliseconds(),
		"listen_addr":             c.GetListenAddr(),
		"allowed_origins":         c.GetAllowedOrigins(),
		"export_format":           c.GetExportFormat(),
		"debug":                   c.IsDebug(),
	}
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// GetEditorCommand returns the editor command (default "code").
func (c *Config) GetEditorCommand() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.EditorCommand == "" {
		return DefaultEditorCommand
	}
	return c.EditorCommand
}

// AutoResumeEnabled reports whether startup auto-resume runs (default true).
func (c *Config) AutoResumeEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AutoResume == nil || *c.AutoResume
}

// GetSettleAttempts returns the post-commit verification attempts (default 5).
func (c *Config) GetSettleAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.SettleAttempts <= 0 {
		return DefaultSettleAttempts
	}
	return c.SettleAttempts
}

// GetSettleInitialDelay returns the first verification delay (default 100ms).
func (c *Config) GetSettleInitialDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.SettleInitialDelayMS <= 0 {
		return DefaultSettleInitialDelay
	}
	return time.Duration(c.SettleInitialDelayMS) * time.Millisecond
}

// GetListenAddr returns the WebSocket listen address.
func (c *Config) GetListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

// GetAllowedOrigins returns the extra WebSocket origins. Loopback origins
// are always allowed and not listed here.
func (c *Config) GetAllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.AllowedOrigins)
}

// GetExportFormat returns "json" or "yaml".
func (c *Config) GetExportFormat() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ExportFormat == "" {
		return DefaultExportFormat
	}
	return c.ExportFormat
}

// IsDebug reports whether debug logging is on.
func (c *Config) IsDebug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Debug
}
