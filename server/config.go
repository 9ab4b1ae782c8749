package server

import (
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig mirrors the optional TOML config file layout. Every field
// is a pointer so LoadFile can tell "absent" from "zero" and only
// override what the file actually sets.
type FileConfig struct {
	TimeoutMillis           *int64  `toml:"timeout_ms"`
	TimeoutRechargingMillis *int64  `toml:"timeout_recharging_ms"`
	TargetX                 *int    `toml:"target_x"`
	TargetY                 *int    `toml:"target_y"`
	LogLevel                *string `toml:"log_level"`
	LogPath                 *string `toml:"log_path"`
	ListenAddr              *string `toml:"listen_addr"`
	AdminAddr               *string `toml:"admin_addr"`
}

// configFields holds the resolved, effective configuration. Defaults
// match the wire protocol's documented values (§4.1, §4.4).
type configFields struct {
	timeout           time.Duration
	timeoutRecharging time.Duration
	target            Position
	logLevel          string
	logPath           string
	listenAddr        string
	adminAddr         string
}

// Config is the server's live configuration, safe for concurrent read
// access from sessions and concurrent override from the admin HTTP
// handler.
type Config struct {
	mu     sync.RWMutex
	fields configFields
}

// NewConfig returns a Config populated with the protocol's documented
// defaults.
func NewConfig() *Config {
	return &Config{fields: configFields{
		timeout:           1 * time.Second,
		timeoutRecharging: 5 * time.Second,
		target:            DefaultTarget,
		logLevel:          "info",
		logPath:           "robotpilot.log",
		listenAddr:        ":3999",
		adminAddr:         ":8080",
	}}
}

// LoadFile applies an optional TOML config file on top of the current
// defaults. A missing or malformed file is returned as an error; main
// only calls LoadFile when -config names a path.
func (c *Config) LoadFile(path string) error {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if fc.TimeoutMillis != nil {
		c.fields.timeout = time.Duration(*fc.TimeoutMillis) * time.Millisecond
	}
	if fc.TimeoutRechargingMillis != nil {
		c.fields.timeoutRecharging = time.Duration(*fc.TimeoutRechargingMillis) * time.Millisecond
	}
	if fc.TargetX != nil {
		c.fields.target.X = *fc.TargetX
	}
	if fc.TargetY != nil {
		c.fields.target.Y = *fc.TargetY
	}
	if fc.LogLevel != nil {
		c.fields.logLevel = *fc.LogLevel
	}
	if fc.LogPath != nil {
		c.fields.logPath = *fc.LogPath
	}
	if fc.ListenAddr != nil {
		c.fields.listenAddr = *fc.ListenAddr
	}
	if fc.AdminAddr != nil {
		c.fields.adminAddr = *fc.AdminAddr
	}
	return nil
}

// Timeout returns the normal per-read timeout.
func (c *Config) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.timeout
}

// TimeoutRecharging returns the recharging-window per-read timeout.
func (c *Config) TimeoutRecharging() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.timeoutRecharging
}

// Target returns the configured navigator target cell.
func (c *Config) Target() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.target
}

// LogLevel returns the configured zap level name.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.logLevel
}

// LogPath returns the configured lumberjack log file path.
func (c *Config) LogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.logPath
}

// ListenAddr returns the TCP address the protocol listener binds.
func (c *Config) ListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.listenAddr
}

// AdminAddr returns the HTTP address the admin/dashboard server binds.
func (c *Config) AdminAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields.adminAddr
}

// OverrideTimeout replaces the normal read timeout, e.g. from the admin
// endpoint.
func (c *Config) OverrideTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.timeout = d
}

// OverrideTimeoutRecharging replaces the recharging read timeout.
func (c *Config) OverrideTimeoutRecharging(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.timeoutRecharging = d
}

// OverrideListenAddr replaces the protocol listen address.
func (c *Config) OverrideListenAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.listenAddr = addr
}

// OverrideAdminAddr replaces the admin/dashboard listen address.
func (c *Config) OverrideAdminAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.adminAddr = addr
}

// OverrideLogLevel replaces the configured zap level name.
func (c *Config) OverrideLogLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.logLevel = level
}

// Snapshot returns a copy of the stored configuration for the admin
// endpoint, expressed in the same units the TOML file uses. log_path
// does not reflect the -log flag, which main applies without storing it.
func (c *Config) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]any{
		"timeout_ms":            c.fields.timeout.Milliseconds(),
		"timeout_recharging_ms": c.fields.timeoutRecharging.Milliseconds(),
		"target_x":              c.fields.target.X,
		"target_y":              c.fields.target.Y,
		"log_level":             c.fields.logLevel,
		"log_path":              c.fields.logPath,
		"listen_addr":           c.fields.listenAddr,
		"admin_addr":            c.fields.adminAddr,
	}
}
