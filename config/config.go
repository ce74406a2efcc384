// Package config handles leave-engine configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

// Config is the root configuration structure.
type Config struct {
	// Server settings for the HTTP API
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Leave engine settings
	Leave LeaveConfig `yaml:"leave" mapstructure:"leave"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port the API listens on.
	Port int `yaml:"port" mapstructure:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path. ":memory:" is allowed.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// LeaveConfig contains the knobs of the validation and approval engine.
type LeaveConfig struct {
	// HoursPerDay converts computed hours into days.
	HoursPerDay int `yaml:"hours_per_day" mapstructure:"hours_per_day"`

	// MaxEscalationDepth bounds the supervisor chain.
	MaxEscalationDepth int `yaml:"max_escalation_depth" mapstructure:"max_escalation_depth"`

	// CatalogFile optionally overrides the built-in leave types.
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`

	// CatalogCacheTTL is how long the API serves a loaded catalog.
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl" mapstructure:"catalog_cache_ttl"`

	// SimpleHoursFallback estimates hours from weekdays when an employee
	// has no schedule in range.
	SimpleHoursFallback bool `yaml:"simple_hours_fallback" mapstructure:"simple_hours_fallback"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path: "./leave.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Leave: LeaveConfig{
			HoursPerDay:         int(timeoff.DefaultDailyHours.IntPart()),
			MaxEscalationDepth:  timeoff.DefaultMaxEscalationDepth,
			CatalogCacheTTL:     5 * time.Minute,
			SimpleHoursFallback: true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}
	if c.Leave.HoursPerDay < 1 || c.Leave.HoursPerDay > 24 {
		return fmt.Errorf("leave.hours_per_day must be between 1 and 24")
	}
	if c.Leave.MaxEscalationDepth < 1 {
		return fmt.Errorf("leave.max_escalation_depth must be at least 1")
	}
	if c.Leave.CatalogCacheTTL < 0 {
		return fmt.Errorf("leave.catalog_cache_ttl must not be negative")
	}
	return nil
}

// EnsureDirectories creates the database directory.
func (c *Config) EnsureDirectories() error {
	if c.Database.Path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
