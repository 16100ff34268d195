// CLAUDE:SUMMARY YAML configuration for covgate: defaults, validation, COVGATE_* environment overrides, log level parsing.
// Package config loads the covgate configuration file.
//
// Precedence, lowest first: built-in defaults, the YAML file, then the
// COVGATE_ADDR, COVGATE_DB and COVGATE_LOG_LEVEL environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/covgate/coverage"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDBPath          = "data/covgate.db"
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Coverage coverage.Config `yaml:"coverage"`
}

// ServerConfig holds the HTTP and process settings.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// LogLevel is one of: debug | info | warn | error. Reloaded live.
	LogLevel string `yaml:"log_level"`

	// MaxBodyBytes caps request bodies. Zero or negative disables the limit.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MCPEnabled mounts the MCP streamable HTTP endpoint at /mcp.
	MCPEnabled bool `yaml:"mcp_enabled"`

	// TraceSQL routes ledger queries through the sqlite-trace driver.
	TraceSQL bool `yaml:"trace_sql"`
}

// Load reads the YAML file at path. An empty path yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg, os.Getenv)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			LogLevel:        DefaultLogLevel,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
			MCPEnabled:      true,
		},
		Coverage: coverage.Config{
			DBPath:        DefaultDBPath,
			BackfillLimit: 10,
			BadgeLabel:    "coverage",
			ChartWidth:    500,
			ChartHeight:   200,
		},
	}
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("COVGATE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("COVGATE_DB"); v != "" {
		cfg.Coverage.DBPath = v
	}
	if v := getenv("COVGATE_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := ParseLevel(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("server.log_level: %w", err)
	}
	if cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if cfg.Coverage.DBPath == "" {
		return fmt.Errorf("coverage.db_path is required")
	}
	if cfg.Coverage.BackfillLimit < 0 {
		return fmt.Errorf("coverage.backfill_limit must not be negative")
	}
	if cfg.Coverage.ChartWidth < 0 || cfg.Coverage.ChartHeight < 0 {
		return fmt.Errorf("coverage.chart_width and chart_height must not be negative")
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
