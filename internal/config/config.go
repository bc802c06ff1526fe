// Package config provides centralized configuration management for banksight.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every field maps to an environment variable named PARENT_FIELD,
// for example Pipeline.RawDir is read from PIPELINE_RAW_DIR.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Report   ReportConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `default:"8080"`

	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"60s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `split_words:"true" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are
	// believed, comma separated. Empty trusts no proxy.
	TrustedProxies []string `split_words:"true"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Only store-backed commands require it.
	URL string

	MaxConns        int           `split_words:"true" default:"10"`
	MinConns        int           `split_words:"true" default:"2"`
	MaxConnLifetime time.Duration `split_words:"true" default:"1h"`
	MaxConnIdleTime time.Duration `split_words:"true" default:"30m"`
}

// PipelineConfig holds batch cleaning settings.
type PipelineConfig struct {
	// RawDir holds the raw exports, one file per entity (default: data/raw)
	RawDir string `split_words:"true" default:"data/raw"`

	// CleanedDir receives <entity>_cleaned.csv files (default: data/cleaned)
	CleanedDir string `split_words:"true" default:"data/cleaned"`

	// Workers bounds how many entities are cleaned in parallel (default: 4)
	Workers int `default:"4"`

	// LoadTimeout caps the whole load stage (default: 10m)
	LoadTimeout time.Duration `split_words:"true" default:"10m"`
}

// ReportConfig bounds concurrent report execution.
type ReportConfig struct {
	MaxConcurrent int           `split_words:"true" default:"4"`
	MaxWait       time.Duration `split_words:"true" default:"10s"`
}

// CacheConfig holds the optional Redis report cache settings.
type CacheConfig struct {
	// RedisURL enables the cache when non-empty, e.g. redis://localhost:6379/0
	RedisURL string `split_words:"true"`

	TTL time.Duration `default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Enabled reports whether a Redis URL was configured.
func (c *CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}
