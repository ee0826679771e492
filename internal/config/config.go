// Package config loads mmdrender settings from defaults, a YAML file,
// MMDRENDER_* environment variables and, in cmd/mmdrender, command-line flags,
// in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mmdrender/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// appDir is the directory under the user config dir searched for named configs.
const appDir = "go-mmdrender"

// Field limits.
const (
	MaxHostLength  = 253  // DNS name
	MaxPathLength  = 4096 // PATH_MAX
	MaxURLLength   = 2048 // Browser limit
	MaxOrigins     = 64
	MaxWorkers     = 64
	MaxTextLimit   = 16 << 20
	MaxBodyLimit   = 64 << 20
	MaxRenderScale = 10.0
)

// Defaults.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 2 << 20
	DefaultRenderTimeout   = 30 * time.Second
	DefaultMaxTextLength   = 1 << 20
	DefaultMaxScale        = 10.0
	DefaultLogLevel        = "info"
	DefaultRatePerSecond   = 10.0
	DefaultRateBurst       = 20
)

// Config holds all settings for the renderer, the HTTP server and the CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Render    RenderConfig    `yaml:"render"`
	Browser   BrowserConfig   `yaml:"browser"`
	Assets    AssetsConfig    `yaml:"assets"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit" split_words:"true"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" split_words:"true"`
}

// RenderConfig defines per-render limits.
type RenderConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxTextLength int           `yaml:"maxTextLength" split_words:"true"`
	MaxScale      float64       `yaml:"maxScale" split_words:"true"`
	Workers       int           `yaml:"workers"` // CLI batch parallelism, 0 = auto
}

// BrowserConfig defines how Chrome is launched.
type BrowserConfig struct {
	Bin       string `yaml:"bin"`                           // empty = rod lookup/download
	NoSandbox bool   `yaml:"noSandbox" split_words:"true"` // containers, CI
}

// AssetsConfig defines where the browser payload comes from.
type AssetsConfig struct {
	BasePath   string `yaml:"basePath" split_words:"true"`   // empty = embedded assets
	PayloadURL string `yaml:"payloadURL" split_words:"true"` // empty = pinned CDN URL
	CacheDir   string `yaml:"cacheDir" split_words:"true"`   // empty = user cache dir
	Offline    bool   `yaml:"offline"`
}

// LoggingConfig defines the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// RateLimitConfig defines request throttling on POST /render.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" split_words:"true"`
	Burst             int     `yaml:"burst"`
	PerClient         bool    `yaml:"perClient" split_words:"true"` // one bucket per client IP
}

// CORSConfig defines allowed cross-origin callers.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins" split_words:"true"` // empty = any origin
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Render: RenderConfig{
			Timeout:       DefaultRenderTimeout,
			MaxTextLength: DefaultMaxTextLength,
			MaxScale:      DefaultMaxScale,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: DefaultRatePerSecond,
			Burst:             DefaultRateBurst,
		},
	}
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate bounds-checks every field. Called by LoadConfig and again by the
// CLI after flags are merged.
func (c *Config) Validate() error {
	if err := validateFieldLength("server.host", c.Server.Host, MaxHostLength); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return invalid("server.shutdownTimeout", "must not be negative, got %v", c.Server.ShutdownTimeout)
	}
	if c.Server.MaxBodyBytes < 1 || c.Server.MaxBodyBytes > MaxBodyLimit {
		return invalid("server.maxBodyBytes", "must be between 1 and %d, got %d", MaxBodyLimit, c.Server.MaxBodyBytes)
	}

	if c.Render.Timeout <= 0 {
		return invalid("render.timeout", "must be positive, got %v", c.Render.Timeout)
	}
	if c.Render.MaxTextLength < 0 || c.Render.MaxTextLength > MaxTextLimit {
		return invalid("render.maxTextLength", "must be between 0 and %d, got %d", MaxTextLimit, c.Render.MaxTextLength)
	}
	if math.IsNaN(c.Render.MaxScale) || c.Render.MaxScale <= 0 || c.Render.MaxScale > MaxRenderScale {
		return invalid("render.maxScale", "must be > 0 and <= %v, got %v", MaxRenderScale, c.Render.MaxScale)
	}
	if c.Render.Workers < 0 || c.Render.Workers > MaxWorkers {
		return invalid("render.workers", "must be between 0 and %d, got %d", MaxWorkers, c.Render.Workers)
	}

	if err := validateFieldLength("browser.bin", c.Browser.Bin, MaxPathLength); err != nil {
		return err
	}

	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.cacheDir", c.Assets.CacheDir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.payloadURL", c.Assets.PayloadURL, MaxURLLength); err != nil {
		return err
	}
	if c.Assets.PayloadURL != "" && !fileutil.IsURL(c.Assets.PayloadURL) {
		return invalid("assets.payloadURL", "must be an http(s) URL, got %q", c.Assets.PayloadURL)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return invalid("logging.level", "must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	if c.RateLimit.Enabled {
		if math.IsNaN(c.RateLimit.RequestsPerSecond) || c.RateLimit.RequestsPerSecond <= 0 {
			return invalid("rateLimit.requestsPerSecond", "must be positive when enabled, got %v", c.RateLimit.RequestsPerSecond)
		}
		if c.RateLimit.Burst < 1 {
			return invalid("rateLimit.burst", "must be at least 1 when enabled, got %d", c.RateLimit.Burst)
		}
	}

	if len(c.CORS.AllowOrigins) > MaxOrigins {
		return invalid("cors.allowOrigins", "at most %d entries, got %d", MaxOrigins, len(c.CORS.AllowOrigins))
	}
	for i, origin := range c.CORS.AllowOrigins {
		if err := validateFieldLength(fmt.Sprintf("cors.allowOrigins[%d]", i), origin, MaxURLLength); err != nil {
			return err
		}
	}

	return nil
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidValue, field, fmt.Sprintf(format, args...))
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name on top of
// DefaultConfig. If nameOrPath contains a path separator, it's treated as a
// file path. Otherwise, it's searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\") || strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml")
}

// SearchPaths lists the candidate files for a config name, in lookup order:
// current directory, then ~/.config/go-mmdrender/, each with .yaml then .yml.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, appDir, name+ext))
		}
	}
	return paths
}

func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
