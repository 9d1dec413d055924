// Package config loads docgen.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/logging"
	"github.com/jonaddams/document-generator/internal/steps"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "docgen.yaml"

// Config is the top-level docgen.yaml configuration.
type Config struct {
	Log       LogConfig     `yaml:"log,omitempty"`
	Engine    EngineConfig  `yaml:"engine,omitempty"`
	Uploads   UploadsConfig `yaml:"uploads,omitempty"`
	Server    ServerConfig  `yaml:"server,omitempty"`
	Noise     NoiseConfig   `yaml:"noise,omitempty"`
	OutputDir string        `yaml:"output_dir,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, console
	File   string `yaml:"file,omitempty"`   // wizard log file, relative to output_dir
}

// EngineConfig holds the step lifecycle timings.
type EngineConfig struct {
	PollAttempts   int           `yaml:"poll_attempts,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	CustomizeRetry time.Duration `yaml:"customize_retry,omitempty"`
	PreviewRetry   time.Duration `yaml:"preview_retry,omitempty"`
}

// UploadsConfig caps the size of user-supplied files.
type UploadsConfig struct {
	MaxTemplateBytes int64 `yaml:"max_template_bytes,omitempty"`
	MaxDataBytes     int64 `yaml:"max_data_bytes,omitempty"`
}

// ServerConfig configures docgen serve.
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty"`
	SessionTTL     time.Duration `yaml:"session_ttl,omitempty"`
	SweepInterval  time.Duration `yaml:"sweep_interval,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	AllowedOrigins []string      `yaml:"allowed_origins,omitempty"`
}

// NoiseConfig adds suppression patterns for engine errors.
type NoiseConfig struct {
	Patterns []string `yaml:"patterns,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	p := steps.DefaultPolicy()
	return &Config{
		Log: LogConfig{Level: "info", Format: "json", File: "docgen.log"},
		Engine: EngineConfig{
			PollAttempts:   p.Poll.Attempts,
			PollInterval:   p.Poll.Interval,
			CustomizeRetry: p.CustomizeRetry,
			PreviewRetry:   p.PreviewRetry,
		},
		Uploads: UploadsConfig{
			MaxTemplateBytes: p.MaxTemplateBytes,
			MaxDataBytes:     p.MaxDataBytes,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			SessionTTL:     30 * time.Minute,
			SweepInterval:  time.Minute,
			RequestTimeout: 60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		OutputDir: ".",
	}
}

// Parse decodes docgen.yaml over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing docgen config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config at path. An empty path means DefaultFile, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading docgen config %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the configuration for values the wizard cannot run with.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("docgen config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Engine.PollAttempts < 1 {
		return fmt.Errorf("docgen config: engine.poll_attempts must be at least 1")
	}
	if c.Engine.PollInterval <= 0 || c.Engine.CustomizeRetry <= 0 || c.Engine.PreviewRetry <= 0 {
		return fmt.Errorf("docgen config: engine intervals must be positive")
	}
	if c.Uploads.MaxTemplateBytes <= 0 || c.Uploads.MaxDataBytes <= 0 {
		return fmt.Errorf("docgen config: upload limits must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("docgen config: server.addr is required")
	}
	if c.Server.SessionTTL <= 0 || c.Server.SweepInterval <= 0 {
		return fmt.Errorf("docgen config: server.session_ttl and server.sweep_interval must be positive")
	}
	return nil
}

// Policy returns the step lifecycle policy.
func (c *Config) Policy() steps.Policy {
	return steps.Policy{
		Poll: lifecycle.PollPolicy{
			Attempts: c.Engine.PollAttempts,
			Interval: c.Engine.PollInterval,
		},
		CustomizeRetry:   c.Engine.CustomizeRetry,
		PreviewRetry:     c.Engine.PreviewRetry,
		MaxTemplateBytes: c.Uploads.MaxTemplateBytes,
		MaxDataBytes:     c.Uploads.MaxDataBytes,
	}
}

// LogOptions returns the logger options, forcing debug when verbose.
func (c *Config) LogOptions(verbose bool) logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format, Verbose: verbose}
}
