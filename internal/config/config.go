package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file. The tokens have no file
// fallback: they are secrets and must come from the environment.
const (
	EnvPageToken   = "FB_PAGE_TOKEN"
	EnvVerifyToken = "FB_VERIFY_TOKEN"
	EnvThreads     = "STT_THREADS"
	EnvBucket      = "STT_BUCKET"
)

// Config represents the complete bot configuration
type Config struct {
	Messenger  MessengerConfig  `yaml:"messenger"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MessengerConfig contains the webhook listener and Graph API settings
type MessengerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	PageToken     string `yaml:"-"`
	VerifyToken   string `yaml:"-"`

	// Threads is the whitelist of thread IDs the bot acts in. It can be
	// set in the file or overridden by STT_THREADS (comma-separated).
	Threads []string `yaml:"threads"`
}

// PipelineConfig contains audio processing parameters
type PipelineConfig struct {
	SampleRate    int    `yaml:"sample_rate"`
	Language      string `yaml:"language"`
	FetchTimeout  int    `yaml:"fetch_timeout"`  // seconds
	MaxAttachment int    `yaml:"max_attachment"` // bytes
}

// StorageConfig contains the recognition object store settings
type StorageConfig struct {
	Bucket  string `yaml:"bucket"`
	Timeout int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MonitoringConfig contains the monitoring HTTP server configuration
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Messenger: MessengerConfig{
			ListenAddress: ":8080",
		},
		Pipeline: PipelineConfig{
			SampleRate:    16000,
			Language:      "fr-FR",
			FetchTimeout:  30,
			MaxAttachment: 25 << 20,
		},
		Storage: StorageConfig{
			Bucket:  "audio_messages",
			Timeout: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8081,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (empty path skips the file), then the environment overlay.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	c.Messenger.PageToken = os.Getenv(EnvPageToken)
	c.Messenger.VerifyToken = os.Getenv(EnvVerifyToken)

	if threads := os.Getenv(EnvThreads); threads != "" {
		c.Messenger.Threads = splitThreads(threads)
	}
	if bucket := os.Getenv(EnvBucket); bucket != "" {
		c.Storage.Bucket = bucket
	}
}

// splitThreads parses a comma-separated thread ID list, dropping empty
// entries and surrounding whitespace.
func splitThreads(s string) []string {
	var threads []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			threads = append(threads, id)
		}
	}
	return threads
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Messenger.Validate(); err != nil {
		return fmt.Errorf("messenger config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	return nil
}

// Validate validates messenger configuration
func (m *MessengerConfig) Validate() error {
	if m.ListenAddress == "" {
		return fmt.Errorf("listen_address cannot be empty")
	}

	if m.PageToken == "" {
		return fmt.Errorf("%s must be set", EnvPageToken)
	}

	if m.VerifyToken == "" {
		return fmt.Errorf("%s must be set", EnvVerifyToken)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for speech recognition, got %d", p.SampleRate)
	}

	if p.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if p.FetchTimeout < 1 {
		return fmt.Errorf("fetch_timeout must be at least 1 second, got %d", p.FetchTimeout)
	}

	if p.MaxAttachment < 1024 {
		return fmt.Errorf("max_attachment must be at least 1024 bytes, got %d", p.MaxAttachment)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true}
	if !validOutputs[l.Output] {
		return fmt.Errorf("output must be 'stdout' or 'stderr', got '%s'", l.Output)
	}

	return nil
}

// Validate validates monitoring configuration
func (m *MonitoringConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("address cannot be empty when monitoring is enabled")
		}
	}

	return nil
}
