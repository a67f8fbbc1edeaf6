package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Transcription struct {
		Endpoint              string `yaml:"endpoint"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	} `yaml:"transcription"`

	UI struct {
		NotificationTTLSeconds int `yaml:"notification_ttl_seconds"`
		ProgressHideDelayMs    int `yaml:"progress_hide_delay_ms"`
	} `yaml:"ui"`

	Storage struct {
		SpoolDir       string `yaml:"spool_dir"`
		OutputDir      string `yaml:"output_dir"`
		Database       string `yaml:"database"`
		ArchiveEnabled bool   `yaml:"archive_enabled"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration used for any value the file leaves unset
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Transcription.Endpoint = "http://localhost:5000"
	cfg.UI.NotificationTTLSeconds = 5
	cfg.UI.ProgressHideDelayMs = 2000
	cfg.Storage.SpoolDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.Database = "transcripts.db"
	cfg.Cleanup.IntervalMinutes = 60
	cfg.Cleanup.MaxAgeHours = 24
	cfg.GoogleDrive.CredentialsFile = "config/credentials.json"
	cfg.GoogleDrive.TokenFile = "config/token.json"
	cfg.GoogleDrive.FolderName = "Transcripts"
	cfg.Limits.MaxFileSizeMB = 200
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would break startup
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	u, err := url.Parse(strings.TrimSpace(c.Transcription.Endpoint))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("transcription.endpoint: invalid URL %q", c.Transcription.Endpoint)
	}
	if c.Transcription.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("transcription.request_timeout_seconds: must not be negative")
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		return fmt.Errorf("limits.max_file_size_mb: must be positive")
	}
	if strings.TrimSpace(c.Storage.SpoolDir) == "" {
		return fmt.Errorf("storage.spool_dir: required")
	}
	if c.Cleanup.IntervalMinutes <= 0 || c.Cleanup.MaxAgeHours <= 0 {
		return fmt.Errorf("cleanup: interval_minutes and max_age_hours must be positive")
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequestTimeout is the per-submission timeout, zero meaning none
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Transcription.RequestTimeoutSeconds) * time.Second
}

// NotificationTTL is how long notifications stay visible
func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.UI.NotificationTTLSeconds) * time.Second
}

// ProgressHideDelay is the pause before the progress section disappears
func (c *Config) ProgressHideDelay() time.Duration {
	return time.Duration(c.UI.ProgressHideDelayMs) * time.Millisecond
}

// MaxFileSizeBytes is the upload limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
