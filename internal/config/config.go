// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Audio         AudioConfig         `yaml:"audio"`
	Session       SessionConfig       `yaml:"session"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Capture       CaptureConfig       `yaml:"capture"`
	Dump          DumpConfig          `yaml:"dump"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServiceConfig locates the transcription service and its credentials.
// BUFFERED_SERVICE_URL, BUFFERED_TOKEN_ENDPOINT and BUFFERED_API_KEY
// environment variables take precedence over the file.
type ServiceConfig struct {
	URL           string `yaml:"url"`
	TokenEndpoint string `yaml:"token_endpoint"`
	APIKey        string `yaml:"api_key"`
}

// AudioConfig controls the stream the service receives.
type AudioConfig struct {
	TargetSampleRate int `yaml:"target_sample_rate"`
	ChunkDurationMs  int `yaml:"chunk_duration_ms"`
}

// SessionConfig tunes delivery tracking and reconnection.
type SessionConfig struct {
	AckTimeoutMs     int `yaml:"ack_timeout_ms"`
	HealthIntervalMs int `yaml:"health_interval_ms"`
	SettleDelayMs    int `yaml:"settle_delay_ms"`
}

// TranscriptionConfig is passed through to the service at recognition
// start.
type TranscriptionConfig struct {
	Language       string  `yaml:"language"`
	OperatingPoint string  `yaml:"operating_point"`
	EnablePartials bool    `yaml:"enable_partials"`
	MaxDelay       float64 `yaml:"max_delay"`
}

// CaptureConfig selects and tunes the audio input.
type CaptureConfig struct {
	Source          string `yaml:"source"` // "mic" or "rtp"
	SampleRate      int    `yaml:"sample_rate"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
	RTPListen       string `yaml:"rtp_listen"`
}

// DumpConfig enables writing the outgoing PCM stream to a WAV file.
type DumpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file, fills in defaults, applies
// environment overrides and validates the result. A missing file is
// not an error: the defaults plus environment variables must then
// carry the full service configuration.
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Audio.TargetSampleRate == 0 {
		c.Audio.TargetSampleRate = 16000
	}
	if c.Audio.ChunkDurationMs == 0 {
		c.Audio.ChunkDurationMs = 50
	}
	if c.Session.AckTimeoutMs == 0 {
		c.Session.AckTimeoutMs = 3000
	}
	if c.Session.HealthIntervalMs == 0 {
		c.Session.HealthIntervalMs = 1000
	}
	if c.Session.SettleDelayMs == 0 {
		c.Session.SettleDelayMs = 500
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = "en"
	}
	if c.Capture.Source == "" {
		c.Capture.Source = "mic"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 48000
	}
	if c.Capture.FramesPerBuffer == 0 {
		c.Capture.FramesPerBuffer = 1024
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv("BUFFERED_API_KEY"); key != "" {
		c.Service.APIKey = key
	}
	if url := os.Getenv("BUFFERED_SERVICE_URL"); url != "" {
		c.Service.URL = url
	}
	if ep := os.Getenv("BUFFERED_TOKEN_ENDPOINT"); ep != "" {
		c.Service.TokenEndpoint = ep
	}
}

// Validate checks the configuration section by section.
func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Dump.Validate(); err != nil {
		return fmt.Errorf("dump config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServiceConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if s.TokenEndpoint == "" {
		return fmt.Errorf("token_endpoint cannot be empty")
	}
	if s.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it in the file or via BUFFERED_API_KEY)")
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.TargetSampleRate < 8000 || a.TargetSampleRate > 48000 {
		return fmt.Errorf("target_sample_rate must be between 8000 and 48000 Hz, got %d", a.TargetSampleRate)
	}
	if a.ChunkDurationMs < 10 || a.ChunkDurationMs > 1000 {
		return fmt.Errorf("chunk_duration_ms must be between 10 and 1000, got %d", a.ChunkDurationMs)
	}
	return nil
}

func (s *SessionConfig) Validate() error {
	if s.AckTimeoutMs < 100 {
		return fmt.Errorf("ack_timeout_ms must be at least 100, got %d", s.AckTimeoutMs)
	}
	if s.HealthIntervalMs < 100 {
		return fmt.Errorf("health_interval_ms must be at least 100, got %d", s.HealthIntervalMs)
	}
	if s.SettleDelayMs < 0 {
		return fmt.Errorf("settle_delay_ms cannot be negative, got %d", s.SettleDelayMs)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	switch c.Source {
	case "mic":
	case "rtp":
		if c.RTPListen == "" {
			return fmt.Errorf("rtp_listen cannot be empty when source is rtp")
		}
	default:
		return fmt.Errorf("source must be 'mic' or 'rtp', got '%s'", c.Source)
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", c.SampleRate)
	}
	if c.FramesPerBuffer < 64 {
		return fmt.Errorf("frames_per_buffer must be at least 64, got %d", c.FramesPerBuffer)
	}
	return nil
}

func (d *DumpConfig) Validate() error {
	if d.Enabled && d.Dir == "" {
		return fmt.Errorf("dir cannot be empty when dump is enabled")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

// GetChunkDuration returns the chunk duration as a time.Duration.
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDurationMs) * time.Millisecond
}

// GetAckTimeout returns the acknowledgment timeout as a time.Duration.
func (s *SessionConfig) GetAckTimeout() time.Duration {
	return time.Duration(s.AckTimeoutMs) * time.Millisecond
}

// GetHealthInterval returns the health check interval as a time.Duration.
func (s *SessionConfig) GetHealthInterval() time.Duration {
	return time.Duration(s.HealthIntervalMs) * time.Millisecond
}

// GetSettleDelay returns the post-reconnect settle delay as a
// time.Duration.
func (s *SessionConfig) GetSettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}
