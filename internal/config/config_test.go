// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
service:
  url: "wss://rt.example.com/v2"
  token_endpoint: "https://api.example.com/v1/api_keys"
  api_key: "file-key"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Audio.TargetSampleRate != 16000 {
		t.Errorf("target_sample_rate default = %d, want 16000", cfg.Audio.TargetSampleRate)
	}
	if cfg.Audio.ChunkDurationMs != 50 {
		t.Errorf("chunk_duration_ms default = %d, want 50", cfg.Audio.ChunkDurationMs)
	}
	if cfg.Session.AckTimeoutMs != 3000 {
		t.Errorf("ack_timeout_ms default = %d, want 3000", cfg.Session.AckTimeoutMs)
	}
	if cfg.Session.HealthIntervalMs != 1000 {
		t.Errorf("health_interval_ms default = %d, want 1000", cfg.Session.HealthIntervalMs)
	}
	if cfg.Transcription.Language != "en" {
		t.Errorf("language default = %q, want en", cfg.Transcription.Language)
	}
	if cfg.Capture.Source != "mic" {
		t.Errorf("capture source default = %q, want mic", cfg.Capture.Source)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
audio:
  target_sample_rate: 8000
  chunk_duration_ms: 100
session:
  ack_timeout_ms: 5000
`))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Audio.TargetSampleRate != 8000 {
		t.Errorf("target_sample_rate = %d, want 8000", cfg.Audio.TargetSampleRate)
	}
	if cfg.Audio.GetChunkDuration() != 100*time.Millisecond {
		t.Errorf("GetChunkDuration() = %v, want 100ms", cfg.Audio.GetChunkDuration())
	}
	if cfg.Session.GetAckTimeout() != 5*time.Second {
		t.Errorf("GetAckTimeout() = %v, want 5s", cfg.Session.GetAckTimeout())
	}
}

func TestLoadEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("BUFFERED_API_KEY", "env-key")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Service.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env override", cfg.Service.APIKey)
	}
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("BUFFERED_SERVICE_URL", "wss://rt.example.com/v2")
	t.Setenv("BUFFERED_TOKEN_ENDPOINT", "https://api.example.com/v1/api_keys")
	t.Setenv("BUFFERED_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() = %v, want env fallback", err)
	}
	if cfg.Service.URL != "wss://rt.example.com/v2" {
		t.Errorf("url = %q", cfg.Service.URL)
	}
	if cfg.Audio.TargetSampleRate != 16000 {
		t.Errorf("defaults not applied: target_sample_rate = %d", cfg.Audio.TargetSampleRate)
	}
}

func TestLoadMissingFileWithoutEnvFailsValidation(t *testing.T) {
	t.Setenv("BUFFERED_SERVICE_URL", "")
	t.Setenv("BUFFERED_TOKEN_ENDPOINT", "")
	t.Setenv("BUFFERED_API_KEY", "")

	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("Load() succeeded with neither file nor env configuration")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "service: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Load() = %v, want parse error", err)
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("BUFFERED_API_KEY", "")
	t.Setenv("BUFFERED_SERVICE_URL", "")
	t.Setenv("BUFFERED_TOKEN_ENDPOINT", "")

	tests := []struct {
		name     string
		yaml     string
		errorMsg string
	}{
		{
			name: "missing service url",
			yaml: `
service:
  token_endpoint: "https://api.example.com/v1/api_keys"
  api_key: "k"
`,
			errorMsg: "url cannot be empty",
		},
		{
			name: "missing api key",
			yaml: `
service:
  url: "wss://rt.example.com/v2"
  token_endpoint: "https://api.example.com/v1/api_keys"
`,
			errorMsg: "api_key cannot be empty",
		},
		{
			name: "chunk duration out of range",
			yaml: minimalYAML + `
audio:
  chunk_duration_ms: 5
`,
			errorMsg: "chunk_duration_ms must be between",
		},
		{
			name: "unknown capture source",
			yaml: minimalYAML + `
capture:
  source: "line-in"
`,
			errorMsg: "source must be 'mic' or 'rtp'",
		},
		{
			name: "rtp source without listen address",
			yaml: minimalYAML + `
capture:
  source: "rtp"
`,
			errorMsg: "rtp_listen cannot be empty",
		},
		{
			name: "dump without directory",
			yaml: minimalYAML + `
dump:
  enabled: true
`,
			errorMsg: "dir cannot be empty",
		},
		{
			name: "bad log level",
			yaml: minimalYAML + `
logging:
  level: "trace"
`,
			errorMsg: "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	s := SessionConfig{AckTimeoutMs: 3000, HealthIntervalMs: 1000, SettleDelayMs: 500}
	if s.GetAckTimeout() != 3*time.Second {
		t.Errorf("GetAckTimeout() = %v", s.GetAckTimeout())
	}
	if s.GetHealthInterval() != time.Second {
		t.Errorf("GetHealthInterval() = %v", s.GetHealthInterval())
	}
	if s.GetSettleDelay() != 500*time.Millisecond {
		t.Errorf("GetSettleDelay() = %v", s.GetSettleDelay())
	}
}
