// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validBase() *Config {
	cfg := defaultConfig()
	cfg.Sharpspring.AccountID = "acct"
	cfg.Sharpspring.SecretKey = "secret"
	return cfg
}

func TestDefaultsValidateWithCredentials(t *testing.T) {
	cfg := validBase()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with credentials should validate: %v", err)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing account_id/secret_key")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Sharpspring.BaseURL = "not a url" }},
		{"zero timeout", func(c *Config) { c.Sharpspring.Timeout = 0 }},
		{"oversized batch", func(c *Config) { c.Sync.BatchSize = 1000 }},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LEADSYNC_SHARPSPRING_SECRET_KEY", "sharpspring.secret_key"},
		{"LEADSYNC_SYNC_BATCH_SIZE", "sync.batch_size"},
		{"LEADSYNC_HTTP_LISTEN_ADDR", "http.listen_addr"},
		{"LEADSYNC_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leadsync.yaml")
	yaml := `
sharpspring:
  account_id: file-acct
  secret_key: file-secret
sync:
  interval: 1h
  batch_size: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LEADSYNC_SYNC_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Sharpspring.AccountID != "file-acct" {
		t.Errorf("account_id = %q, want value from file", cfg.Sharpspring.AccountID)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Errorf("interval = %v, want 1h from file", cfg.Sync.Interval)
	}
	// Environment outranks the file.
	if cfg.Sync.BatchSize != 25 {
		t.Errorf("batch_size = %d, want 25 from environment", cfg.Sync.BatchSize)
	}
	// Untouched values keep their defaults.
	if cfg.Sharpspring.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want default 5", cfg.Sharpspring.MaxRetries)
	}
}
