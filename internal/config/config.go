// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package config defines the lead sync daemon configuration and loads it
// from layered sources (defaults, optional YAML file, environment).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete daemon configuration.
type Config struct {
	Sharpspring SharpspringConfig `koanf:"sharpspring"`
	Cache       CacheConfig       `koanf:"cache"`
	Sync        SyncConfig        `koanf:"sync"`
	HTTP        HTTPConfig        `koanf:"http"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// SharpspringConfig holds credentials and transport tuning for the
// Sharpspring REST API.
type SharpspringConfig struct {
	// BaseURL is the fixed API endpoint.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// AccountID and SecretKey authenticate every call; both are issued
	// in the Sharpspring settings UI.
	AccountID string `koanf:"account_id" validate:"required"`
	SecretKey string `koanf:"secret_key" validate:"required"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MaxRetries bounds retries on HTTP 429 responses.
	MaxRetries int `koanf:"max_retries" validate:"gte=0,lte=10"`

	// RatePerSecond throttles outgoing calls; 0 disables throttling.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"`
}

// CacheConfig holds the local lead cache settings.
type CacheConfig struct {
	// Path is the BadgerDB directory.
	Path string `koanf:"path" validate:"required"`

	// InMemory runs Badger without disk persistence. Intended for tests
	// and one-off runs; a restart loses the cache and forces a full
	// refresh.
	InMemory bool `koanf:"in_memory"`
}

// SyncConfig tunes the reconciliation job.
type SyncConfig struct {
	// Interval between reconciliation passes.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// BatchSize is the number of objects per create/update call.
	BatchSize int `koanf:"batch_size" validate:"gt=0,lte=500"`

	// ForeignKeyField is the Sharpspring custom field holding the
	// external source's own identifier, "" when the source has none.
	ForeignKeyField string `koanf:"foreign_key_field"`

	// SourceComplete marks the source as a complete enumeration, which
	// enables deactivation of cached leads the source no longer carries.
	SourceComplete bool `koanf:"source_complete"`

	// CachedProperties lists extra lead fields to index in memory.
	CachedProperties []string `koanf:"cached_properties"`

	// FieldMap translates source field names to Sharpspring system
	// names for custom fields.
	FieldMap map[string]string `koanf:"field_map"`

	// SourcePath is the JSON file the file source reads candidates from.
	SourcePath string `koanf:"source_path"`
}

// HTTPConfig configures the operational HTTP endpoint.
type HTTPConfig struct {
	// ListenAddr for /healthz and /metrics.
	ListenAddr string `koanf:"listen_addr" validate:"required"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and environment.
func defaultConfig() *Config {
	return &Config{
		Sharpspring: SharpspringConfig{
			BaseURL:       "https://api.sharpspring.com/pubapi/v1/",
			Timeout:       30 * time.Second,
			MaxRetries:    5,
			RatePerSecond: 2,
		},
		Cache: CacheConfig{
			Path: "/data/leadsync/cache",
		},
		Sync: SyncConfig{
			Interval:  15 * time.Minute,
			BatchSize: 100,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":9105",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
