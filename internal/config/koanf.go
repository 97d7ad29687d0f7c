// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"leadsync.yaml",
	"leadsync.yml",
	"/etc/leadsync/config.yaml",
	"/etc/leadsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "LEADSYNC_CONFIG"

// envPrefix namespaces the daemon's environment variables.
const envPrefix = "LEADSYNC_"

// Load builds the configuration from layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. LEADSYNC_* environment variables (highest priority)
//
// Environment variable names map to koanf paths by stripping the prefix
// and replacing the first underscore-separated segment with a section:
// LEADSYNC_SHARPSPRING_SECRET_KEY -> sharpspring.secret_key.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sections are the top-level config groups an env var can address.
var sections = []string{"sharpspring", "cache", "sync", "http", "logging"}

// envTransform maps LEADSYNC_SECTION_SOME_KEY to section.some_key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, sec := range sections {
		if strings.HasPrefix(s, sec+"_") {
			return sec + "." + strings.TrimPrefix(s, sec+"_")
		}
	}
	return s
}

// findConfigFile returns the first config file that exists, honoring the
// LEADSYNC_CONFIG override. Returns "" when none is found; the daemon
// then runs on defaults plus environment.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
