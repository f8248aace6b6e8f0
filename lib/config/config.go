// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Satchel commands.
//
// Configuration is loaded from a single YAML file specified by:
//   - SATCHEL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// Payload files handed to "share encode" are a separate format: JSON
// with comments (JSONC), parsed by LoadPayloadFile.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Satchel.
type Config struct {
	// Store configures the durable medium.
	Store StoreConfig `yaml:"store"`

	// Namespace configures the default namespace identity.
	Namespace NamespaceConfig `yaml:"namespace"`

	// Medium selects "durable" or "ephemeral" when no indicator is
	// stored yet. Empty means durable.
	Medium string `yaml:"medium"`
}

// StoreConfig configures the durable medium.
type StoreConfig struct {
	// Path is the SQLite database file shared by all processes of
	// this installation. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the default.
	PoolSize int `yaml:"pool_size"`

	// PollInterval is how often a process checks the changelog for
	// other processes' writes. Zero means the default.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NamespaceConfig names the default namespace.
type NamespaceConfig struct {
	// Title and Subtitle form the deterministic identity of the
	// default namespace. Both may be empty.
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`

	// Label is the display name for the default namespace.
	Label string `yaml:"label"`
}

// Load loads configuration from the SATCHEL_CONFIG environment
// variable. There are no fallbacks: if SATCHEL_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SATCHEL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SATCHEL_CONFIG environment variable not set; " +
			"set it to the path of your satchel.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	return cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.PoolSize < 0 {
		return fmt.Errorf("store.pool_size must not be negative")
	}
	switch c.Medium {
	case "", "durable", "ephemeral":
	default:
		return fmt.Errorf("medium must be \"durable\" or \"ephemeral\", got %q", c.Medium)
	}
	return nil
}

// LoadPayloadFile reads a share payload description in JSONC (JSON
// with comments and trailing commas) and returns plain JSON bytes for
// the caller to unmarshal. Hand-edited payload files get to carry
// commentary; the wire format stays strict JSON.
func LoadPayloadFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading payload file %s: %w", path, err)
	}
	return jsonc.ToJSON(raw), nil
}
