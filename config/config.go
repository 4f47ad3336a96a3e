// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads and validates node configuration for a spacepanda
// node: storage backend, MLS ratchet-tree limits, mixer/padding policy,
// rate limiting and replay-cache sizing, plus the ambient logging/metrics/
// health sections every node carries regardless of which domain features
// are enabled.
package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root node configuration.
type Config struct {
	Environment string            `yaml:"environment" json:"environment"`
	Node        *NodeConfig       `yaml:"node" json:"node"`
	Storage     *StorageConfig    `yaml:"storage" json:"storage"`
	MLS         *MLSConfig        `yaml:"mls" json:"mls"`
	Mixer       *MixerConfig      `yaml:"mixer" json:"mixer"`
	RateLimit   *RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	ReplayCache *ReplayCacheConfig `yaml:"replay_cache" json:"replay_cache"`
	Logging     *LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig    `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig     `yaml:"health" json:"health"`
}

// NodeConfig identifies this node and its listen surface.
type NodeConfig struct {
	ID         string `yaml:"id" json:"id"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// StorageConfig selects and configures the persistence backend for groups,
// channels, message history and key packages.
type StorageConfig struct {
	Type          string `yaml:"type" json:"type"` // memory, postgres
	DSN           string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	EncryptAtRest bool   `yaml:"encrypt_at_rest" json:"encrypt_at_rest"`
}

// MLSConfig bounds the group state machine.
type MLSConfig struct {
	MaxGroupSize      int           `yaml:"max_group_size" json:"max_group_size"`
	MaxPendingProposals int         `yaml:"max_pending_proposals" json:"max_pending_proposals"`
	EpochSecretTTL    time.Duration `yaml:"epoch_secret_ttl" json:"epoch_secret_ttl"`
}

// MixerConfig controls padding/cover-traffic policy for the envelope layer.
type MixerConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	PaddingSteps []int         `yaml:"padding_steps" json:"padding_steps"`
	CoverRate    time.Duration `yaml:"cover_rate" json:"cover_rate"`
}

// RateLimitConfig bounds the token-bucket limiter applied per peer.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int     `yaml:"burst" json:"burst"`
}

// ReplayCacheConfig sizes the bounded LRU replay-fingerprint cache.
type ReplayCacheConfig struct {
	Capacity int           `yaml:"capacity" json:"capacity"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, format chosen by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Node == nil {
		cfg.Node = &NodeConfig{}
	}
	if cfg.Node.ListenAddr == "" {
		cfg.Node.ListenAddr = "0.0.0.0:9443"
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}

	if cfg.MLS == nil {
		cfg.MLS = &MLSConfig{}
	}
	if cfg.MLS.MaxGroupSize == 0 {
		cfg.MLS.MaxGroupSize = 512
	}
	if cfg.MLS.MaxPendingProposals == 0 {
		cfg.MLS.MaxPendingProposals = 128
	}
	if cfg.MLS.EpochSecretTTL == 0 {
		cfg.MLS.EpochSecretTTL = 24 * time.Hour
	}

	if cfg.Mixer == nil {
		cfg.Mixer = &MixerConfig{}
	}
	if len(cfg.Mixer.PaddingSteps) == 0 {
		cfg.Mixer.PaddingSteps = []int{256, 1024, 4096, 16384, 65536}
	}
	if cfg.Mixer.CoverRate == 0 {
		cfg.Mixer.CoverRate = 2 * time.Second
	}

	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{}
	}
	if cfg.RateLimit.RatePerSecond == 0 {
		cfg.RateLimit.RatePerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}

	if cfg.ReplayCache == nil {
		cfg.ReplayCache = &ReplayCacheConfig{}
	}
	if cfg.ReplayCache.Capacity == 0 {
		cfg.ReplayCache.Capacity = 100_000
	}
	if cfg.ReplayCache.TTL == 0 {
		cfg.ReplayCache.TTL = 10 * time.Minute
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8080
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}

// ValidationError describes a single configuration problem. Level is
// "error" (blocks startup) or "warn" (logged, non-fatal).
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for startup-blocking problems.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Storage != nil && cfg.Storage.Type == "postgres" && cfg.Storage.DSN == "" {
		errs = append(errs, ValidationError{
			Field: "storage.dsn", Message: "dsn is required for postgres storage", Level: "error",
		})
	}
	if cfg.MLS != nil && cfg.MLS.MaxGroupSize < 2 {
		errs = append(errs, ValidationError{
			Field: "mls.max_group_size", Message: "a group needs at least 2 members", Level: "error",
		})
	}
	if cfg.RateLimit != nil && cfg.RateLimit.RatePerSecond <= 0 {
		errs = append(errs, ValidationError{
			Field: "rate_limit.rate_per_second", Message: "must be positive", Level: "error",
		})
	}
	if cfg.Mixer != nil && cfg.Mixer.Enabled {
		for i := 1; i < len(cfg.Mixer.PaddingSteps); i++ {
			if cfg.Mixer.PaddingSteps[i] <= cfg.Mixer.PaddingSteps[i-1] {
				errs = append(errs, ValidationError{
					Field: "mixer.padding_steps", Message: "padding_steps must be strictly increasing", Level: "error",
				})
				break
			}
		}
	}

	return errs
}
