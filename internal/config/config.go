// Package config holds the cortexstore configuration tree: one explicitly
// enumerated Config struct with a sub-config per subsystem, loaded from YAML
// with environment-variable overrides, following the teacher's
// DefaultConfig/Load/Save/Validate pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree for a cortexstore instance.
type Config struct {
	// Debug switches logging to development mode (human-readable, caller
	// info, lower level threshold) per §0.1.
	Debug bool `yaml:"debug"`

	Storage       StorageConfig       `yaml:"storage"`
	Batch         BatchConfig         `yaml:"batch"`
	Temporal      TemporalConfig      `yaml:"temporal"`
	Confidence    ConfidenceConfig    `yaml:"confidence"`
	View          ViewConfig          `yaml:"view"`
	Reachability  ReachabilityConfig  `yaml:"reachability"`
}

// StorageConfig configures the Database Manager (§4.1).
type StorageConfig struct {
	// Path is the database file path. Empty means in-memory (§4.1
	// "in-memory caveat").
	Path string `yaml:"path"`

	// PoolSize is the default reader pool size; PoolMaxSize is the upper
	// bound an operator may grow it to.
	PoolSize    int `yaml:"pool_size"`
	PoolMaxSize int `yaml:"pool_max_size"`

	BusyTimeout string `yaml:"busy_timeout"` // duration string, e.g. "5s"
	CacheSizeKB int     `yaml:"cache_size_kb"` // negative sqlite cache_size semantics applied internally
	MmapSizeBytes int64 `yaml:"mmap_size_bytes"`
}

// BatchConfig configures the Batch Writer (§4.3).
type BatchConfig struct {
	ChannelCapacity  int    `yaml:"channel_capacity"`
	FlushRowThreshold int   `yaml:"flush_row_threshold"`
	FlushInterval    string `yaml:"flush_interval"` // duration string, e.g. "100ms"
}

// TemporalConfig configures the Temporal Event Store (§4.5).
type TemporalConfig struct {
	SnapshotEventThreshold int `yaml:"snapshot_event_threshold"`
	MaxCausalTraversalDepth int `yaml:"max_causal_traversal_depth"`
}

// ConfidenceConfig configures the Bayesian Confidence Scorer (§4.7).
type ConfidenceConfig struct {
	WeightFrequency   float64 `yaml:"weight_frequency"`
	WeightConsistency float64 `yaml:"weight_consistency"`
	WeightSpread      float64 `yaml:"weight_spread"`
	WeightMomentum    float64 `yaml:"weight_momentum"`
	WeightDataQuality float64 `yaml:"weight_data_quality"`
	WeightAge         float64 `yaml:"weight_age"`

	// DecayHalfLifeDays is the informal half-life used to derive the decay
	// factor; full staleness is reached at StaleAfterDays (default 90).
	DecayHalfLifeDays float64 `yaml:"decay_half_life_days"`
	StaleAfterDays    float64 `yaml:"stale_after_days"`
	MinAlphaBeta      float64 `yaml:"min_alpha_beta"`
}

// ViewConfig configures the Materialized View Engine (§4.8).
type ViewConfig struct {
	AutoRefreshInterval string `yaml:"auto_refresh_interval"` // duration string
	AutoRefreshEnabled  bool   `yaml:"auto_refresh_enabled"`
}

// ReachabilityConfig configures the Reachability Engine (§4.9).
type ReachabilityConfig struct {
	CTECrossoverNodes int `yaml:"cte_crossover_nodes"`
	CacheSize         int `yaml:"cache_size"`
	DefaultMaxDepth   int `yaml:"default_max_depth"`
}

// DefaultConfig returns the default configuration, matching the values
// named throughout §4 and §0.3 of the specification.
func DefaultConfig() *Config {
	return &Config{
		Debug: false,
		Storage: StorageConfig{
			Path:          "",
			PoolSize:      4,
			PoolMaxSize:   8,
			BusyTimeout:   "5s",
			CacheSizeKB:   64000,
			MmapSizeBytes: 268435456,
		},
		Batch: BatchConfig{
			ChannelCapacity:   1024,
			FlushRowThreshold: 500,
			FlushInterval:     "100ms",
		},
		Temporal: TemporalConfig{
			SnapshotEventThreshold:  30,
			MaxCausalTraversalDepth: 50,
		},
		Confidence: ConfidenceConfig{
			WeightFrequency:   0.25,
			WeightConsistency: 0.20,
			WeightSpread:      0.15,
			WeightMomentum:    0.15,
			WeightDataQuality: 0.15,
			WeightAge:         0.10,
			DecayHalfLifeDays: 30,
			StaleAfterDays:    90,
			MinAlphaBeta:      0.01,
		},
		View: ViewConfig{
			AutoRefreshInterval: "1h",
			AutoRefreshEnabled:  true,
		},
		Reachability: ReachabilityConfig{
			CTECrossoverNodes: 10000,
			CacheSize:         4096,
			DefaultMaxDepth:   64,
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// DefaultConfig() if the file does not exist. Environment variables are
// applied on top either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the small set of environment overrides an
// operator is expected to reach for without editing the YAML file.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CORTEXSTORE_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if v := os.Getenv("CORTEXSTORE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v := os.Getenv("CORTEXSTORE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.PoolSize = n
		}
	}
	if v := os.Getenv("CORTEXSTORE_FLUSH_ROW_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Batch.FlushRowThreshold = n
		}
	}
}

// GetBusyTimeout returns Storage.BusyTimeout as a duration, falling back to
// 5s if it fails to parse.
func (c *Config) GetBusyTimeout() time.Duration {
	return c.Storage.BusyTimeoutOrDefault()
}

// BusyTimeoutOrDefault returns BusyTimeout as a duration, falling back to
// 5s if it is empty or fails to parse.
func (s StorageConfig) BusyTimeoutOrDefault() time.Duration {
	d, err := time.ParseDuration(s.BusyTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetFlushInterval returns Batch.FlushInterval as a duration, falling back
// to 100ms if it fails to parse.
func (c *Config) GetFlushInterval() time.Duration {
	d, err := time.ParseDuration(c.Batch.FlushInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetViewAutoRefreshInterval returns View.AutoRefreshInterval as a
// duration, falling back to 1h if it fails to parse.
func (c *Config) GetViewAutoRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.View.AutoRefreshInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// Validate checks the configuration for internally-inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.Storage.PoolSize <= 0 {
		return fmt.Errorf("storage.pool_size must be positive")
	}
	if c.Storage.PoolMaxSize < c.Storage.PoolSize {
		return fmt.Errorf("storage.pool_max_size must be >= storage.pool_size")
	}
	if c.Batch.ChannelCapacity <= 0 {
		return fmt.Errorf("batch.channel_capacity must be positive")
	}
	if c.Batch.FlushRowThreshold <= 0 {
		return fmt.Errorf("batch.flush_row_threshold must be positive")
	}
	if _, err := time.ParseDuration(c.Batch.FlushInterval); err != nil {
		return fmt.Errorf("batch.flush_interval invalid: %w", err)
	}
	if c.Temporal.SnapshotEventThreshold <= 0 {
		return fmt.Errorf("temporal.snapshot_event_threshold must be positive")
	}
	sum := c.Confidence.WeightFrequency + c.Confidence.WeightConsistency +
		c.Confidence.WeightSpread + c.Confidence.WeightMomentum +
		c.Confidence.WeightDataQuality + c.Confidence.WeightAge
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("confidence evidence weights must sum to 1.0, got %f", sum)
	}
	if c.Confidence.MinAlphaBeta <= 0 {
		return fmt.Errorf("confidence.min_alpha_beta must be positive")
	}
	if c.Reachability.CTECrossoverNodes <= 0 {
		return fmt.Errorf("reachability.cte_crossover_nodes must be positive")
	}
	return nil
}
