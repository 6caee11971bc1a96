// Package config loads the engine configuration from an optional YAML file
// with OTL_* environment overrides on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"otterlive/internal/core/watch"
	"otterlive/internal/index/backend"
)

type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Daemon   DaemonConfig   `yaml:"daemon"`
}

// IndexerConfig sizes the worker pool and controls which files are indexed.
// Zero Workers means one per CPU minus SchedulerWorkers.
type IndexerConfig struct {
	Workers          int           `yaml:"workers"`
	SchedulerWorkers int           `yaml:"schedulerWorkers"`
	Debounce         time.Duration `yaml:"debounce"`
	SearchCacheSize  int           `yaml:"searchCacheSize"`
	ScanAll          bool          `yaml:"scanAll"`
	Include          []string      `yaml:"include"`
	Exclude          []string      `yaml:"exclude"`
}

type WatcherConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

// SnapshotConfig selects the persistence backend. An empty Path resolves to
// a file under the indexed root.
type SnapshotConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type DaemonConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads the YAML file at path (if any) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Indexer: IndexerConfig{
			SchedulerWorkers: 1,
			Debounce:         200 * time.Millisecond,
			SearchCacheSize:  256,
		},
		Watcher: WatcherConfig{
			PollInterval: watch.DefaultPollInterval,
		},
		Snapshot: SnapshotConfig{
			Backend: backend.Bolt,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Daemon: DaemonConfig{
			Listen: "127.0.0.1:7457",
		},
	}
}

func (c *Config) Validate() error {
	if c.Indexer.Workers < 0 {
		return fmt.Errorf("indexer.workers must not be negative")
	}
	if c.Indexer.SchedulerWorkers < 0 {
		return fmt.Errorf("indexer.schedulerWorkers must not be negative")
	}
	if c.Indexer.Debounce < 0 {
		return fmt.Errorf("indexer.debounce must not be negative")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher.pollInterval must be positive")
	}
	switch backend.NormalizeName(c.Snapshot.Backend) {
	case backend.Bolt, backend.SQLite, backend.None:
	default:
		return fmt.Errorf("snapshot.backend: unknown backend %q", c.Snapshot.Backend)
	}
	return nil
}

// applyEnvOverrides reads OTL_* environment variables and overrides the
// corresponding fields.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OTL_INDEXER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OTL_INDEXER_WORKERS: %w", err)
		}
		cfg.Indexer.Workers = n
	}
	if v := os.Getenv("OTL_INDEXER_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OTL_INDEXER_DEBOUNCE: %w", err)
		}
		cfg.Indexer.Debounce = d
	}
	if v := os.Getenv("OTL_INDEXER_SCAN_ALL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTL_INDEXER_SCAN_ALL: %w", err)
		}
		cfg.Indexer.ScanAll = b
	}
	if v := os.Getenv("OTL_INDEXER_INCLUDE"); v != "" {
		cfg.Indexer.Include = splitList(v)
	}
	if v := os.Getenv("OTL_INDEXER_EXCLUDE"); v != "" {
		cfg.Indexer.Exclude = splitList(v)
	}
	if v := os.Getenv("OTL_WATCHER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OTL_WATCHER_POLL_INTERVAL: %w", err)
		}
		cfg.Watcher.PollInterval = d
	}
	if v := os.Getenv("OTL_SNAPSHOT_BACKEND"); v != "" {
		cfg.Snapshot.Backend = v
	}
	if v := os.Getenv("OTL_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("OTL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OTL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("OTL_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTL_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	if v := os.Getenv("OTL_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("OTL_DAEMON_LISTEN"); v != "" {
		cfg.Daemon.Listen = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
