// Package config loads the YAML configuration file driving every
// subsystem: the write buffer, WAL replay, the persist worker pool, the
// compaction driver, the catalog connection, object storage, and
// metrics.
//
// One flat YAML document, one nested struct per subsystem, yaml tags
// throughout, loaded with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beaverdb/tsdb-core/internal/objectstore"
)

// Config is the complete system configuration structure.
type Config struct {
	Buffer struct {
		MaxOpenPartitionsPerNamespace int `yaml:"max_open_partitions_per_namespace"`
	} `yaml:"buffer"`

	WAL struct {
		Dir          string `yaml:"dir"`
		SegmentGlob  string `yaml:"segment_glob"`
	} `yaml:"wal"`

	Persist struct {
		QueueBufferSize int `yaml:"queue_buffer_size"`
		WorkerCount     int `yaml:"worker_count"`
		SortKeyCacheSize int `yaml:"sort_key_cache_size"`
	} `yaml:"persist"`

	Compactor struct {
		BranchFileCap    int           `yaml:"branch_file_cap"`
		MaxParquetBytes  int64         `yaml:"max_parquet_bytes"`
		Permits          int64         `yaml:"permits"`
		BytesPerPermit   int64         `yaml:"bytes_per_permit"`
		RoundTimeout     time.Duration `yaml:"round_timeout"`
		PartitionWorkers int           `yaml:"partition_workers"`
	} `yaml:"compactor"`

	Gossip struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"gossip"`

	Catalog struct {
		// DSN is a Postgres connection string; empty means use the
		// in-memory catalog (tests, demos, single-process runs).
		DSN string `yaml:"dsn"`
	} `yaml:"catalog"`

	ObjectStore struct {
		// Backend is "memory" or "minio"; memory needs no further
		// fields and is what an empty config resolves to.
		Backend string             `yaml:"backend"`
		Minio   objectstore.Config `yaml:"minio"`
	} `yaml:"objectstore"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with conservative
// defaults, a role an earlier config iteration carried implicitly via
// struct zero values but made explicit here since several of these
// (permits, round timeout) would otherwise silently disable the
// compactor.
func applyDefaults(cfg *Config) {
	if cfg.Persist.QueueBufferSize <= 0 {
		cfg.Persist.QueueBufferSize = 1024
	}
	if cfg.Persist.WorkerCount <= 0 {
		cfg.Persist.WorkerCount = 4
	}
	if cfg.Persist.SortKeyCacheSize <= 0 {
		cfg.Persist.SortKeyCacheSize = 1024
	}
	if cfg.Compactor.BranchFileCap <= 0 {
		cfg.Compactor.BranchFileCap = 200
	}
	if cfg.Compactor.MaxParquetBytes <= 0 {
		cfg.Compactor.MaxParquetBytes = 100 << 20
	}
	if cfg.Compactor.Permits <= 0 {
		cfg.Compactor.Permits = 4
	}
	if cfg.Compactor.RoundTimeout <= 0 {
		cfg.Compactor.RoundTimeout = 5 * time.Minute
	}
	if cfg.Compactor.PartitionWorkers <= 0 {
		cfg.Compactor.PartitionWorkers = 1
	}
	if cfg.ObjectStore.Backend == "" {
		cfg.ObjectStore.Backend = "memory"
	}
	if cfg.Metrics.Port <= 0 {
		cfg.Metrics.Port = 9090
	}
}
