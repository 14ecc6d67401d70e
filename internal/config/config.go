// Package config provides configuration for the pqds tool and the library defaults.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/arkilian/pqdataset/internal/executor"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/storage"
)

// Storage types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration of dataset reads and writes.
type Config struct {
	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Write configuration
	Write WriteConfig `json:"write" yaml:"write"`

	// Read configuration
	Read ReadConfig `json:"read" yaml:"read"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the root directory (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (MinIO, LocalStack)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Prefix is prepended to every object path
	Prefix string `json:"prefix" yaml:"prefix"`
}

// WriteConfig holds writer configuration.
type WriteConfig struct {
	// Codec is the partition file format: parquet, sqlite
	Codec string `json:"codec" yaml:"codec"`

	// ChunkRows is the number of rows per partition
	ChunkRows int `json:"chunk_rows" yaml:"chunk_rows"`

	// WriteIndex stores the table index as a column
	WriteIndex bool `json:"write_index" yaml:"write_index"`

	// StagingDir receives encoded files before upload
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`
}

// ReadConfig holds executor configuration.
type ReadConfig struct {
	// Concurrency is the number of partitions decoded in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DownloadDir is the directory for downloaded partitions
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// CacheBytes bounds the downloaded partitions kept on disk; 0 disables the cache
	CacheBytes int64 `json:"cache_bytes" yaml:"cache_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	exec := executor.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Type: StorageLocal,
			Path: ".",
		},
		Write: WriteConfig{
			Codec:      partition.DefaultCodecName,
			ChunkRows:  1_000_000,
			WriteIndex: true,
		},
		Read: ReadConfig{
			Concurrency: exec.Concurrency,
			DownloadDir: exec.DownloadDir,
			CacheBytes:  exec.MaxCacheBytes,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageLocal:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when storage type is local")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when storage type is s3")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if _, err := partition.CodecByName(c.Write.Codec); err != nil {
		return fmt.Errorf("write.codec: %w", err)
	}
	if c.Write.ChunkRows <= 0 {
		return fmt.Errorf("write.chunk_rows must be positive, got %d", c.Write.ChunkRows)
	}
	if c.Read.Concurrency <= 0 {
		return fmt.Errorf("read.concurrency must be positive, got %d", c.Read.Concurrency)
	}
	if c.Read.CacheBytes < 0 {
		return fmt.Errorf("read.cache_bytes must not be negative, got %d", c.Read.CacheBytes)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// Logger builds the logger described by the log section, writing to stderr.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, level, format), nil
}

// Executor returns the executor settings of the read section.
func (c *Config) Executor() executor.Config {
	return executor.Config{
		Concurrency:   c.Read.Concurrency,
		DownloadDir:   c.Read.DownloadDir,
		MaxCacheBytes: c.Read.CacheBytes,
	}
}

// OpenStorage connects the configured object storage.
func (c *Config) OpenStorage(ctx context.Context) (storage.ObjectStorage, error) {
	switch c.Storage.Type {
	case StorageLocal:
		return storage.NewLocalStorage(c.Storage.Path)
	case StorageS3:
		return storage.NewS3Storage(ctx, c.Storage.S3.Bucket, storage.S3Config{
			Region:          c.Storage.S3.Region,
			Endpoint:        c.Storage.S3.Endpoint,
			UsePathStyle:    c.Storage.S3.UsePathStyle,
			Prefix:          c.Storage.S3.Prefix,
			MultipartConfig: storage.DefaultMultipartConfig(),
		})
	}
	return nil, fmt.Errorf("invalid storage type: %s", c.Storage.Type)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies environment overrides. Variables use the PQDS_ prefix.
// Malformed numbers are reported rather than ignored.
func LoadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"PQDS_STORAGE_TYPE":      &cfg.Storage.Type,
		"PQDS_STORAGE_PATH":      &cfg.Storage.Path,
		"PQDS_S3_BUCKET":         &cfg.Storage.S3.Bucket,
		"PQDS_S3_REGION":         &cfg.Storage.S3.Region,
		"PQDS_S3_ENDPOINT":       &cfg.Storage.S3.Endpoint,
		"PQDS_S3_PREFIX":         &cfg.Storage.S3.Prefix,
		"PQDS_WRITE_CODEC":       &cfg.Write.Codec,
		"PQDS_WRITE_STAGING_DIR": &cfg.Write.StagingDir,
		"PQDS_READ_DOWNLOAD_DIR": &cfg.Read.DownloadDir,
		"PQDS_LOG_LEVEL":         &cfg.Log.Level,
		"PQDS_LOG_FORMAT":        &cfg.Log.Format,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"PQDS_S3_USE_PATH_STYLE": &cfg.Storage.S3.UsePathStyle,
		"PQDS_WRITE_INDEX":       &cfg.Write.WriteIndex,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("PQDS_WRITE_CHUNK_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PQDS_WRITE_CHUNK_ROWS: %w", err)
		}
		cfg.Write.ChunkRows = n
	}
	if v := os.Getenv("PQDS_READ_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PQDS_READ_CONCURRENCY: %w", err)
		}
		cfg.Read.Concurrency = n
	}
	if v := os.Getenv("PQDS_READ_CACHE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PQDS_READ_CACHE_BYTES: %w", err)
		}
		cfg.Read.CacheBytes = n
	}
	return nil
}

// Load reads the optional file at path, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
