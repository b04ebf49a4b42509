// Package config loads herdbook settings from a YAML file and HERDBOOK_*
// environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HERDBOOK_"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobMemory     = "memory"
	BlobFilesystem = "fs"
	BlobS3         = "s3"
)

// Config is the full herdbook configuration.
type Config struct {
	Environment string   `yaml:"environment"`
	LogLevel    string   `yaml:"log_level"`
	HTTP        HTTP     `yaml:"http"`
	Storage     Storage  `yaml:"storage"`
	Blob        Blob     `yaml:"blob"`
	Analysis    Analysis `yaml:"analysis"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Storage selects and configures the herd record store.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects and configures the report artifact store.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures an S3 or MinIO bucket.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"`
}

// Analysis tunes the pedigree service.
type Analysis struct {
	DepthBatchSize int `yaml:"depth_batch_size"`
	CacheSize      int `yaml:"cache_size"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Environment: "constrained",
		LogLevel:    "info",
		HTTP:        HTTP{Addr: ":8080"},
		Storage:     Storage{Driver: StorageSQLite, SQLitePath: "herdbook.db"},
		Blob:        Blob{Driver: BlobFilesystem, FSRoot: "herdbook-artifacts", S3: S3{Region: "us-east-1"}},
		Analysis:    Analysis{DepthBatchSize: 50, CacheSize: 32},
	}
}

// Load reads path (a missing file means defaults), applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("BLOB_S3_PREFIX", &c.Blob.S3.Prefix)

	if v, ok := lookup(EnvPrefix + "BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Blob.S3.PathStyle = b
	}
	for name, dst := range map[string]*int{
		"DEPTH_BATCH_SIZE": &c.Analysis.DepthBatchSize,
		"CACHE_SIZE":       &c.Analysis.CacheSize,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	return nil
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Environment) {
	case "", "constrained", "unconstrained":
	default:
		errs = append(errs, fmt.Errorf("environment must be constrained or unconstrained, got %q", c.Environment))
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobMemory, BlobFilesystem:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Analysis.DepthBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("analysis.depth_batch_size must be positive, got %d", c.Analysis.DepthBatchSize))
	}
	if c.Analysis.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("analysis.cache_size must be positive, got %d", c.Analysis.CacheSize))
	}
	return errors.Join(errs...)
}
