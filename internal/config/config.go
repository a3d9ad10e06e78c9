// Package config provides configuration loading for the growtriald server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete growtriald configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address (default :8080).
	Addr string `yaml:"addr"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	// Driver is memory, sqlite, or postgres (default sqlite).
	Driver string `yaml:"driver"`
	// SQLitePath is the database file when driver=sqlite.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is the connection string when driver=postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects and configures baseline photo storage.
type BlobConfig struct {
	// Driver is fs, s3, or memory (default fs).
	Driver string `yaml:"driver"`
	// FSRoot is the directory root when driver=fs.
	FSRoot string `yaml:"fs_root"`
	// S3 bucket settings when driver=s3; credentials come from the AWS chain.
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// MetricsConfig configures the observability surface.
type MetricsConfig struct {
	// Prometheus enables the /metrics endpoint.
	Prometheus bool `yaml:"prometheus"`
	// Expvar enables the /debug/vars endpoint.
	Expvar bool `yaml:"expvar"`
	// TracePath is an optional JSON-lines trace output file.
	TracePath string `yaml:"trace_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "growtrial.db",
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./blobdata",
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			Expvar:     true,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be memory, sqlite, or postgres")
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required when storage.driver is postgres")
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("blob.driver must be fs, s3, or memory")
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return fmt.Errorf("blob.s3_bucket is required when blob.driver is s3")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load returns configuration from the given path, or defaults when path is
// empty or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GROWTRIAL_CONFIG")
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// ApplyEnv exports the storage and blob selections as the environment
// variables the driver factories read, keeping file- and env-based
// deployments on one code path.
func (c *Config) ApplyEnv() {
	setEnvDefault("GROWTRIAL_STORAGE_DRIVER", c.Storage.Driver)
	setEnvDefault("GROWTRIAL_SQLITE_PATH", c.Storage.SQLitePath)
	setEnvDefault("GROWTRIAL_POSTGRES_DSN", c.Storage.PostgresDSN)
	setEnvDefault("GROWTRIAL_BLOB_DRIVER", c.Blob.Driver)
	setEnvDefault("GROWTRIAL_BLOB_FS_ROOT", c.Blob.FSRoot)
	setEnvDefault("GROWTRIAL_BLOB_S3_BUCKET", c.Blob.S3Bucket)
	setEnvDefault("GROWTRIAL_BLOB_S3_REGION", c.Blob.S3Region)
	setEnvDefault("GROWTRIAL_BLOB_S3_ENDPOINT", c.Blob.S3Endpoint)
	if c.Blob.S3PathStyle {
		setEnvDefault("GROWTRIAL_BLOB_S3_PATH_STYLE", "true")
	}
}

func setEnvDefault(key, value string) {
	if value == "" {
		return
	}
	if _, set := os.LookupEnv(key); set {
		return
	}
	_ = os.Setenv(key, value)
}
