package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// Config represents the shardlog configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Prefix  string  `yaml:"prefix"`
	Writer  Writer  `yaml:"writer"`
	Reader  Reader  `yaml:"reader"`
	Logging Logging `yaml:"logging"`
	Server  Server  `yaml:"server"`
	Catalog Catalog `yaml:"catalog"`
}

// Writer contains multi-threaded writer options
type Writer struct {
	NumShards          int               `yaml:"num_shards"`
	WorkerThreads      int               `yaml:"worker_threads"`
	MaxBytesPerWriter  int64             `yaml:"max_bytes_per_writer"`
	TaskQueueCapacity  int               `yaml:"task_queue_capacity"`
	EnableAutoSharding bool              `yaml:"enable_auto_sharding"`
	Append             bool              `yaml:"append"`
	BufferSize         int               `yaml:"buffer_size"`
	Compression        store.Compression `yaml:"compression"` // none or zstd
}

// Reader contains multi-threaded reader options
type Reader struct {
	NumShards          int    `yaml:"num_shards"`
	WorkerThreads      int    `yaml:"worker_threads"`
	QueueSizeMB        int    `yaml:"queue_size_mb"`
	CorruptionStrategy string `yaml:"corruption_strategy"`
	BufferSize         int    `yaml:"buffer_size"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Server contains the inspection API listener
type Server struct {
	Port int    `yaml:"port"`
	Bind string `yaml:"bind"`
}

// Catalog contains the shard statistics cache
type Catalog struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // Defaults to <data_dir>/.catalog
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Prefix:  sharding.DefaultPrefix,
		Writer: Writer{
			NumShards:          parallel.DefaultNumShards,
			MaxBytesPerWriter:  parallel.DefaultMaxBytesPerWriter,
			TaskQueueCapacity:  parallel.DefaultTaskQueueCapacity,
			EnableAutoSharding: true,
			Append:             true,
		},
		Reader: Reader{
			NumShards:          parallel.DefaultNumShards,
			WorkerThreads:      parallel.DefaultReaderWorkers,
			QueueSizeMB:        parallel.DefaultQueueSizeBytes >> 20,
			CorruptionStrategy: store.CorruptionError.String(),
		},
		Logging: Logging{
			Level: "info",
		},
		Server: Server{
			Port: 8080,
			Bind: "127.0.0.1",
		},
	}
}

// LoadConfig loads configuration from the specified path. Fields missing from
// the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration for dataDir to configPath
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// Validate checks option values that the engine would reject later
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return store.ArgumentError("data_dir is required")
	}
	if c.Writer.NumShards <= 0 {
		return store.ArgumentError("writer.num_shards must be positive, got %d", c.Writer.NumShards)
	}
	if c.Writer.WorkerThreads < 0 || c.Reader.WorkerThreads < 0 {
		return store.ArgumentError("worker_threads must not be negative")
	}
	if c.Writer.MaxBytesPerWriter < 0 {
		return store.ArgumentError("writer.max_bytes_per_writer must not be negative")
	}
	if c.Writer.TaskQueueCapacity < 0 {
		return store.ArgumentError("writer.task_queue_capacity must not be negative")
	}
	if c.Writer.Compression != store.CompressionNone && c.Writer.Compression != store.CompressionZstd {
		return store.ArgumentError("writer.compression %s is not supported", c.Writer.Compression)
	}
	if c.Reader.NumShards < 0 {
		return store.ArgumentError("reader.num_shards must not be negative")
	}
	if c.Reader.QueueSizeMB < 0 {
		return store.ArgumentError("reader.queue_size_mb must not be negative")
	}
	if _, err := store.ParseCorruptionStrategy(c.Reader.CorruptionStrategy); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return store.NewError(store.KindArgument, "", "", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return store.ArgumentError("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// WriterConfig returns the multi-threaded writer configuration
func (c *Config) WriterConfig() parallel.WriterConfig {
	return parallel.WriterConfig{
		Dir:                c.DataDir,
		Prefix:             c.Prefix,
		NumShards:          c.Writer.NumShards,
		WorkerThreads:      c.Writer.WorkerThreads,
		MaxBytesPerWriter:  c.Writer.MaxBytesPerWriter,
		TaskQueueCapacity:  c.Writer.TaskQueueCapacity,
		EnableAutoSharding: c.Writer.EnableAutoSharding,
		Append:             c.Writer.Append,
		BufferSize:         c.Writer.BufferSize,
		Compression:        c.Writer.Compression,
	}
}

// ReaderConfig returns the multi-threaded reader configuration
func (c *Config) ReaderConfig() (parallel.ReaderConfig, error) {
	strategy, err := store.ParseCorruptionStrategy(c.Reader.CorruptionStrategy)
	if err != nil {
		return parallel.ReaderConfig{}, err
	}

	return parallel.ReaderConfig{
		NumShards:          c.Reader.NumShards,
		WorkerThreads:      c.Reader.WorkerThreads,
		QueueSizeBytes:     parallel.QueueSizeMB(c.Reader.QueueSizeMB),
		CorruptionStrategy: strategy,
		BufferSize:         c.Reader.BufferSize,
	}, nil
}

// CatalogDir returns the directory of the shard statistics cache
func (c *Config) CatalogDir() string {
	if c.Catalog.Dir != "" {
		return c.Catalog.Dir
	}
	return filepath.Join(c.DataDir, ".catalog")
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./shardlog.yaml"
	}

	return filepath.Join(homeDir, ".config", "shardlog", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
