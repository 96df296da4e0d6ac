package parallel

import (
	"runtime"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/metrics"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

const (
	DefaultNumShards         = 2
	DefaultMaxBytesPerWriter = 10 << 30
	DefaultTaskQueueCapacity = 2000
)

// WriterConfig holds configuration for the multi-threaded writer
type WriterConfig struct {
	Dir                string            // Dataset directory
	Prefix             string            // Shard file prefix
	NumShards          int               // Number of concurrently open shard slots
	WorkerThreads      int               // Worker goroutines (0 = one per CPU, capped at NumShards)
	MaxBytesPerWriter  int64             // Roll a slot over to a new file past this size (0 = never)
	TaskQueueCapacity  int               // Records that may wait in the queues before WriteRecord blocks
	EnableAutoSharding bool              // Round-robin slots; otherwise hash record content
	Append             bool              // Keep existing shard files
	BufferSize         int               // Per-file write buffer
	Compression        store.Compression // Payload encoding for new records
	Logger             logging.Logger
	Metrics            *metrics.Metrics
}

// DefaultWriterConfig returns the default configuration for dir
func DefaultWriterConfig(dir string) WriterConfig {
	return WriterConfig{
		Dir:                dir,
		Prefix:             sharding.DefaultPrefix,
		NumShards:          DefaultNumShards,
		MaxBytesPerWriter:  DefaultMaxBytesPerWriter,
		TaskQueueCapacity:  DefaultTaskQueueCapacity,
		EnableAutoSharding: true,
		Append:             true,
	}
}

// normalize validates the config and fills in derived defaults
func (c WriterConfig) normalize() (WriterConfig, error) {
	if c.Dir == "" {
		return c, store.ArgumentError("writer directory is required")
	}
	if c.NumShards <= 0 {
		return c, store.ArgumentError("number of shards must be positive, got %d", c.NumShards)
	}
	if c.WorkerThreads < 0 {
		return c, store.ArgumentError("worker threads must not be negative, got %d", c.WorkerThreads)
	}
	if c.MaxBytesPerWriter < 0 {
		return c, store.ArgumentError("max bytes per writer must not be negative, got %d", c.MaxBytesPerWriter)
	}
	if c.TaskQueueCapacity < 0 {
		return c, store.ArgumentError("task queue capacity must not be negative, got %d", c.TaskQueueCapacity)
	}
	if c.BufferSize < 0 {
		return c, store.ArgumentError("buffer size must not be negative, got %d", c.BufferSize)
	}
	if c.Compression != store.CompressionNone && c.Compression != store.CompressionZstd {
		return c, store.ArgumentError("invalid compression %d", int(c.Compression))
	}

	if c.Prefix == "" {
		c.Prefix = sharding.DefaultPrefix
	}
	if c.TaskQueueCapacity == 0 {
		c.TaskQueueCapacity = DefaultTaskQueueCapacity
	}
	if c.WorkerThreads == 0 {
		c.WorkerThreads = runtime.NumCPU()
	}
	c.WorkerThreads = min(c.WorkerThreads, c.NumShards, c.TaskQueueCapacity)
	c.Logger = logging.OrNop(c.Logger)
	return c, nil
}
