package parallel

import (
	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/metrics"
	"github.com/ssargent/shardlog/pkg/store"
)

const (
	DefaultReaderWorkers  = 1
	DefaultQueueSizeBytes = 8 << 20
)

// readBatch is how many records a worker takes from one shard before moving
// to the next of its open shards
const readBatch = 64

// ReaderConfig holds configuration for the multi-threaded reader
type ReaderConfig struct {
	NumShards          int   // Shards open at once across all workers
	WorkerThreads      int   // Worker goroutines (capped at NumShards)
	QueueSizeBytes     int64 // Payload bytes buffered ahead of the consumer
	CorruptionStrategy store.CorruptionStrategy
	BufferSize         int // Per-file read buffer
	Logger             logging.Logger
	Metrics            *metrics.Metrics
}

// DefaultReaderConfig returns the default reader configuration
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		NumShards:          DefaultNumShards,
		WorkerThreads:      DefaultReaderWorkers,
		QueueSizeBytes:     DefaultQueueSizeBytes,
		CorruptionStrategy: store.CorruptionError,
	}
}

// QueueSizeMB converts a queue size in mebibytes to bytes
func QueueSizeMB(mb int) int64 {
	return int64(mb) << 20
}

func (c ReaderConfig) normalize() (ReaderConfig, error) {
	if c.NumShards < 0 {
		return c, store.ArgumentError("number of shards must not be negative, got %d", c.NumShards)
	}
	if c.WorkerThreads < 0 {
		return c, store.ArgumentError("worker threads must not be negative, got %d", c.WorkerThreads)
	}
	if c.QueueSizeBytes < 0 {
		return c, store.ArgumentError("queue size must not be negative, got %d", c.QueueSizeBytes)
	}
	if c.CorruptionStrategy != store.CorruptionError && c.CorruptionStrategy != store.CorruptionRecover {
		return c, store.ArgumentError("invalid corruption strategy %d", int(c.CorruptionStrategy))
	}

	if c.NumShards == 0 {
		c.NumShards = DefaultNumShards
	}
	if c.WorkerThreads == 0 {
		c.WorkerThreads = DefaultReaderWorkers
	}
	if c.QueueSizeBytes == 0 {
		c.QueueSizeBytes = DefaultQueueSizeBytes
	}
	c.WorkerThreads = min(c.WorkerThreads, c.NumShards)
	c.Logger = logging.OrNop(c.Logger)
	return c, nil
}
