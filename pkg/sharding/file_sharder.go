package sharding

import (
	"path/filepath"
	"sync"

	"github.com/ssargent/shardlog/pkg/store"
)

// FileSharderConfig holds configuration for a FileSharder
type FileSharderConfig struct {
	Prefix    string // File name prefix (default "shard")
	NumShards int    // Number of initial slots
	Append    bool   // Keep existing files and allocate rollover names above them
}

// FileSharder allocates shard file names for a writer
type FileSharder struct {
	dir    string
	config FileSharderConfig
	mutex  sync.Mutex
	next   int // Next rollover index
}

// NewFileSharder creates a sharder for dir
func NewFileSharder(dir string, config FileSharderConfig) (*FileSharder, error) {
	if dir == "" {
		return nil, store.ArgumentError("shard directory is required")
	}
	if config.NumShards <= 0 {
		return nil, store.ArgumentError("number of shards must be positive, got %d", config.NumShards)
	}
	config.Prefix = prefixOrDefault(config.Prefix)

	next := config.NumShards
	if config.Append {
		highest, err := highestIndex(dir, config.Prefix)
		if err != nil {
			return nil, err
		}
		if highest+1 > next {
			next = highest + 1
		}
	}

	return &FileSharder{dir: dir, config: config, next: next}, nil
}

// InitialPath returns the file path of slot
func (s *FileSharder) InitialPath(slot int) string {
	return filepath.Join(s.dir, ShardName(s.config.Prefix, slot))
}

// NextPath allocates the next unused file path for a rollover
func (s *FileSharder) NextPath() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := filepath.Join(s.dir, ShardName(s.config.Prefix, s.next))
	s.next++
	return p
}

// Dir returns the dataset directory
func (s *FileSharder) Dir() string {
	return s.dir
}

// Prefix returns the file name prefix
func (s *FileSharder) Prefix() string {
	return s.config.Prefix
}
