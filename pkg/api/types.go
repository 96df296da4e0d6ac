package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/store"
)

// DefaultPeekLimit is how many records the records endpoint returns when no
// limit is given
const DefaultPeekLimit = 10

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port     int
	Bind     string
	APIKey   string // Require X-API-Key when set
	DataDir  string
	Prefix   string
	Reader   parallel.ReaderConfig
	MaxPeek  int                 // Upper bound on ?limit= (0 = 1000)
	Gatherer prometheus.Gatherer // Served on /metrics (nil = default registry)
	Logger   logging.Logger
}

// ShardInfo describes one shard file in a listing
type ShardInfo struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Records *int   `json:"records,omitempty"` // Only when cached in the catalog
}

// CountResponse is the result of counting every shard
type CountResponse struct {
	Shards   int    `json:"shards"`
	Records  int    `json:"records"`
	Bytes    int64  `json:"bytes"`
	Skipped  int    `json:"skipped"`
	Strategy string `json:"strategy"`
	Cached   int    `json:"cached"` // Shards answered from the catalog
}

// RecordsResponse holds the leading records of one shard. Records are
// base64 encoded by encoding/json.
type RecordsResponse struct {
	Shard   string   `json:"shard"`
	Records [][]byte `json:"records"`
	Offset  int64    `json:"offset"` // Byte offset after the last returned record
	EOF     bool     `json:"eof"`
	Skipped int      `json:"skipped"`
}

func (c ServerConfig) strategy() store.CorruptionStrategy {
	return c.Reader.CorruptionStrategy
}
