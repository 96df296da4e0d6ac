package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ssargent/shardlog/pkg/logging"
)

// DefaultBufferSize is the buffered I/O size used when none is configured
const DefaultBufferSize = 64 * 1024

// WriterConfig holds configuration for the record writer
type WriterConfig struct {
	FilePath      string         // Path to the shard file
	Append        bool           // Continue an existing file instead of truncating it
	BufferSize    int            // Write buffer size
	SyncInterval  time.Duration  // Sync after this much idle time (0 = only on Flush/Close)
	MaxRecordSize int            // Largest accepted payload (0 = codec default)
	Compression   Compression    // Payload encoding for new records
	Logger        logging.Logger // Optional
}

// ReaderConfig holds configuration for the record reader
type ReaderConfig struct {
	FilePath      string             // Path to the shard file
	Strategy      CorruptionStrategy // What to do with a corrupt frame
	BufferSize    int                // Read buffer size
	MaxRecordSize int                // Largest plausible payload (0 = codec default)
	Logger        logging.Logger     // Optional
}

// CorruptionStrategy selects how a reader reacts to a corrupt frame
type CorruptionStrategy int

const (
	// CorruptionError stops reading and reports the corruption
	CorruptionError CorruptionStrategy = iota
	// CorruptionRecover skips past the damaged frame and keeps reading
	CorruptionRecover
)

func (s CorruptionStrategy) String() string {
	switch s {
	case CorruptionError:
		return "error"
	case CorruptionRecover:
		return "recover"
	default:
		return fmt.Sprintf("CorruptionStrategy(%d)", int(s))
	}
}

// ParseCorruptionStrategy parses "error" or "recover"
func ParseCorruptionStrategy(s string) (CorruptionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return CorruptionError, nil
	case "recover":
		return CorruptionRecover, nil
	default:
		return CorruptionError, ArgumentError("unknown corruption strategy %q (want error or recover)", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s CorruptionStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *CorruptionStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseCorruptionStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Compression selects how a writer stores record payloads. Readers detect the
// encoding of each record, so one file may mix both.
type Compression int

const (
	// CompressionNone stores payloads as given
	CompressionNone Compression = iota
	// CompressionZstd stores each payload as a zstd frame when that is smaller
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ParseCompression parses "none" or "zstd"
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, ArgumentError("unsupported compression %q (want none or zstd)", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ScanResult summarizes a full pass over a shard file
type ScanResult struct {
	Records int   `json:"records"`
	Bytes   int64 `json:"bytes"`   // Payload bytes of valid records
	Skipped int   `json:"skipped"` // Corrupt frames skipped under the recover strategy
}
