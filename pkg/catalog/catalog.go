// Package catalog caches per-file scan results in a pebble database so
// repeated counts over unchanged shard files do not re-read them.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/store"
)

var keyPrefix = []byte("shard/")

// ErrNotFound is returned by Get for files without a cached entry
var ErrNotFound = errors.New("catalog entry not found")

// ShardStat is the cached scan result of one shard file
type ShardStat struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Records   int       `json:"records"`
	Bytes     int64     `json:"bytes"`
	Skipped   int       `json:"skipped"`
	Strategy  string    `json:"strategy"`
	CheckedAt time.Time `json:"checked_at"`
}

// Catalog is a pebble-backed store of ShardStat entries keyed by absolute path
type Catalog struct {
	db     *pebble.DB
	logger logging.Logger
}

// Open opens or creates the catalog database in dir
func Open(dir string, logger logging.Logger) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, store.IOError("open catalog", dir, err)
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, store.IOError("open catalog", dir, err)
	}
	return &Catalog{db: db, logger: logging.OrNop(logger)}, nil
}

func key(path string) ([]byte, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", store.NewError(store.KindArgument, "catalog", path, err)
	}
	return append(append([]byte{}, keyPrefix...), abs...), abs, nil
}

// Put stores stat under its absolute path
func (c *Catalog) Put(stat ShardStat) error {
	k, abs, err := key(stat.Path)
	if err != nil {
		return err
	}
	stat.Path = abs

	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal shard stat: %w", err)
	}
	if err := c.db.Set(k, data, pebble.NoSync); err != nil {
		return store.IOError("catalog put", abs, err)
	}
	return nil
}

// Get returns the cached entry for path
func (c *Catalog) Get(path string) (*ShardStat, error) {
	k, abs, err := key(path)
	if err != nil {
		return nil, err
	}

	data, closer, err := c.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, store.IOError("catalog get", abs, err)
	}
	defer closer.Close()

	var stat ShardStat
	if err := json.Unmarshal(data, &stat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog entry for %s: %w", abs, err)
	}
	return &stat, nil
}

// List returns every cached entry ordered by path
func (c *Catalog) List() ([]ShardStat, error) {
	upper := append([]byte{}, keyPrefix...)
	upper[len(upper)-1]++

	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: upper})
	if err != nil {
		return nil, store.IOError("catalog list", "", err)
	}
	defer iter.Close()

	var stats []ShardStat
	for iter.First(); iter.Valid(); iter.Next() {
		var stat ShardStat
		if err := json.Unmarshal(iter.Value(), &stat); err != nil {
			return nil, fmt.Errorf("failed to parse catalog entry %q: %w", iter.Key(), err)
		}
		stats = append(stats, stat)
	}
	if err := iter.Error(); err != nil {
		return nil, store.IOError("catalog list", "", err)
	}
	return stats, nil
}

// Delete removes the cached entry for path
func (c *Catalog) Delete(path string) error {
	k, abs, err := key(path)
	if err != nil {
		return err
	}
	if err := c.db.Delete(k, pebble.NoSync); err != nil {
		return store.IOError("catalog delete", abs, err)
	}
	return nil
}

// Count returns the scan result of path, reusing the cached entry when the
// file size, modification time and strategy are unchanged. The boolean
// reports whether the result came from the cache.
func (c *Catalog) Count(path string, strategy store.CorruptionStrategy) (ShardStat, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ShardStat{}, false, store.IOError("stat", path, err)
	}

	cached, err := c.Get(path)
	switch {
	case err == nil:
		if cached.Size == info.Size() && cached.ModTime.Equal(info.ModTime()) && cached.Strategy == strategy.String() {
			return *cached, true, nil
		}
	case !errors.Is(err, ErrNotFound):
		c.logger.Warnf("ignoring unreadable catalog entry for %s: %v", path, err)
	}

	res, err := store.ScanFile(path, strategy)
	if err != nil {
		return ShardStat{}, false, err
	}

	stat := ShardStat{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Records:   res.Records,
		Bytes:     res.Bytes,
		Skipped:   res.Skipped,
		Strategy:  strategy.String(),
		CheckedAt: time.Now().UTC(),
	}
	if err := c.Put(stat); err != nil {
		return ShardStat{}, false, err
	}
	stat.Path, _ = filepath.Abs(path)
	c.logger.Debugf("catalog: scanned %s: %d records", path, res.Records)
	return stat, false, nil
}

// Close closes the underlying database
func (c *Catalog) Close() error {
	return c.db.Close()
}
