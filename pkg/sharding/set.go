package sharding

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ssargent/shardlog/pkg/store"
)

// DefaultPrefix is the file name prefix used when none is configured
const DefaultPrefix = "shard"

// ShardName returns the file name of shard index under prefix
func ShardName(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index)
}

// ParseShardIndex extracts the index from a {prefix}_{index} file name
func ParseShardIndex(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Set is an immutable, ordered list of shard file paths
type Set struct {
	paths []string
}

// Resolve returns the canonical paths of numShards shards under dir
func Resolve(dir, prefix string, numShards int) (*Set, error) {
	if numShards <= 0 {
		return nil, store.ArgumentError("number of shards must be positive, got %d", numShards)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	paths := make([]string, numShards)
	for i := range paths {
		paths[i] = filepath.Join(dir, ShardName(prefix, i))
	}
	return &Set{paths: paths}, nil
}

// FromPaths builds a set from explicit file paths, keeping their order
func FromPaths(paths []string) (*Set, error) {
	if len(paths) == 0 {
		return nil, store.ArgumentError("at least one shard path is required")
	}
	for _, p := range paths {
		if p == "" {
			return nil, store.ArgumentError("shard path must not be empty")
		}
	}
	return &Set{paths: append([]string(nil), paths...)}, nil
}

// Discover lists the existing {prefix}_{n} files in dir ordered by index
func Discover(dir, prefix string) (*Set, error) {
	paths, err := discover(dir, prefix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, store.ArgumentError("no %s_* shards found in %s", prefixOrDefault(prefix), dir)
	}
	return &Set{paths: paths}, nil
}

// ExpandDirs flattens dataset directories into their shard file paths
func ExpandDirs(dirs []string, prefix string) ([]string, error) {
	if len(dirs) == 0 {
		return nil, store.ArgumentError("at least one directory is required")
	}

	var out []string
	for _, dir := range dirs {
		paths, err := discover(dir, prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, paths...)
	}
	return out, nil
}

func discover(dir, prefix string) ([]string, error) {
	prefix = prefixOrDefault(prefix)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, store.IOError("discover", dir, err)
	}

	type indexed struct {
		index int
		path  string
	}
	var found []indexed
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		idx, ok := ParseShardIndex(prefix, e.Name())
		if !ok {
			continue
		}
		found = append(found, indexed{index: idx, path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// highestIndex returns the largest existing shard index in dir, or -1
func highestIndex(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return -1, store.IOError("discover", dir, err)
	}

	highest := -1
	for _, e := range entries {
		if idx, ok := ParseShardIndex(prefix, e.Name()); ok && idx > highest {
			highest = idx
		}
	}
	return highest, nil
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}

// Paths returns a copy of the shard paths
func (s *Set) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Len returns the number of shards
func (s *Set) Len() int {
	return len(s.paths)
}

// Sequential returns a finite locator yielding every path once in order
func (s *Set) Sequential() Locator {
	return &sequentialLocator{paths: s.paths}
}

// Randomized returns an infinite locator reshuffling the paths each pass
func (s *Set) Randomized(seed uint64) Locator {
	return newRandomLocator(s.paths, seed)
}
