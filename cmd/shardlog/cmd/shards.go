/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/ssargent/shardlog/pkg/sharding"
)

// resolvePaths turns command arguments into shard file paths. Directories are
// expanded to their shard files; no arguments means every shard in the data
// directory.
func resolvePaths(args []string, dataDir, prefix string) ([]string, error) {
	if len(args) == 0 {
		set, err := sharding.Discover(dataDir, prefix)
		if err != nil {
			return nil, err
		}
		return set.Paths(), nil
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		expanded, err := sharding.ExpandDirs([]string{arg}, prefix)
		if err != nil {
			return nil, err
		}
		paths = append(paths, expanded...)
	}
	return paths, nil
}
