/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/catalog"
	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

var (
	countUseCatalog bool
	countStrategy   string
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count [file|dir...]",
	Short: "Count the records in a set of shards",
	Long: `Count records by scanning every shard in parallel. With --catalog, shards
whose size and modification time are unchanged since the last count are
answered from the catalog instead of being scanned again.

Example:
  shardlog count
  shardlog count --strategy recover ./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := appConfig.ReaderConfig()
		if err != nil {
			return err
		}
		if countStrategy != "" {
			if rc.CorruptionStrategy, err = store.ParseCorruptionStrategy(countStrategy); err != nil {
				return err
			}
		}
		rc.Logger = getContainer().Logger()
		rc.Metrics = getContainer().Metrics()

		paths, err := resolvePaths(args, appConfig.DataDir, appConfig.Prefix)
		if err != nil {
			return err
		}

		var cat *catalog.Catalog
		if countUseCatalog || appConfig.Catalog.Enabled {
			if cat, err = getContainer().OpenCatalog(appConfig.CatalogDir()); err != nil {
				return err
			}
			defer cat.Close()
		}

		_, err = countShards(cmd.OutOrStdout(), paths, rc, cat)
		return err
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().BoolVar(&countUseCatalog, "catalog", false, "Reuse and update cached counts")
	countCmd.Flags().StringVar(&countStrategy, "strategy", "", "Corruption strategy: error or recover (default from config)")
}

// countShards counts the records in paths, through the catalog when cat is
// not nil, and prints a summary to out
func countShards(out io.Writer, paths []string, rc parallel.ReaderConfig, cat *catalog.Catalog) (store.ScanResult, error) {
	var (
		total  store.ScanResult
		cached int
	)

	if cat != nil {
		for _, path := range paths {
			stat, hit, err := cat.Count(path, rc.CorruptionStrategy)
			if err != nil {
				return total, err
			}
			if hit {
				cached++
			}
			total.Records += stat.Records
			total.Bytes += stat.Bytes
			total.Skipped += stat.Skipped
		}
	} else {
		set, err := sharding.FromPaths(paths)
		if err != nil {
			return total, err
		}
		if total, err = parallel.ScanShards(set.Sequential(), rc); err != nil {
			return total, err
		}
	}

	table := uitable.New()
	table.Separator = " "
	table.RightAlign(1)
	table.AddRow("shards:", len(paths))
	table.AddRow("records:", total.Records)
	table.AddRow("bytes:", total.Bytes)
	if total.Skipped > 0 {
		table.AddRow("skipped:", total.Skipped)
	}
	if cat != nil {
		table.AddRow("cached:", cached)
	}
	fmt.Fprintf(out, "%v Record count (%s):\n", progressMessage, rc.CorruptionStrategy)
	fmt.Fprintln(out, table)
	return total, nil
}
