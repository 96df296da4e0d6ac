/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/catalog"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List shard files with their sizes and cached record counts",
	Long: `List the shard files of a dataset directory (the data directory by
default). Record counts are shown for shards counted with "count --catalog".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := appConfig.DataDir
		if len(args) == 1 {
			dir = args[0]
		}

		var cat *catalog.Catalog
		if _, err := os.Stat(appConfig.CatalogDir()); err == nil {
			if cat, err = getContainer().OpenCatalog(appConfig.CatalogDir()); err != nil {
				return err
			}
			defer cat.Close()
		}

		return listShards(cmd.OutOrStdout(), dir, appConfig.Prefix, cat)
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

// listShards prints a table of the shard files in dir
func listShards(out io.Writer, dir, prefix string, cat *catalog.Catalog) error {
	set, err := sharding.Discover(dir, prefix)
	if errors.Is(err, store.ErrInvalidArgument) {
		fmt.Fprintf(out, "%v No shard files in %s\n", progressMessage, dir)
		return nil
	}
	if err != nil {
		return err
	}

	table := uitable.New()
	table.Separator = "  "
	table.MaxColWidth = 80
	table.RightAlign(1)
	table.RightAlign(2)
	table.AddRow(color.CyanString("NAME"), color.CyanString("SIZE"), color.CyanString("RECORDS"))

	var totalSize int64
	for _, path := range set.Paths() {
		info, err := os.Stat(path)
		if err != nil {
			return store.IOError("stat", path, err)
		}
		totalSize += info.Size()

		records := color.HiBlackString("-")
		if cat != nil {
			stat, err := cat.Get(path)
			switch {
			case err == nil && stat.Size == info.Size() && stat.ModTime.Equal(info.ModTime()):
				records = fmt.Sprintf("%d", stat.Records)
			case err == nil:
				records = color.YellowString("%d (stale)", stat.Records)
			case !errors.Is(err, catalog.ErrNotFound):
				return err
			}
		}

		table.AddRow(color.GreenString(filepath.Base(path)), info.Size(), records)
	}

	fmt.Fprintf(out, "%v %d shard files in %s (%d bytes)\n", progressMessage, set.Len(), dir, totalSize)
	fmt.Fprintln(out, table)
	return nil
}
