/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/sharding"
)

// expandCmd represents the expand command
var expandCmd = &cobra.Command{
	Use:   "expand <dir>...",
	Short: "Print the shard files of dataset directories",
	Long: `Print the shard files found in each directory, ordered by shard index.
The output can be passed to other tools or back to cat and count.

Example:
  shardlog expand ./run1 ./run2 | xargs shardlog count`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := sharding.ExpandDirs(args, appConfig.Prefix)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
}
