/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

type catOptions struct {
	random   bool
	seed     uint64
	limit    int
	strategy string
	hex      bool
	workers  int
	shards   int
	queueMB  int
}

var catOpts catOptions

// catCmd represents the cat command
var catCmd = &cobra.Command{
	Use:   "cat [file|dir...]",
	Short: "Print records, one per line",
	Long: `Read records with the multi-threaded reader and print one per line.
Records from different shards are interleaved; records of one shard keep their
order.

With --random shards are visited in a fresh random order on every pass and the
reader never runs out, so combine it with --limit.

Example:
  shardlog cat --limit 10
  shardlog cat --random --limit 1000 --seed 42 ./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := appConfig.ReaderConfig()
		if err != nil {
			return err
		}
		if err := catOpts.apply(cmd, &rc); err != nil {
			return err
		}
		rc.Logger = getContainer().Logger()
		rc.Metrics = getContainer().Metrics()

		paths, err := resolvePaths(args, appConfig.DataDir, appConfig.Prefix)
		if err != nil {
			return err
		}

		_, err = catRecords(cmd.OutOrStdout(), paths, rc, catOpts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
	f := catCmd.Flags()
	f.BoolVar(&catOpts.random, "random", false, "Visit shards in random order, forever")
	f.Uint64Var(&catOpts.seed, "seed", 0, "Seed for --random (default from the clock)")
	f.IntVar(&catOpts.limit, "limit", 0, "Stop after this many records (0 = no limit)")
	f.StringVar(&catOpts.strategy, "strategy", "", "Corruption strategy: error or recover (default from config)")
	f.BoolVar(&catOpts.hex, "hex", false, "Print records hex encoded")
	f.IntVar(&catOpts.workers, "workers", 0, "Reader goroutines (default from config)")
	f.IntVar(&catOpts.shards, "shards", 0, "Shards open at once (default from config)")
	f.IntVar(&catOpts.queueMB, "queue-mb", 0, "Read-ahead queue size in MiB (default from config)")
}

// apply overrides rc with the flags the user set
func (o *catOptions) apply(cmd *cobra.Command, rc *parallel.ReaderConfig) error {
	flags := cmd.Flags()
	if o.strategy != "" {
		s, err := store.ParseCorruptionStrategy(o.strategy)
		if err != nil {
			return err
		}
		rc.CorruptionStrategy = s
	}
	if flags.Changed("workers") {
		rc.WorkerThreads = o.workers
	}
	if flags.Changed("shards") {
		rc.NumShards = o.shards
	}
	if flags.Changed("queue-mb") {
		rc.QueueSizeBytes = parallel.QueueSizeMB(o.queueMB)
	}
	if o.random && !flags.Changed("seed") {
		o.seed = uint64(time.Now().UnixNano())
	}
	return nil
}

// catRecords prints records from paths to out and returns how many it printed
func catRecords(out io.Writer, paths []string, rc parallel.ReaderConfig, opts catOptions) (n int, err error) {
	set, err := sharding.FromPaths(paths)
	if err != nil {
		return 0, err
	}

	locator := set.Sequential()
	if opts.random {
		locator = set.Randomized(opts.seed)
	}

	r, err := parallel.NewMultiThreadedReader(locator, rc)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(out)
	defer func() {
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
	}()

	for opts.limit <= 0 || n < opts.limit {
		rec, err := r.NextRecord()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		if opts.hex {
			_, err = bw.WriteString(hex.EncodeToString(rec))
		} else {
			_, err = bw.Write(rec)
		}
		if err == nil {
			err = bw.WriteByte('\n')
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
