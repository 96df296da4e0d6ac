/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/codec"
	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/store"
)

type writeOptions struct {
	shards         int
	workers        int
	maxBytes       int64
	queueCapacity  int
	noAutoSharding bool
	truncate       bool
	keyed          bool
	compression    string
}

var writeOpts writeOptions

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write [file...]",
	Short: "Write lines as records into the shard set",
	Long: `Write every input line as one record. Lines are read from the given
files, or from stdin when none are given.

With --keyed each line is split at the first tab; the part before it picks the
shard and the part after it is stored.

Example:
  seq 1 1000000 | shardlog write --shards 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.WriterConfig()
		if err := writeOpts.apply(cmd, &cfg); err != nil {
			return err
		}
		cfg.Logger = getContainer().Logger()
		cfg.Metrics = getContainer().Metrics()

		var inputs []io.Reader
		if len(args) == 0 {
			inputs = append(inputs, cmd.InOrStdin())
		}
		for _, name := range args {
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			inputs = append(inputs, f)
		}

		return writeLines(cmd.OutOrStdout(), cfg, writeOpts.keyed, inputs...)
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
	f := writeCmd.Flags()
	f.IntVar(&writeOpts.shards, "shards", 0, "Number of shard slots (default from config)")
	f.IntVar(&writeOpts.workers, "workers", 0, "Writer goroutines (default one per CPU)")
	f.Int64Var(&writeOpts.maxBytes, "max-bytes", 0, "Roll a shard over past this many bytes (default from config)")
	f.IntVar(&writeOpts.queueCapacity, "queue-capacity", 0, "Records queued before writes block (default from config)")
	f.BoolVar(&writeOpts.noAutoSharding, "no-auto-sharding", false, "Place records by content hash instead of round-robin")
	f.BoolVar(&writeOpts.truncate, "truncate", false, "Truncate existing shard files instead of appending")
	f.BoolVar(&writeOpts.keyed, "keyed", false, "Shard by the text before the first tab on each line")
	f.StringVar(&writeOpts.compression, "compression", "", "Record compression, none or zstd (default from config)")
}

// apply overrides cfg with the flags the user set
func (o writeOptions) apply(cmd *cobra.Command, cfg *parallel.WriterConfig) error {
	flags := cmd.Flags()
	if flags.Changed("shards") {
		cfg.NumShards = o.shards
	}
	if flags.Changed("workers") {
		cfg.WorkerThreads = o.workers
	}
	if flags.Changed("max-bytes") {
		cfg.MaxBytesPerWriter = o.maxBytes
	}
	if flags.Changed("queue-capacity") {
		cfg.TaskQueueCapacity = o.queueCapacity
	}
	if o.noAutoSharding {
		cfg.EnableAutoSharding = false
	}
	if o.truncate {
		cfg.Append = false
	}
	if flags.Changed("compression") {
		c, err := store.ParseCompression(o.compression)
		if err != nil {
			return err
		}
		cfg.Compression = c
	}
	return nil
}

// writeLines writes each line of inputs as a record and reports the totals to out
func writeLines(out io.Writer, cfg parallel.WriterConfig, keyed bool, inputs ...io.Reader) (err error) {
	w, err := parallel.NewMultiThreadedWriter(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	written := 0
	for _, in := range inputs {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), codec.DefaultMaxRecordSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if keyed {
				key, value, ok := bytes.Cut(line, []byte{'\t'})
				if !ok {
					return fmt.Errorf("record %d has no tab separated key", written+1)
				}
				err = w.WriteKeyedRecord(key, value)
			} else {
				err = w.WriteRecord(line)
			}
			if err != nil {
				return err
			}
			written++
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%v Wrote %d records to %d shard files in %s (writer %s)\n",
		progressMessage, written, len(w.ShardPaths()), cfg.Dir, w.ID())
	return nil
}
