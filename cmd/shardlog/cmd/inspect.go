/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/codec"
	"github.com/ssargent/shardlog/pkg/store"
)

const previewWidth = 32

var inspectLimit int

// frameReport describes one frame found by inspect
type frameReport struct {
	Offset int64
	Length uint32
	Zstd   bool
	Status string
	Data   []byte
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the frames of a shard file with offsets and checksum status",
	Long: `Walk a shard file frame by frame and print each frame's offset, length,
checksum status and a preview of its payload. The walk stops at a damaged
header because the length that follows it cannot be trusted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := inspectFile(args[0], inspectLimit)
		if err != nil {
			return err
		}
		printFrames(cmd.OutOrStdout(), args[0], reports)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 100, "Stop after this many frames (0 = all)")
}

// inspectFile walks the frames of path without stopping at bad payload checksums
func inspectFile(path string, limit int) ([]frameReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, store.IOError("open", path, err)
	}
	defer f.Close()

	c := codec.NewFrameCodec(0)
	br := bufio.NewReaderSize(f, store.DefaultBufferSize)
	header := make([]byte, codec.HeaderSize)

	var (
		reports []frameReport
		offset  int64
		payload []byte
	)
	for limit <= 0 || len(reports) < limit {
		n, err := io.ReadFull(br, header)
		if err == io.EOF {
			return reports, nil
		}
		if err != nil {
			reports = append(reports, frameReport{Offset: offset, Status: "truncated", Data: preview(header[:n])})
			return reports, nil
		}

		h, err := c.ParseHeader(header)
		if err != nil {
			reports = append(reports, frameReport{Offset: offset, Length: h.Length, Status: "bad header"})
			return reports, nil
		}

		if cap(payload) < int(h.Length) {
			payload = make([]byte, h.Length)
		}
		payload = payload[:h.Length]
		n, err = io.ReadFull(br, payload)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && err != io.EOF {
			return reports, store.IOError("read", path, err)
		}
		if err != nil {
			reports = append(reports, frameReport{Offset: offset, Length: h.Length, Status: "truncated", Data: preview(payload[:n])})
			return reports, nil
		}

		status := "ok"
		if h.Verify(payload) != nil {
			status = "bad checksum"
		}
		reports = append(reports, frameReport{Offset: offset, Length: h.Length, Zstd: h.Compressed(), Status: status, Data: preview(payload)})
		offset += int64(codec.EncodedSize(int(h.Length)))
	}
	return reports, nil
}

func preview(b []byte) []byte {
	if len(b) > previewWidth {
		b = b[:previewWidth]
	}
	return append([]byte(nil), b...)
}

func printFrames(out io.Writer, path string, reports []frameReport) {
	table := uitable.New()
	table.Separator = "  "
	table.MaxColWidth = 80
	table.RightAlign(0)
	table.RightAlign(1)
	table.AddRow(color.CyanString("OFFSET"), color.CyanString("LENGTH"), color.CyanString("ENCODING"), color.CyanString("STATUS"), color.CyanString("PREVIEW"))

	bad := 0
	for _, r := range reports {
		status := color.GreenString(r.Status)
		if r.Status != "ok" {
			status = color.RedString(r.Status)
			bad++
		}
		encoding := "raw"
		if r.Zstd {
			encoding = "zstd"
		}
		table.AddRow(r.Offset, r.Length, encoding, status, strconv.Quote(string(r.Data)))
	}

	fmt.Fprintf(out, "%v %s: %d frames, %d damaged\n", progressMessage, path, len(reports), bad)
	fmt.Fprintln(out, table)
}
