package parallel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

func newTestWriter(t *testing.T, dir string, mutate func(*WriterConfig)) *MultiThreadedWriter {
	t.Helper()

	config := DefaultWriterConfig(dir)
	if mutate != nil {
		mutate(&config)
	}
	w, err := NewMultiThreadedWriter(config)
	require.NoError(t, err)
	return w
}

func readShard(t *testing.T, path string) []string {
	t.Helper()

	r, err := store.OpenRecordReader(path, store.CorruptionError)
	require.NoError(t, err)
	defer r.Close()

	var out []string
	for {
		rec, err := r.NextRecord()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return out
		}
		out = append(out, string(rec))
	}
}

func TestMultiThreadedWriter_Conservation(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	const total = 10000
	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 4
		c.WorkerThreads = 4
	})
	assert.Equal(t, StateRunning, w.State())
	assert.NotEmpty(t, w.ID())

	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteRecord([]byte(fmt.Sprintf("record-%05d", i))))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, StateClosed, w.State())

	set, err := sharding.Discover(tmpDir, "shard")
	require.NoError(t, err)
	require.Equal(t, 4, set.Len())

	seen := make(map[string]bool, total)
	for slot, path := range set.Paths() {
		records := readShard(t, path)
		assert.Len(t, records, total/4, "round robin balances slots")

		// Records within a shard keep submission order
		last := -1
		for _, rec := range records {
			n, err := strconv.Atoi(strings.TrimPrefix(rec, "record-"))
			require.NoError(t, err)
			assert.Equal(t, slot, n%4)
			assert.Greater(t, n, last)
			last = n
			seen[rec] = true
		}
	}
	assert.Len(t, seen, total)
}

func TestMultiThreadedWriter_ConcurrentProducers(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_concurrent_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 3
		c.WorkerThreads = 2
		c.TaskQueueCapacity = 8
	})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				assert.NoError(t, w.WriteRecord([]byte(fmt.Sprintf("p%d-%d", p, i))))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	count, err := CountRecordsWithShards(tmpDir, "shard", DefaultReaderConfig())
	require.NoError(t, err)
	assert.Equal(t, 2000, count)
}

func TestMultiThreadedWriter_Backpressure(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_backpressure_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 2
		c.WorkerThreads = 2
		c.TaskQueueCapacity = 1
	})
	defer w.Close()

	// A single slot of capacity also caps the workers at one
	assert.Equal(t, 1, w.config.WorkerThreads)

	payload := make([]byte, 512)
	for i := 0; i < 1000; i++ {
		require.NoError(t, w.WriteRecord(payload))
		assert.LessOrEqual(t, w.PendingTasks(), 2)
	}

	require.NoError(t, w.Flush())
	assert.Equal(t, 0, w.PendingTasks())
	assert.Equal(t, 2, w.AvailableWriters())

	count, err := CountRecordsWithShards(tmpDir, "shard", DefaultReaderConfig())
	require.NoError(t, err)
	assert.Equal(t, 1000, count, "flush makes queued records durable")
}

func TestMultiThreadedWriter_Rollover(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_rollover_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	frame := store.EncodedSize(10)
	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 1
		c.MaxBytesPerWriter = frame * 5
	})

	for i := 0; i < 12; i++ {
		require.NoError(t, w.WriteRecord([]byte(fmt.Sprintf("record-%03d", i))))
	}
	require.NoError(t, w.Close())

	paths := w.ShardPaths()
	require.Equal(t, []string{
		filepath.Join(tmpDir, "shard_0"),
		filepath.Join(tmpDir, "shard_1"),
		filepath.Join(tmpDir, "shard_2"),
	}, paths)

	var all []string
	for _, p := range paths {
		stat, err := os.Stat(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, stat.Size(), frame*5)
		all = append(all, readShard(t, p)...)
	}
	require.Len(t, all, 12)
	assert.Equal(t, "record-000", all[0])
	assert.Equal(t, "record-011", all[11])
}

func TestMultiThreadedWriter_OversizedRecordStillWritten(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_oversized_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 1
		c.MaxBytesPerWriter = 16
	})

	require.NoError(t, w.WriteRecord(make([]byte, 64)))
	require.NoError(t, w.WriteRecord(make([]byte, 64)))
	require.NoError(t, w.Close())

	assert.Len(t, w.ShardPaths(), 2, "frames are never split across files")
}

func TestMultiThreadedWriter_AppendResumesRollover(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_append_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	limit := store.EncodedSize(4) * 2
	for run := 0; run < 2; run++ {
		w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
			c.NumShards = 1
			c.MaxBytesPerWriter = limit
		})
		for i := 0; i < 3; i++ {
			require.NoError(t, w.WriteRecord([]byte("abcd")))
		}
		require.NoError(t, w.Close())
	}

	count, err := CountRecordsWithShards(tmpDir, "shard", DefaultReaderConfig())
	require.NoError(t, err)
	assert.Equal(t, 6, count, "append keeps earlier files")
}

func TestMultiThreadedWriter_Truncate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_truncate_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	for run := 0; run < 2; run++ {
		w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
			c.Append = false
		})
		for i := 0; i < 10; i++ {
			require.NoError(t, w.WriteRecord([]byte("x")))
		}
		require.NoError(t, w.Close())
	}

	count, err := CountRecordsWithShards(tmpDir, "shard", DefaultReaderConfig())
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestMultiThreadedWriter_Compression(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_zstd_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	const total = 200
	body := strings.Repeat("payload ", 64)
	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 2
		c.WorkerThreads = 2
		c.MaxBytesPerWriter = store.EncodedSize(len(body)) * 20
		c.Compression = store.CompressionZstd
	})

	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteRecord([]byte(fmt.Sprintf("%03d %s", i, body))))
	}
	require.NoError(t, w.Close())

	var plainSize, diskSize int64
	seen := make(map[string]bool, total)
	for _, p := range w.ShardPaths() {
		stat, err := os.Stat(p)
		require.NoError(t, err)
		diskSize += stat.Size()
		for _, rec := range readShard(t, p) {
			plainSize += store.EncodedSize(len(rec))
			seen[rec] = true
		}
	}
	assert.Len(t, seen, total)
	assert.Less(t, diskSize, plainSize/2)

	count, err := CountRecordsWithShards(tmpDir, "shard", DefaultReaderConfig())
	require.NoError(t, err)
	assert.Equal(t, total, count)
}

func TestMultiThreadedWriter_HashSharding(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_hash_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	w := newTestWriter(t, tmpDir, func(c *WriterConfig) {
		c.NumShards = 4
		c.EnableAutoSharding = false
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, w.WriteRecord([]byte("same content")))
		require.NoError(t, w.WriteKeyedRecord([]byte("tenant-a"), []byte(fmt.Sprintf("a-%d", i))))
	}
	require.NoError(t, w.WriteRecordToShard(3, []byte("pinned")))
	require.NoError(t, w.Close())

	sameSlot := -1
	keyedSlot := -1
	for slot, p := range w.ShardPaths() {
		var keyed []string
		for _, rec := range readShard(t, p) {
			switch {
			case rec == "same content":
				if sameSlot == -1 {
					sameSlot = slot
				}
				assert.Equal(t, sameSlot, slot, "identical content maps to one shard")
			case strings.HasPrefix(rec, "a-"):
				if keyedSlot == -1 {
					keyedSlot = slot
				}
				assert.Equal(t, keyedSlot, slot, "one key maps to one shard")
				keyed = append(keyed, rec)
			case rec == "pinned":
				assert.Equal(t, 3, slot)
			}
		}
		if len(keyed) > 0 {
			assert.Len(t, keyed, 20)
			assert.Equal(t, "a-0", keyed[0])
			assert.Equal(t, "a-19", keyed[19])
		}
	}
}

func TestMultiThreadedWriter_Close(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_close_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	w := newTestWriter(t, tmpDir, nil)
	require.NoError(t, w.WriteRecord([]byte("before close")))

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close(), "second close is a no-op")

	err = w.WriteRecord([]byte("after close"))
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, err, store.ErrIO)
	assert.ErrorIs(t, w.Flush(), store.ErrClosed)
	assert.Equal(t, StateClosed, w.State())
}

func TestMultiThreadedWriter_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*WriterConfig)
	}{
		{name: "zero shards", mutate: func(c *WriterConfig) { c.NumShards = 0 }},
		{name: "no directory", mutate: func(c *WriterConfig) { c.Dir = "" }},
		{name: "negative queue", mutate: func(c *WriterConfig) { c.TaskQueueCapacity = -1 }},
		{name: "negative max bytes", mutate: func(c *WriterConfig) { c.MaxBytesPerWriter = -1 }},
		{name: "negative workers", mutate: func(c *WriterConfig) { c.WorkerThreads = -2 }},
		{name: "unknown compression", mutate: func(c *WriterConfig) { c.Compression = store.Compression(3) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultWriterConfig(t.TempDir())
			tc.mutate(&config)

			w, err := NewMultiThreadedWriter(config)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}

	w := newTestWriter(t, t.TempDir(), nil)
	defer w.Close()
	assert.ErrorIs(t, w.WriteRecordToShard(5, []byte("x")), store.ErrInvalidArgument)
}

func TestMultiThreadedWriter_WorkerFailure(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_failure_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dir := filepath.Join(tmpDir, "data")
	w := newTestWriter(t, dir, func(c *WriterConfig) {
		c.NumShards = 1
		c.MaxBytesPerWriter = store.EncodedSize(1)
	})

	require.NoError(t, w.WriteRecord([]byte("a")))
	require.NoError(t, w.Flush())

	// Replace the directory with a file so the rollover cannot create shard_1
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("blocker"), 0600))

	require.NoError(t, w.WriteRecord([]byte("b")))

	err = w.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrIO)

	assert.ErrorIs(t, w.WriteRecord([]byte("c")), store.ErrIO, "failure is sticky")
	assert.ErrorIs(t, w.Close(), store.ErrIO)
	assert.Equal(t, StateClosed, w.State())
}

func BenchmarkMultiThreadedWriter_WriteRecord(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "mt_writer_bench")
	require.NoError(b, err)
	defer os.RemoveAll(tmpDir)

	config := DefaultWriterConfig(tmpDir)
	config.NumShards = 4
	w, err := NewMultiThreadedWriter(config)
	require.NoError(b, err)

	payload := make([]byte, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.WriteRecord(payload); err != nil {
			b.Fatal(err)
		}
	}
	require.NoError(b, w.Close())
}
