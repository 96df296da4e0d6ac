package parallel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/metrics"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// emptyPassBackoff is how long a worker on an infinite locator waits after a
// whole pass of shards produced no records
const emptyPassBackoff = 10 * time.Millisecond

// MultiThreadedReader reads records from many shard files with a pool of
// worker goroutines feeding a byte-bounded queue. Records from one shard keep
// their file order; records from different shards interleave.
type MultiThreadedReader struct {
	id      ksuid.KSUID
	config  ReaderConfig
	logger  logging.Logger
	metrics *metrics.Metrics
	locator sharding.Locator
	queue   *recordQueue
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	state   lifecycle
	closed  atomic.Bool
	empty   atomic.Int64 // Consecutive shard opens that yielded nothing
}

// shardCursor is an open shard and the records taken from it so far
type shardCursor struct {
	rr      *store.RecordReader
	records int
}

// NewReaderWithShards reads every {prefix}_{n} file in dir once, in index order
func NewReaderWithShards(dir, prefix string, config ReaderConfig) (*MultiThreadedReader, error) {
	set, err := sharding.Discover(dir, prefix)
	if err != nil {
		return nil, err
	}
	return NewMultiThreadedReader(set.Sequential(), config)
}

// NewReaderWithShardPaths reads each of paths once, in order
func NewReaderWithShardPaths(paths []string, config ReaderConfig) (*MultiThreadedReader, error) {
	set, err := sharding.FromPaths(paths)
	if err != nil {
		return nil, err
	}
	return NewMultiThreadedReader(set.Sequential(), config)
}

// NewReaderWithRandomShardPaths reads paths forever, reshuffling the shard
// order on every pass. NextRecord never returns io.EOF.
func NewReaderWithRandomShardPaths(paths []string, seed uint64, config ReaderConfig) (*MultiThreadedReader, error) {
	set, err := sharding.FromPaths(paths)
	if err != nil {
		return nil, err
	}
	return NewMultiThreadedReader(set.Randomized(seed), config)
}

// NewMultiThreadedReader starts workers pulling shard paths from locator
func NewMultiThreadedReader(locator sharding.Locator, config ReaderConfig) (*MultiThreadedReader, error) {
	if locator == nil || locator.Len() == 0 {
		return nil, store.ArgumentError("at least one shard is required")
	}
	config, err := config.normalize()
	if err != nil {
		return nil, err
	}
	// A shard is held by one reader at a time
	config.NumShards = min(config.NumShards, locator.Len())
	config.WorkerThreads = min(config.WorkerThreads, config.NumShards)

	ctx, cancel := context.WithCancel(context.Background())
	r := &MultiThreadedReader{
		id:      ksuid.New(),
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
		locator: locator,
		queue:   newRecordQueue(config.QueueSizeBytes, config.WorkerThreads),
		cancel:  cancel,
	}

	r.state.store(StateRunning)
	per, extra := config.NumShards/config.WorkerThreads, config.NumShards%config.WorkerThreads
	for i := 0; i < config.WorkerThreads; i++ {
		share := per
		if i < extra {
			share++
		}
		r.wg.Add(1)
		go r.run(ctx, i, share)
	}

	r.logger.Infof("reader %s: started %d workers over %d shards (infinite=%t)",
		r.id, config.WorkerThreads, locator.Len(), locator.Infinite())
	return r, nil
}

// NextRecord returns the next record. The caller owns the returned slice.
// io.EOF is returned once every shard is exhausted; a worker failure is
// returned after the records queued before it.
func (r *MultiThreadedReader) NextRecord() ([]byte, error) {
	rec, err := r.queue.pop()
	if err != nil {
		return nil, err
	}
	r.metrics.SetQueue(r.queue.stats())
	return rec, nil
}

// Close stops the workers and releases every open shard. Later calls are
// no-ops and NextRecord returns ErrClosed.
func (r *MultiThreadedReader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.state.store(StateDraining)
	r.cancel()
	r.queue.close()
	r.wg.Wait()
	r.state.store(StateClosed)
	r.metrics.SetQueue(0, 0)

	r.logger.Infof("reader %s: closed", r.id)
	return nil
}

// QueuedRecords returns the number of records waiting in the queue
func (r *MultiThreadedReader) QueuedRecords() int {
	n, _ := r.queue.stats()
	return n
}

// QueuedBytes returns the payload bytes waiting in the queue
func (r *MultiThreadedReader) QueuedBytes() int64 {
	_, b := r.queue.stats()
	return b
}

// State returns the lifecycle stage. A reader stays running after its shards
// are exhausted and NextRecord reports io.EOF; it drains only on Close.
func (r *MultiThreadedReader) State() State {
	return r.state.load()
}

// ID returns the identifier used in this reader's log lines
func (r *MultiThreadedReader) ID() string {
	return r.id.String()
}

func (r *MultiThreadedReader) run(ctx context.Context, id, share int) {
	defer r.wg.Done()

	err := r.readShards(ctx, id, share)
	if err != nil && ctx.Err() == nil {
		r.metrics.RecordReadError()
		r.logger.Errorf("reader %s: worker %d: %v", r.id, id, err)
		// Stop the other workers; the consumer sees err after the queue drains
		r.cancel()
	} else {
		err = nil
	}

	if r.queue.done(err) {
		r.logger.Debugf("reader %s: all workers finished", r.id)
	}
}

// readShards keeps up to share shards open, taking a batch of records from
// each in turn and replacing exhausted shards from the locator
func (r *MultiThreadedReader) readShards(ctx context.Context, id, share int) error {
	var open []*shardCursor
	defer func() {
		for _, c := range open {
			_ = c.rr.Close()
			r.locator.Release(c.rr.Path())
		}
	}()

	for len(open) < share {
		c, ok, err := r.openNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		open = append(open, c)
	}

	for len(open) > 0 {
		for i := 0; i < len(open); {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			exhausted, err := r.readBatch(open[i])
			if err != nil {
				return err
			}
			if !exhausted {
				i++
				continue
			}

			retired := open[i]
			open = append(open[:i], open[i+1:]...)
			if err := r.retire(ctx, retired); err != nil {
				return err
			}

			c, ok, err := r.openNext()
			if err != nil {
				return err
			}
			if ok {
				open = slices.Insert(open, i, c)
				i++
			}
		}
	}

	r.logger.Debugf("reader %s: worker %d finished", r.id, id)
	return nil
}

// readBatch moves up to readBatch records from c into the queue. It reports
// whether c reached the end of its file.
func (r *MultiThreadedReader) readBatch(c *shardCursor) (bool, error) {
	for n := 0; n < readBatch; n++ {
		rec, err := c.rr.NextRecord()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}

		c.records++
		r.empty.Store(0)
		if !r.queue.push(bytes.Clone(rec)) {
			return false, context.Canceled
		}
		r.metrics.RecordRead(len(rec))
		r.metrics.SetQueue(r.queue.stats())
	}
	return false, nil
}

// retire closes an exhausted shard and hands its path back to the locator. On
// an infinite locator it backs off when a whole pass of shards has produced no
// records, so empty or unreadable datasets do not spin.
func (r *MultiThreadedReader) retire(ctx context.Context, c *shardCursor) error {
	if skipped := c.rr.Skipped(); skipped > 0 {
		r.metrics.RecordCorruptSkipped(skipped)
	}
	err := c.rr.Close()
	r.locator.Release(c.rr.Path())
	if err != nil {
		return err
	}

	if !r.locator.Infinite() || c.records > 0 {
		return nil
	}
	if r.empty.Add(1) < int64(r.locator.Len()) {
		return nil
	}

	r.logger.Debugf("reader %s: no records in a full pass over %d shards", r.id, r.locator.Len())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(emptyPassBackoff):
		return nil
	}
}

func (r *MultiThreadedReader) openNext() (*shardCursor, bool, error) {
	path, ok := r.locator.Next()
	if !ok {
		return nil, false, nil
	}

	rr, err := store.NewRecordReader(store.ReaderConfig{
		FilePath:   path,
		Strategy:   r.config.CorruptionStrategy,
		BufferSize: r.config.BufferSize,
		Logger:     r.logger,
	})
	if err != nil {
		r.locator.Release(path)
		return nil, false, err
	}
	r.metrics.RecordShardOpened()
	return &shardCursor{rr: rr}, true, nil
}
