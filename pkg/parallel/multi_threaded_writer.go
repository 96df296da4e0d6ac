package parallel

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/minio/highwayhash"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/metrics"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// hashKey seeds HighwayHash for content and key based slot selection. It is
// fixed so the same record always lands in the same slot.
var hashKey = []byte("shardlog/highwayhash/slot-key/v1")

// writeTask is a record bound for a slot, or a flush barrier
type writeTask struct {
	slot    int
	data    []byte
	barrier chan error
}

// slotWriter is the open file of one shard slot
type slotWriter struct {
	writer *store.RecordWriter
	busy   atomic.Bool
}

// MultiThreadedWriter spreads records across shard files written by a pool of
// worker goroutines. Each slot is owned by exactly one worker, so records sent
// to the same slot are written in submission order.
type MultiThreadedWriter struct {
	id      ksuid.KSUID
	config  WriterConfig
	logger  logging.Logger
	metrics *metrics.Metrics
	sharder *sharding.FileSharder
	slots   []*slotWriter
	queues  []chan writeTask
	mutex   sync.RWMutex // Held for reading while sending to queues
	wg      sync.WaitGroup
	state   lifecycle
	next    atomic.Uint64
	pending atomic.Int64

	pathsMu sync.Mutex
	paths   []string // Every file opened by this writer

	errMu sync.Mutex
	err   error // First worker failure
}

// NewMultiThreadedWriter opens every shard slot and starts the workers
func NewMultiThreadedWriter(config WriterConfig) (*MultiThreadedWriter, error) {
	config, err := config.normalize()
	if err != nil {
		return nil, err
	}

	sharder, err := sharding.NewFileSharder(config.Dir, sharding.FileSharderConfig{
		Prefix:    config.Prefix,
		NumShards: config.NumShards,
		Append:    config.Append,
	})
	if err != nil {
		return nil, err
	}

	w := &MultiThreadedWriter{
		id:      ksuid.New(),
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
		sharder: sharder,
		slots:   make([]*slotWriter, config.NumShards),
		queues:  make([]chan writeTask, config.WorkerThreads),
	}

	for i := range w.slots {
		rw, err := w.openFile(sharder.InitialPath(i))
		if err != nil {
			for _, s := range w.slots[:i] {
				_ = s.writer.Close()
			}
			return nil, err
		}
		w.slots[i] = &slotWriter{writer: rw}
	}

	// Split the task capacity across workers so the queues together hold
	// exactly TaskQueueCapacity records.
	per, extra := config.TaskQueueCapacity/config.WorkerThreads, config.TaskQueueCapacity%config.WorkerThreads
	for i := range w.queues {
		capacity := per
		if i < extra {
			capacity++
		}
		w.queues[i] = make(chan writeTask, capacity)
	}

	w.state.store(StateRunning)
	for i, q := range w.queues {
		w.wg.Add(1)
		go w.run(i, q)
	}

	w.logger.Infof("writer %s: started %d workers over %d shards in %s", w.id, config.WorkerThreads, config.NumShards, config.Dir)
	return w, nil
}

func (w *MultiThreadedWriter) openFile(path string) (*store.RecordWriter, error) {
	rw, err := store.NewRecordWriter(store.WriterConfig{
		FilePath:    path,
		Append:      w.config.Append,
		BufferSize:  w.config.BufferSize,
		Compression: w.config.Compression,
		Logger:      w.logger,
	})
	if err != nil {
		return nil, err
	}

	w.pathsMu.Lock()
	w.paths = append(w.paths, path)
	w.pathsMu.Unlock()
	return rw, nil
}

// WriteRecord queues a copy of data for writing. It blocks while the target
// worker's queue is full.
func (w *MultiThreadedWriter) WriteRecord(data []byte) error {
	var slot int
	if w.config.EnableAutoSharding {
		slot = int((w.next.Add(1) - 1) % uint64(len(w.slots)))
	} else {
		slot = w.hashSlot(data)
	}
	return w.enqueue(slot, data)
}

// WriteRecordToShard queues data for a specific slot
func (w *MultiThreadedWriter) WriteRecordToShard(slot int, data []byte) error {
	if slot < 0 || slot >= len(w.slots) {
		return store.ArgumentError("shard slot %d out of range [0, %d)", slot, len(w.slots))
	}
	return w.enqueue(slot, data)
}

// WriteKeyedRecord queues data for the slot selected by hashing key, so all
// records sharing a key end up in the same shard in submission order
func (w *MultiThreadedWriter) WriteKeyedRecord(key, data []byte) error {
	return w.enqueue(w.hashSlot(key), data)
}

func (w *MultiThreadedWriter) hashSlot(b []byte) int {
	return int(highwayhash.Sum64(b, hashKey) % uint64(len(w.slots)))
}

func (w *MultiThreadedWriter) enqueue(slot int, data []byte) error {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if w.state.load() != StateRunning {
		return store.NewError(store.KindClosed, "write", w.config.Dir, nil)
	}
	if err := w.failure(); err != nil {
		return err
	}

	rec := bytes.Clone(data)
	if rec == nil {
		rec = []byte{}
	}

	w.metrics.SetPendingTasks(int(w.pending.Add(1)))
	w.queues[slot%len(w.queues)] <- writeTask{slot: slot, data: rec}
	return nil
}

// Flush waits until every record queued before the call is written, then
// flushes and syncs all open shard files
func (w *MultiThreadedWriter) Flush() error {
	w.mutex.RLock()
	if w.state.load() != StateRunning {
		w.mutex.RUnlock()
		return store.NewError(store.KindClosed, "flush", w.config.Dir, nil)
	}
	barriers := make([]chan error, len(w.queues))
	for i, q := range w.queues {
		barriers[i] = make(chan error, 1)
		q <- writeTask{barrier: barriers[i]}
	}
	w.mutex.RUnlock()

	var firstErr error
	for _, b := range barriers {
		if err := <-b; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.metrics.RecordFlush()
	return firstErr
}

// Close drains the queues, closes every shard file and stops the workers.
// It returns the first error any worker hit. Later calls return nil.
func (w *MultiThreadedWriter) Close() error {
	if !w.state.transition(StateRunning, StateDraining) {
		return nil
	}

	w.mutex.Lock()
	for _, q := range w.queues {
		close(q)
	}
	w.mutex.Unlock()

	w.wg.Wait()
	w.state.store(StateClosed)
	w.metrics.SetPendingTasks(0)

	err := w.failure()
	if err != nil {
		w.logger.Errorf("writer %s: closed with error: %v", w.id, err)
	} else {
		w.logger.Infof("writer %s: closed", w.id)
	}
	return err
}

// run is the worker loop for the slots owned by worker id
func (w *MultiThreadedWriter) run(id int, queue <-chan writeTask) {
	defer w.wg.Done()

	for t := range queue {
		if t.barrier != nil {
			t.barrier <- w.flushOwned(id)
			continue
		}

		w.metrics.SetPendingTasks(int(w.pending.Add(-1)))
		if w.failure() != nil {
			continue
		}
		if err := w.write(t.slot, t.data); err != nil {
			w.fail(err)
		}
	}

	for slot := id; slot < len(w.slots); slot += len(w.queues) {
		if err := w.slots[slot].writer.Close(); err != nil {
			w.fail(err)
		}
	}
}

func (w *MultiThreadedWriter) write(slot int, data []byte) error {
	s := w.slots[slot]
	s.busy.Store(true)
	defer s.busy.Store(false)

	frameSize := store.EncodedSize(len(data))
	if limit := w.config.MaxBytesPerWriter; limit > 0 {
		if size := s.writer.Size(); size > 0 && size+frameSize > limit {
			if err := w.rollover(slot, s); err != nil {
				return err
			}
		}
	}

	if err := s.writer.WriteRecord(data); err != nil {
		return err
	}
	w.metrics.RecordWrite(slot, int(frameSize))
	return nil
}

func (w *MultiThreadedWriter) rollover(slot int, s *slotWriter) error {
	old := s.writer.Path()
	if err := s.writer.Close(); err != nil {
		return err
	}

	rw, err := w.openFile(w.sharder.NextPath())
	if err != nil {
		return err
	}
	s.writer = rw

	w.metrics.RecordRollover(slot)
	w.logger.Debugf("writer %s: slot %d rolled over from %s to %s", w.id, slot, old, rw.Path())
	return nil
}

func (w *MultiThreadedWriter) flushOwned(id int) error {
	if err := w.failure(); err != nil {
		return err
	}
	for slot := id; slot < len(w.slots); slot += len(w.queues) {
		if err := w.slots[slot].writer.Flush(); err != nil {
			w.fail(err)
			return err
		}
	}
	return nil
}

func (w *MultiThreadedWriter) fail(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
		w.metrics.RecordWriteError()
		w.logger.Errorf("writer %s: %v", w.id, err)
	}
}

func (w *MultiThreadedWriter) failure() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// PendingTasks returns the number of records queued but not yet picked up by
// a worker
func (w *MultiThreadedWriter) PendingTasks() int {
	return int(w.pending.Load())
}

// AvailableWriters returns the number of shard slots not in the middle of a
// write
func (w *MultiThreadedWriter) AvailableWriters() int {
	n := 0
	for _, s := range w.slots {
		if !s.busy.Load() {
			n++
		}
	}
	return n
}

// State returns the lifecycle stage
func (w *MultiThreadedWriter) State() State {
	return w.state.load()
}

// ID returns the identifier used in this writer's log lines
func (w *MultiThreadedWriter) ID() string {
	return w.id.String()
}

// ShardPaths returns every file opened by this writer, including rollovers
func (w *MultiThreadedWriter) ShardPaths() []string {
	w.pathsMu.Lock()
	defer w.pathsMu.Unlock()
	return append([]string(nil), w.paths...)
}
