package parallel

import (
	"io"
	"sync"

	"github.com/ssargent/shardlog/pkg/store"
)

// recordQueue is a FIFO of records bounded by total payload size. Producers
// block while the budget is used up; consumers block while it is empty and
// producers remain.
type recordQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     [][]byte
	head      int
	bytes     int64 // Payload bytes queued
	cost      int64 // Admission cost queued; empty records cost one byte
	budget    int64
	producers int
	err       error // First producer failure
	closed    bool
}

func newRecordQueue(budget int64, producers int) *recordQueue {
	q := &recordQueue{budget: budget, producers: producers}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func recordCost(rec []byte) int64 {
	return max(int64(len(rec)), 1)
}

// push appends rec, blocking while it does not fit. A record larger than the
// whole budget is admitted once the queue is empty. It returns false if the
// queue was closed.
func (q *recordQueue) push(rec []byte) bool {
	c := recordCost(rec)

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.len() > 0 && q.cost+c > q.budget {
		q.cond.Wait()
	}
	if q.closed {
		return false
	}

	q.items = append(q.items, rec)
	q.bytes += int64(len(rec))
	q.cost += c
	q.cond.Broadcast()
	return true
}

// pop removes the oldest record. Once producers are done and the queue is
// empty it returns the first producer error, or io.EOF.
func (q *recordQueue) pop() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.len() == 0 && q.producers > 0 {
		q.cond.Wait()
	}
	if q.closed {
		return nil, store.NewError(store.KindClosed, "read", "", nil)
	}
	if q.len() == 0 {
		if q.err != nil {
			return nil, q.err
		}
		return nil, io.EOF
	}

	rec := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.bytes -= int64(len(rec))
	q.cost -= recordCost(rec)
	q.cond.Broadcast()
	return rec, nil
}

// done marks one producer finished, keeping the first non-nil error. It
// reports whether this was the last producer.
func (q *recordQueue) done(err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil && q.err == nil {
		q.err = err
	}
	q.producers--
	q.cond.Broadcast()
	return q.producers == 0
}

// close wakes every waiter; later pushes and pops fail
func (q *recordQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	q.head = 0
	q.bytes = 0
	q.cost = 0
	q.cond.Broadcast()
}

func (q *recordQueue) len() int {
	return len(q.items) - q.head
}

// stats returns the queued record count and payload bytes
func (q *recordQueue) stats() (int, int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len(), q.bytes
}
