// Package metrics exposes Prometheus collectors for the sharded writer and
// reader. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shardlog"

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	// Writer metrics
	recordsWritten *prometheus.CounterVec
	bytesWritten   *prometheus.CounterVec
	rollovers      *prometheus.CounterVec
	writeErrors    prometheus.Counter
	flushes        prometheus.Counter
	pendingTasks   prometheus.Gauge

	// Reader metrics
	recordsRead    prometheus.Counter
	bytesRead      prometheus.Counter
	corruptSkipped prometheus.Counter
	shardsOpened   prometheus.Counter
	readErrors     prometheus.Counter
	queuedRecords  prometheus.Gauge
	queuedBytes    prometheus.Gauge
}

// New creates and registers all metrics with reg. A nil reg registers with
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		recordsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_written_total",
				Help:      "Total number of records written, by shard slot",
			},
			[]string{"slot"},
		),

		bytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Total number of frame bytes written, by shard slot",
			},
			[]string{"slot"},
		),

		rollovers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollovers_total",
				Help:      "Total number of shard file rollovers, by shard slot",
			},
			[]string{"slot"},
		),

		writeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_errors_total",
				Help:      "Total number of failed writes",
			},
		),

		flushes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushes_total",
				Help:      "Total number of writer flushes",
			},
		),

		pendingTasks: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "writer_pending_tasks",
				Help:      "Number of write tasks waiting in the task queues",
			},
		),

		recordsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_read_total",
				Help:      "Total number of records decoded by reader workers",
			},
		),

		bytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_read_total",
				Help:      "Total number of payload bytes decoded by reader workers",
			},
		),

		corruptSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "corrupt_frames_skipped_total",
				Help:      "Total number of corrupt frames skipped under the recover strategy",
			},
		),

		shardsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shards_opened_total",
				Help:      "Total number of shard files opened for reading",
			},
		),

		readErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_errors_total",
				Help:      "Total number of reader worker failures",
			},
		),

		queuedRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reader_queued_records",
				Help:      "Number of records waiting in the reader output queue",
			},
		),

		queuedBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reader_queued_bytes",
				Help:      "Number of bytes waiting in the reader output queue",
			},
		),
	}
}

// RecordWrite records one frame written to a shard slot
func (m *Metrics) RecordWrite(slot int, frameBytes int) {
	if m == nil {
		return
	}
	label := strconv.Itoa(slot)
	m.recordsWritten.WithLabelValues(label).Inc()
	m.bytesWritten.WithLabelValues(label).Add(float64(frameBytes))
}

// RecordRollover records a slot moving to a new physical file
func (m *Metrics) RecordRollover(slot int) {
	if m == nil {
		return
	}
	m.rollovers.WithLabelValues(strconv.Itoa(slot)).Inc()
}

// RecordWriteError records a failed write
func (m *Metrics) RecordWriteError() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

// RecordFlush records a completed flush
func (m *Metrics) RecordFlush() {
	if m == nil {
		return
	}
	m.flushes.Inc()
}

// SetPendingTasks updates the writer queue depth
func (m *Metrics) SetPendingTasks(n int) {
	if m == nil {
		return
	}
	m.pendingTasks.Set(float64(n))
}

// RecordRead records one decoded record
func (m *Metrics) RecordRead(payloadBytes int) {
	if m == nil {
		return
	}
	m.recordsRead.Inc()
	m.bytesRead.Add(float64(payloadBytes))
}

// RecordCorruptSkipped records frames dropped by recovery
func (m *Metrics) RecordCorruptSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.corruptSkipped.Add(float64(n))
}

// RecordShardOpened records a shard file opened by a reader worker
func (m *Metrics) RecordShardOpened() {
	if m == nil {
		return
	}
	m.shardsOpened.Inc()
}

// RecordReadError records a reader worker failure
func (m *Metrics) RecordReadError() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

// SetQueue updates the reader output queue occupancy
func (m *Metrics) SetQueue(records int, bytes int64) {
	if m == nil {
		return
	}
	m.queuedRecords.Set(float64(records))
	m.queuedBytes.Set(float64(bytes))
}
