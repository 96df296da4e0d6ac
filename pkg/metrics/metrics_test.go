package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordWrite(0, 10)
		m.RecordRollover(0)
		m.RecordWriteError()
		m.RecordFlush()
		m.SetPendingTasks(3)
		m.RecordRead(5)
		m.RecordCorruptSkipped(1)
		m.RecordShardOpened()
		m.RecordReadError()
		m.SetQueue(1, 2)
	})
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordWrite(1, 20)
	m.RecordWrite(1, 30)
	m.RecordWrite(2, 5)
	m.RecordRollover(1)
	m.RecordRead(7)
	m.RecordCorruptSkipped(2)
	m.RecordCorruptSkipped(0)
	m.SetQueue(4, 100)
	m.SetPendingTasks(9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordsWritten.WithLabelValues("1")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.bytesWritten.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsWritten.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollovers.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsRead))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.corruptSkipped))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queuedRecords))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.queuedBytes))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.pendingTasks))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
