package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/shardlog/pkg/codec"
	"github.com/ssargent/shardlog/pkg/logging"
)

// RecordWriter appends framed records to a single shard file
type RecordWriter struct {
	file      *os.File
	writer    *bufio.Writer
	codec     *codec.FrameCodec
	syncTimer *time.Timer
	config    WriterConfig
	logger    logging.Logger
	mutex     sync.Mutex
	frame     []byte // Reused encode buffer
	packed    []byte // Reused compression buffer
	offset    int64  // Current write offset
	records   int64
	closed    bool
}

// NewRecordWriter opens the file at config.FilePath for appending records
func NewRecordWriter(config WriterConfig) (*RecordWriter, error) {
	if config.FilePath == "" {
		return nil, ArgumentError("writer file path is required")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.Compression != CompressionNone && config.Compression != CompressionZstd {
		return nil, ArgumentError("invalid compression %d", int(config.Compression))
	}
	logger := logging.OrNop(config.Logger)

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, IOError("open", config.FilePath, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if config.Append {
		flags |= os.O_APPEND
		if err := trimPartialFrame(config, logger); err != nil {
			return nil, err
		}
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(config.FilePath, flags, 0600)
	if err != nil {
		return nil, IOError("open", config.FilePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, IOError("stat", config.FilePath, err)
	}

	w := &RecordWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		codec:  codec.NewFrameCodec(config.MaxRecordSize),
		config: config,
		logger: logger,
		offset: stat.Size(),
	}

	if config.SyncInterval > 0 {
		w.syncTimer = time.AfterFunc(config.SyncInterval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			if w.closed {
				return
			}
			if err := w.sync(); err != nil {
				w.logger.Warnf("background sync of %s failed: %v", w.config.FilePath, err)
			}
		})
	}

	w.logger.Debugf("opened %s for writing (append=%t, size=%d)", config.FilePath, config.Append, w.offset)
	return w, nil
}

// WriteRecord frames data and appends it to the buffer
func (w *RecordWriter) WriteRecord(data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return NewError(KindClosed, "write", w.config.FilePath, nil)
	}

	payload, flags := data, uint8(0)
	if w.config.Compression == CompressionZstd {
		if len(data) > w.codec.MaxRecordSize() {
			return NewError(KindArgument, "write", w.config.FilePath,
				fmt.Errorf("%w: %d > %d", codec.ErrRecordTooLarge, len(data), w.codec.MaxRecordSize()))
		}
		var err error
		w.packed, payload, flags, err = compress(w.packed, data)
		if err != nil {
			return NewError(KindIO, "compress", w.config.FilePath, err)
		}
	}

	frame, err := w.codec.AppendFlags(w.frame[:0], payload, flags)
	if err != nil {
		return NewError(KindArgument, "write", w.config.FilePath, err)
	}
	w.frame = frame

	n, err := w.writer.Write(frame)
	w.offset += int64(n)
	if err != nil {
		return IOError("write", w.config.FilePath, err)
	}
	w.records++

	if w.syncTimer != nil {
		w.syncTimer.Reset(w.config.SyncInterval)
	}
	return nil
}

// Flush writes buffered frames to the file and syncs it to disk
func (w *RecordWriter) Flush() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return NewError(KindClosed, "flush", w.config.FilePath, nil)
	}
	return w.sync()
}

// sync performs the actual flush and fsync (internal method)
func (w *RecordWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return IOError("flush", w.config.FilePath, err)
	}
	if err := w.file.Sync(); err != nil {
		return IOError("sync", w.config.FilePath, err)
	}
	return nil
}

// Close flushes, syncs and releases the file. Closing twice is a no-op.
func (w *RecordWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.syncTimer != nil {
		w.syncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}

	if err := w.file.Close(); err != nil {
		return IOError("close", w.config.FilePath, err)
	}
	w.logger.Debugf("closed %s after %d records (%d bytes)", w.config.FilePath, w.records, w.offset)
	return nil
}

// Size returns the current size of the file including buffered frames
func (w *RecordWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Records returns the number of frames written by this writer
func (w *RecordWriter) Records() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.records
}

// Path returns the file path
func (w *RecordWriter) Path() string {
	return w.config.FilePath
}

// trimPartialFrame cuts a frame left incomplete by a crash off the end of an
// existing file, so records appended after it stay readable. Damage before
// the tail is left for readers to report or skip.
func trimPartialFrame(config WriterConfig, logger logging.Logger) error {
	stat, err := os.Stat(config.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return IOError("stat", config.FilePath, err)
	}
	if stat.Size() == 0 {
		return nil
	}

	r, err := newRecordReader(ReaderConfig{
		FilePath:      config.FilePath,
		Strategy:      CorruptionRecover,
		BufferSize:    config.BufferSize,
		MaxRecordSize: config.MaxRecordSize,
		Logger:        logging.Nop(),
	}, true)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		if _, err := r.NextRecord(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}

	end := r.Offset()
	if end >= stat.Size() {
		return nil
	}
	if err := os.Truncate(config.FilePath, end); err != nil {
		return IOError("truncate", config.FilePath, err)
	}
	logger.Warnf("removed %d bytes of a partial frame from the end of %s", stat.Size()-end, config.FilePath)
	return nil
}

// EncodedSize returns the bytes a record of n payload bytes occupies on disk
func EncodedSize(n int) int64 {
	return int64(codec.EncodedSize(n))
}
