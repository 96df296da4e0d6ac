package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ssargent/shardlog/pkg/codec"
	"github.com/ssargent/shardlog/pkg/logging"
)

// recoveryWindow is how many bytes are examined per positional read while
// searching for the next valid frame
const recoveryWindow = 64 * 1024

// RecordReader reads framed records sequentially from a single shard file
type RecordReader struct {
	file    *os.File
	reader  *bufio.Reader
	codec   *codec.FrameCodec
	config  ReaderConfig
	logger  logging.Logger
	mutex   sync.Mutex
	buf     []byte // Payload buffer, reused between records
	plain   []byte // Decompressed record buffer, reused between records
	raw     bool   // Return stored payloads without decompressing them
	offset  int64  // Offset of the next frame
	skipped int
	err     error // Sticky failure
	eof     bool
	closed  bool
}

// OpenRecordReader opens path with default buffering
func OpenRecordReader(path string, strategy CorruptionStrategy) (*RecordReader, error) {
	return NewRecordReader(ReaderConfig{FilePath: path, Strategy: strategy})
}

// NewRecordReader opens the file at config.FilePath for reading records
func NewRecordReader(config ReaderConfig) (*RecordReader, error) {
	return newRecordReader(config, false)
}

func newRecordReader(config ReaderConfig, raw bool) (*RecordReader, error) {
	if config.FilePath == "" {
		return nil, ArgumentError("reader file path is required")
	}
	if config.Strategy != CorruptionError && config.Strategy != CorruptionRecover {
		return nil, ArgumentError("invalid corruption strategy %d", int(config.Strategy))
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}

	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, IOError("open", config.FilePath, err)
	}

	logger := logging.OrNop(config.Logger)
	if err := adviseSequential(file); err != nil {
		logger.Debugf("fadvise on %s: %v", config.FilePath, err)
	}

	return &RecordReader{
		file:   file,
		reader: bufio.NewReaderSize(file, config.BufferSize),
		codec:  codec.NewFrameCodec(config.MaxRecordSize),
		config: config,
		logger: logger,
		raw:    raw,
	}, nil
}

// NextRecord returns the next record. The slice is only valid until the next
// call. io.EOF marks the end of the stream and is returned on every later call.
func (r *RecordReader) NextRecord() ([]byte, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil, NewError(KindClosed, "read", r.config.FilePath, nil)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.eof {
		return nil, io.EOF
	}

	for {
		start := r.offset
		frame, n, err := r.codec.ReadFrame(r.reader, r.buf)
		if err == nil {
			r.offset += int64(n)
			r.buf = frame.Payload
			if !frame.Compressed() || r.raw {
				if frame.Payload == nil {
					return []byte{}, nil
				}
				return frame.Payload, nil
			}

			rec, err := decompress(r.plain, frame.Payload, r.codec.MaxRecordSize())
			r.plain = rec
			if err == nil {
				if rec == nil {
					return []byte{}, nil
				}
				return rec, nil
			}
			// The frame itself is intact, so reading resumes at the next one
			if err := r.corrupt(start, err); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case errors.Is(err, codec.ErrEndOfStream):
			r.eof = true
			return nil, io.EOF
		case errors.Is(err, codec.ErrCorruptFrame):
			if err := r.corrupt(start, err); err != nil {
				return nil, err
			}
			found, rerr := r.resync(r.offset + 1)
			if rerr != nil {
				r.err = rerr
				return nil, r.err
			}
			if !found {
				r.eof = true
				return nil, io.EOF
			}
		default:
			r.err = IOError("read", r.config.FilePath, err)
			return nil, r.err
		}
	}
}

// corrupt applies the corruption strategy to a damaged record at offset. It
// returns the sticky error under CorruptionError and nil once the record has
// been counted as skipped under CorruptionRecover.
func (r *RecordReader) corrupt(offset int64, err error) error {
	if r.config.Strategy == CorruptionError {
		r.err = NewError(KindCorruption, "read", r.config.FilePath,
			fmt.Errorf("frame at offset %d: %w", offset, err))
		return r.err
	}
	r.skipped++
	r.logger.Warnf("skipping corrupt frame in %s at offset %d: %v", r.config.FilePath, offset, err)
	return nil
}

// resync searches forward from start for the first offset holding a frame
// whose header and payload both validate, and positions the stream there.
func (r *RecordReader) resync(start int64) (bool, error) {
	stat, err := r.file.Stat()
	if err != nil {
		return false, IOError("stat", r.config.FilePath, err)
	}
	size := stat.Size()

	window := make([]byte, recoveryWindow+codec.HeaderSize)
	for base := start; base+codec.HeaderSize <= size; base += recoveryWindow {
		n, err := r.file.ReadAt(window, base)
		if err != nil && err != io.EOF {
			return false, IOError("read", r.config.FilePath, err)
		}
		chunk := window[:n]

		for i := 0; i+codec.HeaderSize <= len(chunk) && i < recoveryWindow; i++ {
			pos := base + int64(i)
			h, err := r.codec.ParseHeader(chunk[i : i+codec.HeaderSize])
			if err != nil {
				continue
			}
			end := pos + int64(codec.EncodedSize(int(h.Length)))
			if end > size {
				continue
			}
			ok, err := r.verifyAt(h, pos)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}

			if _, err := r.file.Seek(pos, io.SeekStart); err != nil {
				return false, IOError("seek", r.config.FilePath, err)
			}
			r.reader.Reset(r.file)
			r.logger.Debugf("resynchronized %s at offset %d", r.config.FilePath, pos)
			r.offset = pos
			return true, nil
		}
	}

	if _, err := r.file.Seek(size, io.SeekStart); err != nil {
		return false, IOError("seek", r.config.FilePath, err)
	}
	r.reader.Reset(r.file)
	r.offset = size
	return false, nil
}

func (r *RecordReader) verifyAt(h codec.Header, pos int64) (bool, error) {
	length := int(h.Length)
	if cap(r.buf) < length {
		r.buf = make([]byte, length)
	}
	payload := r.buf[:length]
	if _, err := r.file.ReadAt(payload, pos+codec.HeaderSize); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, IOError("read", r.config.FilePath, err)
	}
	return h.Verify(payload) == nil, nil
}

// Offset returns the byte offset of the next frame
func (r *RecordReader) Offset() int64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.offset
}

// Skipped returns how many corrupt frames were skipped
func (r *RecordReader) Skipped() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.skipped
}

// Path returns the file path
func (r *RecordReader) Path() string {
	return r.config.FilePath
}

// Close releases the file. Closing twice is a no-op.
func (r *RecordReader) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = nil
	r.plain = nil

	if err := r.file.Close(); err != nil {
		return IOError("close", r.config.FilePath, err)
	}
	return nil
}
