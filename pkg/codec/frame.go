package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// HeaderSize is the fixed frame header: Length(4) + Flags(1) + HeaderCRC(4) + Checksum(4)
const HeaderSize = 13

// Frame flags
const (
	// FlagZstd marks a payload stored as a single zstd frame
	FlagZstd uint8 = 1 << 0

	knownFlags = FlagZstd
)

// prefixSize is the part of the header covered by the header CRC
const prefixSize = 5

// DefaultMaxRecordSize bounds the payload length a decoder accepts
const DefaultMaxRecordSize = 1 << 30

const crcMaskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrCorruptFrame is returned for fully written frames that fail validation
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrEndOfStream is returned when no complete frame remains
	ErrEndOfStream = errors.New("end of stream")
	// ErrRecordTooLarge is returned when a payload exceeds the codec limit
	ErrRecordTooLarge = errors.New("record too large")
)

// Header is the decoded fixed-size prefix of a frame
type Header struct {
	Length    uint32 // Payload length in bytes
	Flags     uint8  // Payload encoding
	HeaderCRC uint32 // Masked CRC-32C of the length and flags fields
	Checksum  uint32 // Masked CRC-32C of the length and flags fields followed by the payload
}

// Frame is one record as stored on disk
type Frame struct {
	Header
	Payload []byte
}

// FrameCodec handles serialization and deserialization of frames
type FrameCodec struct {
	maxRecordSize int
}

// NewFrameCodec creates a codec accepting payloads up to maxRecordSize bytes.
// A non-positive limit selects DefaultMaxRecordSize.
func NewFrameCodec(maxRecordSize int) *FrameCodec {
	if maxRecordSize <= 0 || int64(maxRecordSize) > math.MaxUint32 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &FrameCodec{maxRecordSize: maxRecordSize}
}

// MaxRecordSize returns the largest payload this codec encodes or decodes
func (c *FrameCodec) MaxRecordSize() int {
	return c.maxRecordSize
}

// EncodedSize returns the on-disk size of a payload of n bytes
func EncodedSize(n int) int {
	return HeaderSize + n
}

// Encode serializes a payload into a new frame
// Format: [Length(4)][Flags(1)][HeaderCRC(4)][Checksum(4)][Payload]
func (c *FrameCodec) Encode(payload []byte) ([]byte, error) {
	return c.Append(make([]byte, 0, EncodedSize(len(payload))), payload)
}

// Append encodes payload as a frame with no flags appended to dst
func (c *FrameCodec) Append(dst, payload []byte) ([]byte, error) {
	return c.AppendFlags(dst, payload, 0)
}

// AppendFlags encodes payload as a frame carrying flags appended to dst
func (c *FrameCodec) AppendFlags(dst, payload []byte, flags uint8) ([]byte, error) {
	if len(payload) > c.maxRecordSize {
		return dst, fmt.Errorf("%w: %d > %d", ErrRecordTooLarge, len(payload), c.maxRecordSize)
	}
	if flags&^knownFlags != 0 {
		return dst, fmt.Errorf("unknown frame flags %#x", flags)
	}

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = flags
	binary.LittleEndian.PutUint32(hdr[5:9], mask(crc32.Checksum(hdr[:prefixSize], castagnoli)))
	binary.LittleEndian.PutUint32(hdr[9:13], payloadChecksum(hdr[:prefixSize], payload))

	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

// Decode deserializes the frame at the start of data. The returned payload
// aliases data.
func (c *FrameCodec) Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, ErrEndOfStream
	}

	h, err := c.ParseHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}

	end := HeaderSize + int(h.Length)
	if len(data) < end {
		return nil, ErrEndOfStream
	}

	f := &Frame{Header: h, Payload: data[HeaderSize:end]}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFrame reads one frame from r. buf is reused for the payload when it has
// enough capacity. The second return value is the number of bytes consumed.
func (c *FrameCodec) ReadFrame(r io.Reader, buf []byte) (*Frame, int, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, n, ErrEndOfStream
		}
		return nil, n, err
	}

	h, err := c.ParseHeader(hdr[:])
	if err != nil {
		return nil, n, err
	}

	length := int(h.Length)
	if cap(buf) < length {
		buf = make([]byte, length)
	}
	payload := buf[:length]

	m, err := io.ReadFull(r, payload)
	n += m
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, n, ErrEndOfStream
		}
		return nil, n, err
	}

	f := &Frame{Header: h, Payload: payload}
	if err := f.Validate(); err != nil {
		return nil, n, err
	}
	return f, n, nil
}

// ParseHeader decodes and validates a frame header
func (c *FrameCodec) ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrEndOfStream
	}

	h := Header{
		Length:    binary.LittleEndian.Uint32(b[0:4]),
		Flags:     b[4],
		HeaderCRC: binary.LittleEndian.Uint32(b[5:9]),
		Checksum:  binary.LittleEndian.Uint32(b[9:13]),
	}

	if want := mask(crc32.Checksum(b[:prefixSize], castagnoli)); h.HeaderCRC != want {
		return h, fmt.Errorf("%w: header CRC mismatch: %d != %d", ErrCorruptFrame, h.HeaderCRC, want)
	}
	if h.Flags&^knownFlags != 0 {
		return h, fmt.Errorf("%w: unknown flags %#x", ErrCorruptFrame, h.Flags)
	}
	if int64(h.Length) > int64(c.maxRecordSize) {
		return h, fmt.Errorf("%w: length %d exceeds limit %d", ErrCorruptFrame, h.Length, c.maxRecordSize)
	}
	return h, nil
}

// Verify checks payload against the header checksum
func (h Header) Verify(payload []byte) error {
	if len(payload) != int(h.Length) {
		return fmt.Errorf("%w: payload length %d != %d", ErrCorruptFrame, len(payload), h.Length)
	}

	var prefix [prefixSize]byte
	binary.LittleEndian.PutUint32(prefix[0:4], h.Length)
	prefix[4] = h.Flags
	if got := payloadChecksum(prefix[:], payload); got != h.Checksum {
		return fmt.Errorf("%w: checksum mismatch: %d != %d", ErrCorruptFrame, h.Checksum, got)
	}
	return nil
}

// Validate checks the integrity of a frame
func (f *Frame) Validate() error {
	return f.Header.Verify(f.Payload)
}

// Compressed reports whether the payload is zstd compressed
func (h Header) Compressed() bool {
	return h.Flags&FlagZstd != 0
}

// Size returns the total size of the frame when encoded
func (f *Frame) Size() int {
	return EncodedSize(len(f.Payload))
}

func payloadChecksum(prefix, payload []byte) uint32 {
	crc := crc32.Update(0, castagnoli, prefix)
	crc = crc32.Update(crc, castagnoli, payload)
	return mask(crc)
}

// mask keeps CRCs of data that itself contains CRCs from validating by accident
func mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + crcMaskDelta
}
