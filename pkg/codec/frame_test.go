package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameCodec_EncodeDecodeRoundTrip(t *testing.T) {
	codec := NewFrameCodec(0)

	testCases := []struct {
		name    string
		payload []byte
	}{
		{name: "simple string", payload: []byte("john@example.com")},
		{name: "empty payload", payload: []byte{}},
		{name: "nil payload", payload: nil},
		{name: "binary data", payload: []byte{0x00, 0x01, 0xFF, 0xFE}},
		{name: "large payload", payload: bytes.Repeat([]byte("v"), 64*1024)},
		{name: "unicode data", payload: []byte("🎯 unicode value with émojis")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(tc.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			if len(encoded) != EncodedSize(len(tc.payload)) {
				t.Fatalf("Encoded size mismatch: got %d, want %d", len(encoded), EncodedSize(len(tc.payload)))
			}

			frame, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if !bytes.Equal(frame.Payload, tc.payload) {
				t.Errorf("Payload mismatch: got %v, want %v", frame.Payload, tc.payload)
			}

			if frame.Length != uint32(len(tc.payload)) {
				t.Errorf("Length mismatch: got %d, want %d", frame.Length, len(tc.payload))
			}

			if frame.Size() != len(encoded) {
				t.Errorf("Size mismatch: got %d, want %d", frame.Size(), len(encoded))
			}
		})
	}
}

func TestFrameCodec_Corruption(t *testing.T) {
	codec := NewFrameCodec(0)

	t.Run("corrupted payload is a corrupt frame", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("test value"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		encoded[HeaderSize] ^= 0xFF

		if _, err := codec.Decode(encoded); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("Expected ErrCorruptFrame, got %v", err)
		}
	})

	t.Run("corrupted length is caught by the header CRC", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("test value"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		encoded[0] ^= 0x01

		if _, err := codec.Decode(encoded); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("Expected ErrCorruptFrame, got %v", err)
		}
	})

	t.Run("corrupted checksum field", func(t *testing.T) {
		encoded, err := codec.Encode([]byte("test value"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		encoded[9] ^= 0xFF

		if _, err := codec.Decode(encoded); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("Expected ErrCorruptFrame, got %v", err)
		}
	})

	t.Run("length above the limit is corrupt", func(t *testing.T) {
		small := NewFrameCodec(16)
		encoded, err := NewFrameCodec(0).Encode(bytes.Repeat([]byte("x"), 32))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		if _, err := small.Decode(encoded); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("Expected ErrCorruptFrame, got %v", err)
		}
	})
}

func TestFrameCodec_Truncation(t *testing.T) {
	codec := NewFrameCodec(0)

	encoded, err := codec.Encode([]byte("a record that will be cut short"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for _, cut := range []int{0, 1, HeaderSize - 1, HeaderSize, len(encoded) - 1} {
		if _, err := codec.Decode(encoded[:cut]); !errors.Is(err, ErrEndOfStream) {
			t.Errorf("cut=%d: expected ErrEndOfStream, got %v", cut, err)
		}

		if _, _, err := codec.ReadFrame(bytes.NewReader(encoded[:cut]), nil); !errors.Is(err, ErrEndOfStream) {
			t.Errorf("cut=%d: ReadFrame expected ErrEndOfStream, got %v", cut, err)
		}
	}
}

func TestFrameCodec_ReadFrameSequence(t *testing.T) {
	codec := NewFrameCodec(0)
	records := [][]byte{[]byte("a"), []byte("bb"), {}}

	var stream []byte
	for _, r := range records {
		var err error
		stream, err = codec.Append(stream, r)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	reader := bytes.NewReader(stream)
	buf := make([]byte, 0, 8)
	consumed := 0
	for i, want := range records {
		frame, n, err := codec.ReadFrame(reader, buf)
		if err != nil {
			t.Fatalf("record %d: ReadFrame failed: %v", i, err)
		}
		if !bytes.Equal(frame.Payload, want) {
			t.Errorf("record %d: got %q, want %q", i, frame.Payload, want)
		}
		consumed += n
	}

	if consumed != len(stream) {
		t.Errorf("consumed %d bytes, stream is %d", consumed, len(stream))
	}

	if _, _, err := codec.ReadFrame(reader, buf); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream after last frame, got %v", err)
	}
}

func TestFrameCodec_RecordTooLarge(t *testing.T) {
	codec := NewFrameCodec(4)

	if _, err := codec.Encode([]byte("12345")); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Expected ErrRecordTooLarge, got %v", err)
	}
	if _, err := codec.Encode([]byte("1234")); err != nil {
		t.Errorf("Expected payload at the limit to encode, got %v", err)
	}
}

func TestFrameCodec_BinaryLayout(t *testing.T) {
	codec := NewFrameCodec(0)
	payload := []byte("xyz")

	encoded, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if got := binary.LittleEndian.Uint32(encoded[0:4]); got != 3 {
		t.Errorf("Length field: got %d, want 3", got)
	}
	if !bytes.Equal(encoded[HeaderSize:], payload) {
		t.Errorf("Payload bytes: got %q, want %q", encoded[HeaderSize:], payload)
	}

	h, err := codec.ParseHeader(encoded)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if err := h.Verify(payload); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := h.Verify([]byte("xyZ")); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("Expected ErrCorruptFrame for altered payload, got %v", err)
	}
}

func TestFrameCodec_Flags(t *testing.T) {
	codec := NewFrameCodec(0)
	payload := []byte("stored compressed")

	encoded, err := codec.AppendFlags(nil, payload, FlagZstd)
	if err != nil {
		t.Fatalf("AppendFlags failed: %v", err)
	}
	if encoded[4] != FlagZstd {
		t.Errorf("Flags byte: got %#x, want %#x", encoded[4], FlagZstd)
	}

	frame, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !frame.Compressed() {
		t.Error("Expected frame to be marked compressed")
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("Payload mismatch: got %q, want %q", frame.Payload, payload)
	}

	plain, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if f, err := codec.Decode(plain); err != nil || f.Compressed() {
		t.Errorf("Expected plain frame, got %+v, %v", f, err)
	}

	t.Run("flipped flag is caught by the header CRC", func(t *testing.T) {
		damaged := bytes.Clone(encoded)
		damaged[4] = 0
		if _, err := codec.Decode(damaged); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("Expected ErrCorruptFrame, got %v", err)
		}
	})

	t.Run("unknown flags", func(t *testing.T) {
		if _, err := codec.AppendFlags(nil, payload, 0x80); err == nil {
			t.Error("Expected error for unknown flags")
		}
	})
}

func BenchmarkFrameCodec_Encode(b *testing.B) {
	codec := NewFrameCodec(0)
	payload := bytes.Repeat([]byte("v"), 1000)
	buf := make([]byte, 0, EncodedSize(len(payload)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Append(buf[:0], payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFrameCodec_Decode(b *testing.B) {
	codec := NewFrameCodec(0)
	encoded, err := codec.Encode(bytes.Repeat([]byte("v"), 1000))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Decode(encoded); err != nil {
			b.Fatal(err)
		}
	}
}
