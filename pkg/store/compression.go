package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/ssargent/shardlog/pkg/codec"
)

// One zstd encoder and decoder are shared by every writer and reader.
// EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(math.MaxUint32))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// compress returns data zstd compressed into dst and the frame flags to store
// it with. Records that do not shrink are stored as they are.
func compress(dst, data []byte) ([]byte, []byte, uint8, error) {
	enc, _, err := zstdCodecs()
	if err != nil {
		return dst, nil, 0, err
	}
	dst = enc.EncodeAll(data, dst[:0])
	if len(dst) >= len(data) {
		return dst, data, 0, nil
	}
	return dst, dst, codec.FlagZstd, nil
}

// decompress decodes a zstd payload into dst, refusing records over limit
func decompress(dst, payload []byte, limit int) ([]byte, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return dst, err
	}
	out, err := dec.DecodeAll(payload, dst[:0])
	if err != nil {
		return dst, fmt.Errorf("%w: zstd: %v", codec.ErrCorruptFrame, err)
	}
	if len(out) > limit {
		return out, fmt.Errorf("%w: decompressed size %d exceeds limit %d", codec.ErrCorruptFrame, len(out), limit)
	}
	return out, nil
}
