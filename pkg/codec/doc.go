// Package codec provides frame serialization and deserialization for shardlog.
//
// The codec package implements the self-delimiting binary frame that wraps
// every record in a shard file. It is the foundation for the single-stream
// reader and writer in package store.
//
// # Frame Format
//
// Frames are serialized in a binary format with the following structure:
//
//	[Length(4)][Flags(1)][HeaderCRC(4)][Checksum(4)][Payload]
//
// Fields:
//   - Length: 32-bit unsigned payload length in bytes (little-endian)
//   - Flags: payload encoding; FlagZstd marks a zstd compressed payload
//   - HeaderCRC: masked CRC-32C of the Length and Flags fields (little-endian)
//   - Checksum: masked CRC-32C of the Length and Flags fields followed by the payload (little-endian)
//   - Payload: the record bytes as stored
//
// The total frame size is: 13 bytes (header) + len(payload)
//
// The codec only carries the flags. Compressing and decompressing payloads is
// left to the store package.
//
// # Integrity
//
// The header CRC lets a reader trust Length before it reads the payload, so a
// damaged length never causes a reader to swallow the rest of a file. The
// payload checksum covers the length again so a frame cannot validate with a
// payload of the wrong size. Both CRCs are masked the way LevelDB masks its
// log checksums, which keeps frames stored inside payloads from validating at
// the wrong offset during recovery.
//
// # Truncation versus Corruption
//
// Decoding distinguishes two failure modes:
//   - ErrEndOfStream: fewer bytes remain than the frame needs. A crash in the
//     middle of an append leaves such a tail, and it is treated as the end of
//     the stream rather than as damage.
//   - ErrCorruptFrame: a fully present frame whose checksums do not match, or
//     whose header declares an impossible length.
//
// # Usage
//
//	c := codec.NewFrameCodec(0)
//
//	encoded, err := c.Encode([]byte("payload"))
//	if err != nil {
//	    return err
//	}
//
//	frame, err := c.Decode(encoded)
//	if err != nil {
//	    return err // ErrEndOfStream or ErrCorruptFrame
//	}
//
// # Thread Safety
//
// FrameCodec instances are immutable and safe for concurrent use.
package codec
