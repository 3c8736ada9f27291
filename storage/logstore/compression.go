package logstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec of a segment.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed. It is the default.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlockSize))
	return dec
}

// Block format: [uncompressed u32][compressed u32][data].
// A compressed size of 0 marks a raw block.
const blockHeaderSize = 8

// maxBlockSize bounds the uncompressed size of a block. Block headers are
// not checksummed, so larger sizes are treated as corruption.
const maxBlockSize = 64 << 20

var errCorruptBlock = errors.New("corrupt block")

// appendBlock compresses data and appends the framed block to dst.
// Blocks that do not shrink below 90% are stored raw.
func appendBlock(dst, data []byte, c Compression) []byte {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err == nil && n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		dst = append(dst, hdr[:]...)
		return append(dst, data...)
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...)
}

// readBlock decodes the block at the start of src. It returns the
// uncompressed bytes and the number of bytes consumed.
func readBlock(src []byte, c Compression) ([]byte, int, error) {
	if len(src) < blockHeaderSize {
		return nil, 0, fmt.Errorf("%w: truncated header", errCorruptBlock)
	}
	rawSize := binary.LittleEndian.Uint32(src[0:])
	compSize := binary.LittleEndian.Uint32(src[4:])
	body := src[blockHeaderSize:]

	if rawSize > maxBlockSize {
		return nil, 0, fmt.Errorf("%w: block size %d exceeds %d", errCorruptBlock, rawSize, maxBlockSize)
	}
	if compSize == 0 {
		if uint64(len(body)) < uint64(rawSize) {
			return nil, 0, fmt.Errorf("%w: truncated raw block", errCorruptBlock)
		}
		return body[:rawSize], blockHeaderSize + int(rawSize), nil
	}
	if uint64(len(body)) < uint64(compSize) {
		return nil, 0, fmt.Errorf("%w: truncated compressed block", errCorruptBlock)
	}
	body = body[:compSize]
	out := make([]byte, rawSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", errCorruptBlock, err)
		}
		if uint32(n) != rawSize {
			return nil, 0, fmt.Errorf("%w: decompressed size mismatch", errCorruptBlock)
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(body, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", errCorruptBlock, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, 0, fmt.Errorf("%w: decompressed size mismatch", errCorruptBlock)
		}
		out = decoded
	default:
		return nil, 0, fmt.Errorf("%w: compressed block in %s segment", errCorruptBlock, c)
	}
	return out, blockHeaderSize + int(compSize), nil
}
