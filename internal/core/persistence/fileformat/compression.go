package fileformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/pkg/generic"
)

// Codec is the block compressor applied to the data blob.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

var ErrDecompress = errors.New("fileformat: cannot decompress data")

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return CodecNone, fmt.Errorf("unknown compression codec %q", s)
}

var (
	zstdEncoders = generic.NewPool(func() *zstd.Encoder {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}, nil)
	zstdDecoders = generic.NewPool(func() *zstd.Decoder {
		dec, _ := zstd.NewReader(nil)
		return dec
	}, nil)
)

// compressed blobs: [codec u8][raw length u32][codec payload]
const blockHeaderSize = 5

// compress falls back to CodecNone when the codec does not shrink the data.
func compress(data []byte, codec Codec) ([]byte, error) {
	var packed []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CodecZstd:
		enc := zstdEncoders.Get()
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	case CodecNone:
	default:
		return nil, fmt.Errorf("fileformat: unsupported codec %s", codec)
	}

	if len(packed) == 0 || len(packed) >= len(data) {
		codec, packed = CodecNone, data
	}
	out := make([]byte, blockHeaderSize+len(packed))
	out[0] = byte(codec)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[blockHeaderSize:], packed)
	return out, nil
}

func decompress(blob []byte) ([]byte, error) {
	if len(blob) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block too small", ErrDecompress)
	}
	codec := Codec(blob[0])
	size := binary.LittleEndian.Uint32(blob[1:])
	payload := blob[blockHeaderSize:]
	if size > archive.MaxBlobSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds %d", ErrDecompress, size, archive.MaxBlobSize)
	}

	switch codec {
	case CodecNone:
		if uint32(len(payload)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrDecompress)
		}
		return payload, nil
	case CodecLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrDecompress)
		}
		return out, nil
	case CodecZstd:
		dec := zstdDecoders.Get()
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrDecompress)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrDecompress, codec)
	}
}
