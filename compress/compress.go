// Package compress implements the byte compression primitive used by binary
// codecs.
//
// Compressed payloads start with a one byte [Tag] naming the algorithm that
// produced them, so a payload can always be decompressed regardless of the
// algorithm the reader is configured with. Data that does not shrink is
// stored with [None].
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a payload. Tag values are
// written into documents and must not change.
type Tag uint8

const (
	// None stores data uncompressed.
	None Tag = 0
	// LZ4 is block-mode LZ4. It is the default.
	LZ4 Tag = 1
	// Zstd is zstd at the default encoder level.
	Zstd Tag = 2
)

// ErrCorrupt is returned when a payload cannot be decompressed to the
// expected length.
var ErrCorrupt = errors.New("corrupt compressed payload")

var errIncompressible = errors.New("incompressible")

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseTag parses the name of a compression algorithm.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4", "":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Compress compresses data with the algorithm named by tag and returns the
// tagged payload. When compression would not reduce the size the data is
// stored as is, tagged [None].
func Compress(data []byte, tag Tag) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch tag {
	case None:
		err = errIncompressible
	case LZ4:
		body, err = compressLZ4(data)
	case Zstd:
		body, err = compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		out := make([]byte, 0, len(data)+1)
		out = append(out, byte(None))
		return append(out, data...), nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(tag))
	return append(out, body...), nil
}

// Decompress reverses [Compress]. The length must be the exact size of the
// original data.
func Decompress(payload []byte, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrCorrupt, length)
	}
	if len(payload) == 0 {
		if length == 0 {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: empty payload for %d bytes", ErrCorrupt, length)
	}
	tag, body := Tag(payload[0]), payload[1:]
	switch tag {
	case None:
		if len(body) != length {
			return nil, fmt.Errorf("%w: stored size %d does not match expected %d", ErrCorrupt, len(body), length)
		}
		out := make([]byte, length)
		copy(out, body)
		return out, nil
	case LZ4:
		return decompressLZ4(body, length)
	case Zstd:
		return decompressZstd(body, length)
	default:
		return nil, fmt.Errorf("%w: unsupported compression tag %d", ErrCorrupt, tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func decompressLZ4(body []byte, length int) ([]byte, error) {
	dst := make([]byte, length)
	n, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
	}
	if n != length {
		return nil, fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrCorrupt, n, length)
	}
	return dst, nil
}

// zstd encoders and decoders are safe for concurrent use and expensive to
// build, so a single pair is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func decompressZstd(body []byte, length int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(body, make([]byte, 0, length))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}
	if len(out) != length {
		return nil, fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrCorrupt, len(out), length)
	}
	return out, nil
}
