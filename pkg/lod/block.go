package lod

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
)

// Block header sizes.
const (
	ShortHeaderSize    = 8
	ExtendedHeaderSize = 48
)

// Preallocation cap for inflated buffers; larger blocks grow on demand.
const maxPrealloc = 1 << 24

// Framing identifies how a block was wrapped inside an entry.
type Framing uint8

// Framing constants.
const (
	FramingRaw      Framing = iota // Stored without a compression header
	FramingShort                   // 8-byte header: compressed, uncompressed
	FramingExtended                // 48-byte header, sizes at offsets 20 and 40
)

// String returns the framing name.
func (f Framing) String() string {
	switch f {
	case FramingRaw:
		return "raw"
	case FramingShort:
		return "short"
	case FramingExtended:
		return "extended"
	default:
		return fmt.Sprintf("Framing(%d)", uint8(f))
	}
}

// Block is the decoded payload of an entry.
type Block struct {
	Framing Framing
	Header  []byte // Header bytes as stored; nil for raw blocks
	Data    []byte
}

// Decompress inflates a zlib stream and checks it against the sizes declared
// in its header. Both the input length and the inflated length must match.
func Decompress(data []byte, compressedSize, uncompressedSize int) ([]byte, error) {
	if len(data) != compressedSize {
		log.Debug("compressed size mismatch",
			zap.Int("expected", compressedSize), zap.Int("actual", len(data)))
		return nil, fmt.Errorf("%w: expected %d compressed bytes, got %d",
			ErrSizeMismatch, compressedSize, len(data))
	}
	if uncompressedSize < 0 {
		return nil, fmt.Errorf("%w: negative uncompressed size %d", ErrSizeMismatch, uncompressedSize)
	}

	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer reader.Close()

	buf := bytes.NewBuffer(make([]byte, 0, min(uncompressedSize, maxPrealloc)))
	// Read one byte past the declared size so oversized streams are detected
	// without inflating all of them.
	if _, err := io.Copy(buf, io.LimitReader(reader, int64(uncompressedSize)+1)); err != nil {
		return nil, fmt.Errorf("inflating block: %w", err)
	}

	if buf.Len() != uncompressedSize {
		log.Debug("uncompressed size mismatch",
			zap.Int("expected", uncompressedSize), zap.Int("actual", buf.Len()))
		return nil, fmt.Errorf("%w: expected %d uncompressed bytes, got %d",
			ErrSizeMismatch, uncompressedSize, buf.Len())
	}
	return buf.Bytes(), nil
}

// DecodeBlock unwraps an entry payload. The short header is tried first,
// then the extended one; if neither decompresses cleanly the bytes are
// returned unchanged as a raw block.
func DecodeBlock(data []byte) *Block {
	if block, err := decodeShort(data); err == nil {
		log.Debug("block decoded", zap.Stringer("framing", block.Framing), zap.Int("size", len(block.Data)))
		return block
	}
	if block, err := decodeExtended(data); err == nil {
		log.Debug("block decoded", zap.Stringer("framing", block.Framing), zap.Int("size", len(block.Data)))
		return block
	}
	log.Debug("block stored raw", zap.Int("size", len(data)))
	return &Block{Framing: FramingRaw, Data: data}
}

func decodeShort(data []byte) (*Block, error) {
	if len(data) < ShortHeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrTruncated)
	}
	compressed := binary.LittleEndian.Uint32(data[0:])
	uncompressed := binary.LittleEndian.Uint32(data[4:])
	out, err := Decompress(data[ShortHeaderSize:], int(compressed), int(uncompressed))
	if err != nil {
		return nil, err
	}
	return &Block{Framing: FramingShort, Header: data[:ShortHeaderSize], Data: out}, nil
}

func decodeExtended(data []byte) (*Block, error) {
	if len(data) < ExtendedHeaderSize {
		return nil, fmt.Errorf("%w: extended header", ErrTruncated)
	}
	compressed := binary.LittleEndian.Uint32(data[20:])
	uncompressed := binary.LittleEndian.Uint32(data[40:])
	out, err := Decompress(data[ExtendedHeaderSize:], int(compressed), int(uncompressed))
	if err != nil {
		return nil, err
	}
	return &Block{Framing: FramingExtended, Header: data[:ExtendedHeaderSize], Data: out}, nil
}
