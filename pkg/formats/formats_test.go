package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/mm-lod/pkg/lod"
)

// memSource is an in-memory archive set keyed by "archive/entry".
type memSource map[string][]byte

func (m memSource) Resolve(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lod.ErrNotFound, path)
	}
	return data, nil
}

// memArchive is an in-memory single archive.
type memArchive map[string][]byte

func (m memArchive) List() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m memArchive) Get(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lod.ErrNotFound, name)
	}
	return data, nil
}

// compress returns a zlib stream of data.
func compress(data []byte) []byte {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// shortBlock frames data with the 8-byte compression header.
func shortBlock(data []byte) []byte {
	z := compress(data)
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(z)))
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(z)
	return buf.Bytes()
}

// fixed returns s NUL-padded to size bytes.
func fixed(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}

// gradientPalette returns a palette where index i is (i, 255-i, i/2).
func gradientPalette() Palette {
	var p Palette
	for i := 0; i < 256; i++ {
		p[i*3] = byte(i)
		p[i*3+1] = byte(255 - i)
		p[i*3+2] = byte(i / 2)
	}
	return p
}

// createTestPalette creates a palette entry: a 48-byte header and the colors.
func createTestPalette(p Palette) []byte {
	data := make([]byte, paletteHeaderSize, paletteEntrySize)
	return append(data, p[:]...)
}

// createTestBitmap creates a bitmap entry holding pixels and palette.
func createTestBitmap(width, height uint16, pixels []byte, p Palette) []byte {
	z := compress(pixels)

	header := make([]byte, bitmapHeaderSize)
	copy(header, "test")
	binary.LittleEndian.PutUint32(header[16:], uint32(width)*uint32(height))
	binary.LittleEndian.PutUint32(header[20:], uint32(len(z)))
	binary.LittleEndian.PutUint16(header[24:], width)
	binary.LittleEndian.PutUint16(header[26:], height)
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pixels)))

	data := append(header, z...)
	return append(data, p[:]...)
}

// solidBitmap creates a bitmap entry filled with a single index.
func solidBitmap(width, height uint16, index byte, p Palette) []byte {
	return createTestBitmap(width, height, bytes.Repeat([]byte{index}, int(width)*int(height)), p)
}

// testSpan is one row of a sprite span table.
type testSpan struct {
	start, end int16
	offset     uint32
}

// createTestSprite creates a sprite entry from a span table and its runs.
func createTestSprite(width, height, paletteID uint16, spans []testSpan, runs []byte) []byte {
	z := compress(runs)

	buf := new(bytes.Buffer)
	buf.Write(fixed("sprite", 12))
	binary.Write(buf, binary.LittleEndian, uint32(len(z)))
	binary.Write(buf, binary.LittleEndian, width)
	binary.Write(buf, binary.LittleEndian, height)
	binary.Write(buf, binary.LittleEndian, paletteID)
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, uint32(len(runs)))
	for _, s := range spans {
		binary.Write(buf, binary.LittleEndian, s.start)
		binary.Write(buf, binary.LittleEndian, s.end)
		binary.Write(buf, binary.LittleEndian, s.offset)
	}
	buf.Write(z)
	return buf.Bytes()
}

// testLodPath returns the game data directory if one is configured.
func testLodPath() string {
	if p := os.Getenv("OMM_LOD_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// openGameData opens the game archives or skips the test.
func openGameData(t *testing.T) *lod.Set {
	t.Helper()
	path := testLodPath()
	if path == "" {
		t.Skip("No LOD data available for testing")
	}
	set, err := lod.OpenSet(path)
	if err != nil {
		t.Fatalf("failed to open archive set: %v", err)
	}
	return set
}
