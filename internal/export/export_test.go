package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/mm-lod/pkg/formats"
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
type memArchive struct {
	names []string
	data  map[string][]byte
}

func newMemArchive() *memArchive {
	return &memArchive{data: make(map[string][]byte)}
}

func (m *memArchive) add(name string, data []byte) {
	m.names = append(m.names, name)
	m.data[name] = data
}

func (m *memArchive) List() []string { return m.names }

func (m *memArchive) Get(name string) ([]byte, error) {
	data, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lod.ErrNotFound, name)
	}
	return data, nil
}

type paletteMap map[uint16]*formats.Palette

func (p paletteMap) Get(id uint16) (*formats.Palette, bool) {
	palette, ok := p[id]
	return palette, ok
}

func compress(data []byte) []byte {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// solidBitmap returns a w x h bitmap filled with index 1, colored c.
func solidBitmap(w, h int, c color.NRGBA) []byte {
	pixels := bytes.Repeat([]byte{1}, w*h)
	z := compress(pixels)

	header := make([]byte, 48)
	binary.LittleEndian.PutUint32(header[16:], uint32(w*h))
	binary.LittleEndian.PutUint32(header[20:], uint32(len(z)))
	binary.LittleEndian.PutUint16(header[24:], uint16(w))
	binary.LittleEndian.PutUint16(header[26:], uint16(h))
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pixels)))

	palette := make([]byte, formats.PaletteSize)
	palette[3], palette[4], palette[5] = c.R, c.G, c.B

	data := append(header, z...)
	return append(data, palette...)
}

// solidSprite returns a w x h sprite whose rows are fully opaque with
// index 1, using palette paletteID.
func solidSprite(w, h int, paletteID uint16) []byte {
	runs := bytes.Repeat([]byte{1}, w*h)
	z := compress(runs)

	buf := new(bytes.Buffer)
	buf.Write(make([]byte, 12))
	binary.Write(buf, binary.LittleEndian, uint32(len(z)))
	binary.Write(buf, binary.LittleEndian, uint16(w))
	binary.Write(buf, binary.LittleEndian, uint16(h))
	binary.Write(buf, binary.LittleEndian, paletteID)
	buf.Write(make([]byte, 6))
	binary.Write(buf, binary.LittleEndian, uint32(len(runs)))

	for row := 0; row < h; row++ {
		binary.Write(buf, binary.LittleEndian, int16(0))
		binary.Write(buf, binary.LittleEndian, int16(w-1))
		binary.Write(buf, binary.LittleEndian, uint32(row*w))
	}
	buf.Write(z)
	return buf.Bytes()
}

// uniformTable returns a tile table whose every slot is name.
func uniformTable(name string) *formats.TileTable {
	var names [formats.TileSlots]string
	for i := range names {
		names[i] = name
	}
	return formats.NewTileTableFromNames(names)
}

// quadModel returns a model with one four-sided face.
func quadModel(name string) formats.BSPModel {
	face := formats.Face{VertexCount: 4}
	face.VertexIDs[0], face.VertexIDs[1], face.VertexIDs[2], face.VertexIDs[3] = 0, 1, 2, 3

	return formats.BSPModel{
		Header:   formats.BSPModelHeader{Name: name},
		Vertices: [][3]float32{{0, 0, 0}, {0, 0, 512}, {512, 0, 512}, {512, 0, 0}},
		Faces:    []formats.Face{face},
	}
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

var colorRed = color.NRGBA{R: 255, A: 255}
