package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/Faultbox/mm-lod/pkg/lod"
)

// Image errors.
var (
	ErrZeroPixelSize    = errors.New("zero pixel size: not a bitmap")
	ErrInsufficientData = errors.New("insufficient image data")
	ErrPaletteNotFound  = errors.New("palette not found")
)

const (
	bitmapHeaderSize = 48
	spriteHeaderSize = 32
	spanSize         = 8
	maxSpritePixels  = 1 << 24
)

// PaletteSource looks palettes up by id. *PaletteTable satisfies it.
type PaletteSource interface {
	Get(id uint16) (*Palette, bool)
}

// Image is a palette-indexed raster.
type Image struct {
	Width   int
	Height  int
	Pixels  []byte // Palette indices; bitmaps carry mip levels after the first Width*Height bytes
	Palette Palette

	// Transparent marks indices equal to Pixels[0] as fully transparent.
	Transparent bool
}

// Indices returns the Width*Height indices of the top-level image.
func (img *Image) Indices() []byte {
	return img.Pixels[:img.Width*img.Height]
}

// ColorAt returns the color of the pixel at (x, y).
func (img *Image) ColorAt(x, y int) color.NRGBA {
	idx := img.Pixels[y*img.Width+x]
	c := img.Palette.Color(idx)
	if img.Transparent && idx == img.Pixels[0] {
		c.A = 0
	}
	return c
}

// NRGBA converts the image to non-premultiplied RGBA.
func (img *Image) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			out.SetNRGBA(x, y, img.ColorAt(x, y))
		}
	}
	return out
}

// Paletted returns the top-level image as an *image.Paletted. The
// transparent index, when set, maps to a fully transparent color.
func (img *Image) Paletted() *image.Paletted {
	p := img.Palette.ColorPalette()
	if img.Transparent && len(img.Pixels) > 0 {
		c := p[img.Pixels[0]].(color.NRGBA)
		c.A = 0
		p[img.Pixels[0]] = c
	}
	out := image.NewPaletted(image.Rect(0, 0, img.Width, img.Height), p)
	copy(out.Pix, img.Indices())
	return out
}

// ParseBitmap decodes a bitmap entry: a 48-byte header, a zlib payload and
// a trailing 768-byte palette. Bitmaps are opaque.
func ParseBitmap(data []byte) (*Image, error) {
	if len(data) < bitmapHeaderSize {
		return nil, fmt.Errorf("%w: bitmap header", lod.ErrTruncated)
	}

	r := bytes.NewReader(data[16:])

	var pixelSize, compressedSize uint32
	var width, height uint16
	if err := binary.Read(r, binary.LittleEndian, &pixelSize); err != nil {
		return nil, fmt.Errorf("%w: reading pixel size", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &compressedSize); err != nil {
		return nil, fmt.Errorf("%w: reading compressed size", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("%w: reading width", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("%w: reading height", lod.ErrTruncated)
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[40:])

	if pixelSize == 0 {
		return nil, ErrZeroPixelSize
	}
	if len(data) <= bitmapHeaderSize+PaletteSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInsufficientData, len(data))
	}

	payload := data[bitmapHeaderSize : len(data)-PaletteSize]
	pixels, err := lod.Decompress(payload, int(compressedSize), int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("bitmap pixels: %w", err)
	}
	if len(pixels) < int(width)*int(height) {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrInsufficientData, len(pixels), width, height)
	}

	img := &Image{
		Width:  int(width),
		Height: int(height),
		Pixels: pixels,
	}
	copy(img.Palette[:], data[len(data)-PaletteSize:])
	return img, nil
}

// ParseSprite decodes a sprite entry: a 32-byte header, a per-row span
// table and a zlib payload of the opaque runs. The palette comes from
// palettes by the id stored in the header.
func ParseSprite(data []byte, palettes PaletteSource) (*Image, error) {
	if len(data) < spriteHeaderSize {
		return nil, fmt.Errorf("%w: sprite header", lod.ErrTruncated)
	}

	r := bytes.NewReader(data[12:])

	var compressedSize uint32
	var width, height, paletteID uint16
	if err := binary.Read(r, binary.LittleEndian, &compressedSize); err != nil {
		return nil, fmt.Errorf("%w: reading compressed size", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("%w: reading width", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("%w: reading height", lod.ErrTruncated)
	}
	if err := binary.Read(r, binary.LittleEndian, &paletteID); err != nil {
		return nil, fmt.Errorf("%w: reading palette id", lod.ErrTruncated)
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[28:])

	palette, ok := palettes.Get(paletteID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPaletteNotFound, paletteID)
	}

	tableSize := int(height) * spanSize
	if len(data) <= spriteHeaderSize+tableSize {
		return nil, fmt.Errorf("%w: %d bytes for %d rows", ErrInsufficientData, len(data), height)
	}
	table := data[spriteHeaderSize : spriteHeaderSize+tableSize]
	if width == 0 && height > 0 {
		return nil, fmt.Errorf("%w: zero width with %d rows", ErrInsufficientData, height)
	}
	if int(width)*int(height) > maxSpritePixels {
		return nil, fmt.Errorf("%w: %dx%d sprite", ErrInsufficientData, width, height)
	}

	runs, err := lod.Decompress(data[spriteHeaderSize+tableSize:], int(compressedSize), int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("sprite pixels: %w", err)
	}

	pixels, err := unpackSpans(runs, table, int(width), int(height))
	if err != nil {
		return nil, err
	}

	return &Image{
		Width:       int(width),
		Height:      int(height),
		Pixels:      pixels,
		Palette:     *palette,
		Transparent: true,
	}, nil
}

// unpackSpans rebuilds a sprite from its span table. Each row holds a start
// column, an end column (both inclusive, negative for an empty row) and an
// offset into runs. The write cursor advances by width-1 over an empty row
// and by width over a filled one.
func unpackSpans(runs, table []byte, width, height int) ([]byte, error) {
	pixels := make([]byte, width*height)
	current := 0

	for row := 0; row < height; row++ {
		span := table[row*spanSize:]
		start := int(int16(binary.LittleEndian.Uint16(span[0:])))
		end := int(int16(binary.LittleEndian.Uint16(span[2:])))
		offset := int(binary.LittleEndian.Uint32(span[4:]))

		if start < 0 || end < 0 {
			current += width - 1
			continue
		}

		current += start
		n := end - start + 1
		if n < 0 || current < 0 || current+n > len(pixels) || offset+n > len(runs) {
			return nil, fmt.Errorf("%w: row %d span %d..%d at offset %d", lod.ErrTruncated, row, start, end, offset)
		}
		copy(pixels[current:], runs[offset:offset+n])
		current += width - start
	}
	return pixels, nil
}
