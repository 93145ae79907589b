package formats

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/mm-lod/pkg/lod"
)

// AtlasTileSize is the edge length of an atlas cell in pixels.
const AtlasTileSize = 128

// AtlasColorKey is the color left transparent when compositing tiles.
var AtlasColorKey = color.RGBA{R: 0, G: 255, B: 255, A: 255}

// BuildAtlas loads the bitmap of every name from the "bitmaps" archive and
// lays them out row-major in a grid with the given number of columns.
// Bitmaps that are not AtlasTileSize square are resized. Pixels matching
// AtlasColorKey are left transparent.
func BuildAtlas(src AssetSource, names []string, columns int) (*image.NRGBA, error) {
	if len(names) == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	if columns <= 0 {
		return nil, fmt.Errorf("atlas needs at least one column, got %d", columns)
	}

	rows := (len(names) + columns - 1) / columns
	atlas := image.NewNRGBA(image.Rect(0, 0, columns*AtlasTileSize, rows*AtlasTileSize))

	for i, name := range names {
		tile, err := atlasTile(src, name)
		if err != nil {
			return nil, err
		}

		x := (i % columns) * AtlasTileSize
		y := (i / columns) * AtlasTileSize
		cell := image.Rect(x, y, x+AtlasTileSize, y+AtlasTileSize)
		draw.DrawMask(atlas, cell, tile, image.Point{}, colorKeyMask(tile), image.Point{}, draw.Over)
	}

	log.Debug("atlas built",
		zap.Int("tiles", len(names)), zap.Int("columns", columns), zap.Int("rows", rows))
	return atlas, nil
}

// AtlasImage builds the atlas of the table's unique tile names.
func (t *TileTable) AtlasImage(src AssetSource) (*image.NRGBA, error) {
	return BuildAtlas(src, t.unique, t.columns)
}

func atlasTile(src AssetSource, name string) (image.Image, error) {
	path := "bitmaps/" + name
	data, err := src.Resolve(path)
	if err != nil {
		if errors.Is(err, lod.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingAsset, path, err)
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	bitmap, err := ParseBitmap(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	img := image.Image(bitmap.NRGBA())
	if bitmap.Width != AtlasTileSize || bitmap.Height != AtlasTileSize {
		log.Debug("resizing atlas tile",
			zap.String("name", name), zap.Int("width", bitmap.Width), zap.Int("height", bitmap.Height))
		img = transform.Resize(img, AtlasTileSize, AtlasTileSize, transform.Linear)
	}
	return img, nil
}

// colorKeyMask is opaque everywhere except on pixels matching AtlasColorKey.
func colorKeyMask(img image.Image) *image.Alpha {
	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if c.R == AtlasColorKey.R && c.G == AtlasColorKey.G && c.B == AtlasColorKey.B {
				continue
			}
			mask.SetAlpha(x-b.Min.X, y-b.Min.Y, color.Alpha{A: 255})
		}
	}
	return mask
}
