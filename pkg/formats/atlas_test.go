package formats

import (
	"errors"
	"testing"
)

// keyPalette maps index 1 to the atlas color key and index 2 to red.
func keyPalette() Palette {
	var p Palette
	p[3], p[4], p[5] = 0, 255, 255
	p[6] = 255
	return p
}

func TestBuildAtlas(t *testing.T) {
	p := keyPalette()
	src := memSource{}
	names := []string{"a", "b", "c", "d", "e"}
	for _, name := range names {
		src["bitmaps/"+name] = solidBitmap(AtlasTileSize, AtlasTileSize, 2, p)
	}
	// Tile "c" is all color key
	src["bitmaps/c"] = solidBitmap(AtlasTileSize, AtlasTileSize, 1, p)

	atlas, err := BuildAtlas(src, names, 2)
	if err != nil {
		t.Fatalf("BuildAtlas failed: %v", err)
	}

	if atlas.Bounds().Dx() != 256 || atlas.Bounds().Dy() != 384 {
		t.Fatalf("expected 256x384, got %v", atlas.Bounds())
	}

	// "b" is at column 1, row 0
	if c := atlas.NRGBAAt(200, 10); c.R != 255 || c.A != 255 {
		t.Errorf("expected red at (200,10), got %+v", c)
	}
	// "c" is at column 0, row 1 and keyed out
	if c := atlas.NRGBAAt(10, 200); c.A != 0 {
		t.Errorf("expected transparent at (10,200), got %+v", c)
	}
	// Cell after "e" is unused
	if c := atlas.NRGBAAt(200, 300); c.A != 0 {
		t.Errorf("expected empty cell at (200,300), got %+v", c)
	}
}

func TestBuildAtlas_Resizes(t *testing.T) {
	p := keyPalette()
	src := memSource{"bitmaps/small": solidBitmap(64, 32, 2, p)}

	atlas, err := BuildAtlas(src, []string{"small"}, 1)
	if err != nil {
		t.Fatalf("BuildAtlas failed: %v", err)
	}

	if atlas.Bounds().Dx() != AtlasTileSize || atlas.Bounds().Dy() != AtlasTileSize {
		t.Fatalf("unexpected bounds: %v", atlas.Bounds())
	}
	if c := atlas.NRGBAAt(64, 64); c.R < 250 || c.G > 5 || c.A < 250 {
		t.Errorf("expected resized tile to stay red, got %+v", c)
	}
}

func TestBuildAtlas_Errors(t *testing.T) {
	p := keyPalette()

	t.Run("missing bitmap", func(t *testing.T) {
		_, err := BuildAtlas(memSource{}, []string{"nothere"}, 1)
		if !errors.Is(err, ErrMissingAsset) {
			t.Errorf("expected ErrMissingAsset, got %v", err)
		}
	})

	t.Run("bad bitmap", func(t *testing.T) {
		src := memSource{"bitmaps/bad": make([]byte, 10)}
		_, err := BuildAtlas(src, []string{"bad"}, 1)
		if err == nil || errors.Is(err, ErrMissingAsset) {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("no columns", func(t *testing.T) {
		src := memSource{"bitmaps/a": solidBitmap(4, 4, 2, p)}
		if _, err := BuildAtlas(src, []string{"a"}, 0); err == nil {
			t.Error("expected error for zero columns")
		}
	})
}

func TestBuildAtlas_Empty(t *testing.T) {
	atlas, err := BuildAtlas(memSource{}, nil, 0)
	if err != nil {
		t.Fatalf("BuildAtlas failed: %v", err)
	}
	if !atlas.Bounds().Empty() {
		t.Errorf("expected empty atlas, got %v", atlas.Bounds())
	}
}

func TestTileTable_AtlasImage(t *testing.T) {
	p := keyPalette()
	src := memSource{
		"bitmaps/dirttyl": solidBitmap(AtlasTileSize, AtlasTileSize, 2, p),
		"bitmaps/pending": solidBitmap(AtlasTileSize, AtlasTileSize, 2, p),
	}
	table := NewTileTableFromNames(namesTable("dirttyl", "drrtyl", "pending"))

	atlas, err := table.AtlasImage(src)
	if err != nil {
		t.Fatalf("AtlasImage failed: %v", err)
	}
	if atlas.Bounds().Dx() != 2*AtlasTileSize || atlas.Bounds().Dy() != AtlasTileSize {
		t.Errorf("unexpected bounds: %v", atlas.Bounds())
	}
}
