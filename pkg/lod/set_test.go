package lod

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSet(t *testing.T) {
	dir := t.TempDir()

	if _, err := writeLOD(dir, "BITMAPS.LOD", buildLOD("GameMMVI", "bitmaps", []testFile{
		{"grastyl", []byte("grass")},
		{"pending", []byte("placeholder")},
	})); err != nil {
		t.Fatalf("failed to write bitmaps: %v", err)
	}
	if _, err := writeLOD(dir, "icons.lod", buildLOD("GameMMVI", "icons", []testFile{
		{"dtile.bin", []byte("tiles")},
	})); err != nil {
		t.Fatalf("failed to write icons: %v", err)
	}
	// Not an archive, must be ignored
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("failed to write readme: %v", err)
	}

	set, err := OpenSet(dir)
	if err != nil {
		t.Fatalf("OpenSet failed: %v", err)
	}

	names := set.Names()
	if len(names) != 2 || names[0] != "bitmaps" || names[1] != "icons" {
		t.Errorf("unexpected archive names %v", names)
	}

	data, err := set.Resolve("bitmaps/grastyl")
	if err != nil || string(data) != "grass" {
		t.Errorf("Resolve(bitmaps/grastyl) = %q, %v", data, err)
	}

	data, err = set.Resolve(`ICONS\DTile.bin`)
	if err != nil || string(data) != "tiles" {
		t.Errorf("Resolve with backslash = %q, %v", data, err)
	}
}

func TestSet_ResolveNotFound(t *testing.T) {
	set := NewSet()
	archive, err := openTestArchive("games", []testFile{{"oute3.odm", []byte("map")}})
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}
	set.Add("games.lod", archive)

	tests := []string{
		"games/outa1.odm", // missing entry
		"sprites/gob",     // missing archive
		"oute3.odm",       // no archive part
		"games/",
	}
	for _, path := range tests {
		if _, err := set.Resolve(path); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q): expected ErrNotFound, got %v", path, err)
		}
	}

	if _, ok := set.Archive("GAMES"); !ok {
		t.Error("expected case-insensitive archive lookup")
	}
}

func TestOpenSet_BadArchive(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.lod"), []byte("nope"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := OpenSet(dir); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}
