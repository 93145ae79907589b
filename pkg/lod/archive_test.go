package lod

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenReader_Synthetic(t *testing.T) {
	files := []testFile{
		{"GrasTyl", bytes.Repeat([]byte{1}, 100)},
		{"pal001", bytes.Repeat([]byte{2}, 816)},
		{"empty", nil},
	}
	archive, err := OpenReader(bytes.NewReader(buildLOD("GameMMVI", "bitmaps", files)))
	if err != nil {
		t.Fatalf("failed to open synthetic LOD: %v", err)
	}

	if archive.Version() != VersionMM6 {
		t.Errorf("expected MM6, got %s", archive.Version())
	}

	// Master record is kept alongside the entries
	if archive.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", archive.Len())
	}

	want := []string{"bitmaps", "empty", "grastyl", "pal001"}
	got := archive.List()
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("List() = %v, want %v", got, want)
		}
	}

	for _, f := range files {
		data, err := archive.Get(f.name)
		if err != nil {
			t.Errorf("Get(%s): %v", f.name, err)
			continue
		}
		if !bytes.Equal(data, f.data) {
			t.Errorf("Get(%s) returned %d bytes, want %d", f.name, len(data), len(f.data))
		}
	}

	if !archive.Contains("GRASTYL") {
		t.Error("expected case-insensitive Contains")
	}

	entries := archive.Entries()
	if entries[0].Name != "bitmaps" || entries[0].Offset != directoryOffset+recordSize {
		t.Errorf("unexpected master record %+v", entries[0])
	}
	if entries[1].Offset != directoryOffset+recordSize+3*recordSize {
		t.Errorf("expected first entry right after the table, got offset %d", entries[1].Offset)
	}
}

func TestOpenReader_NotFound(t *testing.T) {
	archive, err := OpenReader(bytes.NewReader(buildLOD("MMVII", "icons", []testFile{{"dtile.bin", []byte("x")}})))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := archive.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenReader_InvalidMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"wrong magic", append([]byte("LOX\x00GameMMVI\x00"), make([]byte, 300)...)},
		// Shorter than the directory offset: the directory is never reached
		{"tiny file", []byte("PK\x03\x04")},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenReader(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestOpenReader_UnsupportedVersion(t *testing.T) {
	data := buildLOD("GameMMIX", "bitmaps", nil)
	_, err := OpenReader(bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestOpenReader_Truncated(t *testing.T) {
	data := buildLOD("MMVIII", "games", []testFile{{"oute3.odm", bytes.Repeat([]byte{7}, 64)}})

	tests := []struct {
		name string
		data []byte
	}{
		{"payload cut", data[:len(data)-10]},
		{"directory cut", data[:directoryOffset+recordSize+4]},
		{"header cut", data[:100]},
		{"count past end", oversizedDirectory()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenReader(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("expected ErrTruncated, got %v", err)
			}
		})
	}
}

// oversizedDirectory builds an archive whose master record claims far more
// entries than the file holds.
func oversizedDirectory() []byte {
	data := make([]byte, directoryOffset+recordSize)
	copy(data, "LOD\x00GameMMVI\x00")
	master := data[directoryOffset:]
	copy(master, "icons")
	binary.LittleEndian.PutUint32(master[16:], directoryOffset+recordSize)
	binary.LittleEndian.PutUint32(master[28:], 0x7fffffff)
	return data
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		token string
		want  Version
		err   bool
	}{
		{"GameMMVI", VersionMM6, false},
		{"MMVI", VersionMM6, false},
		{"GameMMVII", VersionMM7, false},
		{"MMVII", VersionMM7, false},
		{"GameMMVIII", VersionMM8, false},
		{"MMVIII", VersionMM8, false},
		{"mmvi", VersionUnknown, true},
		{"", VersionUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseVersion(tt.token)
			if (err != nil) != tt.err {
				t.Fatalf("ParseVersion(%q) error = %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %s, want %s", tt.token, got, tt.want)
			}
		})
	}
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	path, err := writeLOD(dir, "BITMAPS.LOD", buildLOD("GameMMVI", "bitmaps", []testFile{{"grastyl", []byte("tile")}}))
	if err != nil {
		t.Fatalf("failed to write test LOD: %v", err)
	}

	archive, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	data, err := archive.Get("grastyl")
	if err != nil || string(data) != "tile" {
		t.Errorf("Get(grastyl) = %q, %v", data, err)
	}

	if _, err := Open(filepath.Join(dir, "missing.lod")); !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO for missing file, got %v", err)
	}
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

func TestOpenSet_GameData(t *testing.T) {
	path := testLodPath()
	if path == "" {
		t.Skip("No LOD data available for testing")
	}

	set, err := OpenSet(path)
	if err != nil {
		t.Fatalf("failed to open archive set: %v", err)
	}
	t.Logf("Archives: %v", set.Names())

	data, err := set.Resolve("bitmaps/grastyl")
	if err != nil {
		t.Fatalf("failed to resolve bitmaps/grastyl: %v", err)
	}
	if len(data) != 17676 {
		t.Errorf("expected 17676 bytes, got %d", len(data))
	}
}
