package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/formats"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// EntryKind is how an entry was written by a dump.
type EntryKind uint8

// EntryKind constants.
const (
	KindRaw EntryKind = iota
	KindBitmap
	KindSprite
)

// String returns the kind name.
func (k EntryKind) String() string {
	switch k {
	case KindBitmap:
		return "bitmap"
	case KindSprite:
		return "sprite"
	default:
		return "raw"
	}
}

// DumpResult counts the entries written by kind.
type DumpResult struct {
	Bitmaps int
	Sprites int
	Raw     int
	Failed  int
}

// Total returns the number of entries written.
func (r DumpResult) Total() int {
	return r.Bitmaps + r.Sprites + r.Raw
}

func (r *DumpResult) add(kind EntryKind) {
	switch kind {
	case KindBitmap:
		r.Bitmaps++
	case KindSprite:
		r.Sprites++
	default:
		r.Raw++
	}
}

// Dumper writes every entry of an archive to a directory. Each entry is
// tried as a bitmap, then as a sprite, then written as its unframed payload.
type Dumper struct {
	Palettes formats.PaletteSource // nil skips the sprite attempt
	Log      *zap.Logger
}

// DumpArchive writes the entries of src to dir. Failures are logged and
// returned together once every entry has been tried.
func (d *Dumper) DumpArchive(src formats.EntrySource, dir string) (DumpResult, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	var result DumpResult
	if err := os.MkdirAll(dir, 0755); err != nil {
		return result, fmt.Errorf("creating directory: %w", err)
	}

	var errs error
	for _, name := range src.List() {
		kind, err := d.dumpEntry(src, name, dir)
		if err != nil {
			log.Warn("dump failed", zap.String("entry", name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			result.Failed++
			continue
		}
		log.Debug("entry dumped", zap.String("entry", name), zap.Stringer("kind", kind))
		result.add(kind)
	}
	return result, errs
}

func (d *Dumper) dumpEntry(src formats.EntrySource, name, dir string) (EntryKind, error) {
	data, err := src.Get(name)
	if err != nil {
		return KindRaw, err
	}
	base := filepath.Join(dir, safeName(name))

	if img, err := formats.ParseBitmap(data); err == nil {
		return KindBitmap, SavePNG(base+".png", img.NRGBA())
	}
	if d.Palettes != nil {
		if img, err := formats.ParseSprite(data, d.Palettes); err == nil {
			return KindSprite, SavePNG(base+".png", img.NRGBA())
		}
	}

	block := lod.DecodeBlock(data)
	if err := os.WriteFile(base, block.Data, 0644); err != nil {
		return KindRaw, err
	}
	return KindRaw, nil
}

// DumpSet dumps every archive of set into a subdirectory of dir named after
// the archive.
func (d *Dumper) DumpSet(set *lod.Set, dir string) (map[string]DumpResult, error) {
	results := make(map[string]DumpResult)
	var errs error
	for _, name := range set.Names() {
		archive, _ := set.Archive(name)
		result, err := d.DumpArchive(archive, filepath.Join(dir, name))
		results[name] = result
		errs = multierr.Append(errs, err)
	}
	return results, errs
}

// safeName keeps an entry name inside the output directory.
func safeName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_" + name
	}
	return name
}
