package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mm-lod/pkg/formats"
)

// MapOptions selects what ExportMap writes besides the terrain.
type MapOptions struct {
	Models     bool
	Billboards *formats.BillboardResolver // nil skips billboards
	Log        *zap.Logger
}

// MapFiles lists the files written by ExportMap.
type MapFiles struct {
	Scene      string
	Atlas      string
	Manifest   string   // Billboard manifest; empty when billboards were skipped
	Sprites    []string // Billboard sprite images
	Models     int
	Billboards int
}

// BillboardEntry is one billboard in the manifest.
type BillboardEntry struct {
	Name       string     `yaml:"name"`
	Sprite     string     `yaml:"sprite"`
	Decoration string     `yaml:"decoration"`
	Position   [3]int32   `yaml:"position,flow"`
	Size       [2]float32 `yaml:"size,flow"`
	Direction  int32      `yaml:"direction"`
}

// ExportMap writes the map as a GLB scene plus its tile atlas, and
// optionally the billboard sprites with a YAML manifest. Billboards that
// fail to resolve are logged and returned together once the rest is written.
func ExportMap(dir string, m *formats.ODM, table *formats.TileTable, src formats.AssetSource, opts MapOptions) (*MapFiles, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	base := strings.TrimSuffix(strings.ToLower(filepath.Base(m.Name)), ".odm")
	if base == "" || base == "." {
		base = "map"
	}
	files := &MapFiles{
		Scene: filepath.Join(dir, base+".glb"),
		Atlas: filepath.Join(dir, base+"_atlas.png"),
	}

	atlas, err := table.AtlasImage(src)
	if err != nil {
		return nil, fmt.Errorf("building atlas: %w", err)
	}
	if err := SavePNG(files.Atlas, atlas); err != nil {
		return nil, err
	}

	scene := NewScene(log)
	if err := scene.AddTerrain(formats.NewTerrainMesh(m, table), atlas); err != nil {
		return nil, err
	}
	if opts.Models {
		for i := range m.Models {
			if scene.AddModel(&m.Models[i]) {
				files.Models++
			}
		}
	}
	if err := scene.Save(files.Scene); err != nil {
		return nil, err
	}
	log.Info("map exported", zap.String("map", m.Name), zap.String("scene", files.Scene), zap.Int("models", files.Models))

	if opts.Billboards == nil {
		return files, nil
	}
	return files, exportBillboards(dir, base, m, opts.Billboards, files, log)
}

func exportBillboards(dir, base string, m *formats.ODM, resolver *formats.BillboardResolver, files *MapFiles, log *zap.Logger) error {
	spriteDir := filepath.Join(dir, base+"_sprites")
	written := make(map[string]bool)
	entries := make([]BillboardEntry, 0, len(m.Billboards))

	var errs error
	for _, b := range m.Billboards {
		sprite, err := resolver.Resolve(b)
		if err != nil {
			log.Warn("billboard not resolved", zap.String("billboard", b.Name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("billboard %s: %w", b.Name, err))
			continue
		}

		if !written[sprite.Name] {
			path := filepath.Join(spriteDir, safeName(sprite.Name)+".png")
			if err := SavePNG(path, sprite.Image.NRGBA()); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			written[sprite.Name] = true
			files.Sprites = append(files.Sprites, path)
		}

		w, h := sprite.Dimensions()
		entries = append(entries, BillboardEntry{
			Name:       b.Name,
			Sprite:     sprite.Name,
			Decoration: sprite.Decoration.Name,
			Position:   b.Data.Position,
			Size:       [2]float32{w, h},
			Direction:  int32(b.Data.DirectionDegrees),
		})
	}
	files.Billboards = len(entries)

	out, err := yaml.Marshal(struct {
		Map        string           `yaml:"map"`
		Billboards []BillboardEntry `yaml:"billboards"`
	}{m.Name, entries})
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("encoding manifest: %w", err))
	}
	files.Manifest = filepath.Join(dir, base+"_billboards.yaml")
	if err := os.WriteFile(files.Manifest, out, 0644); err != nil {
		return multierr.Append(errs, fmt.Errorf("writing manifest: %w", err))
	}
	return errs
}
