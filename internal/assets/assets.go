// Package assets loads decoded game assets from an archive set and caches
// the expensive ones.
package assets

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/internal/config"
	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/formats"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// PaletteArchive holds the palettes used by sprites.
const PaletteArchive = "bitmaps"

// Options configures a Manager.
type Options struct {
	Cache       bool
	MaxCost     int64 // Bytes of decoded pixels kept in the cache
	NumCounters int64
	Resolver    formats.TileResolver
	Logger      *zap.Logger
}

// DefaultOptions returns options with caching enabled and the band resolver.
func DefaultOptions() Options {
	return Options{
		Cache:       true,
		MaxCost:     256 << 20,
		NumCounters: 100_000,
		Resolver:    formats.BandResolver{},
	}
}

// OptionsFromConfig maps the tool configuration to manager options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	opts.Cache = cfg.Cache.Enabled
	if cfg.Cache.MaxCostMB > 0 {
		opts.MaxCost = cfg.Cache.MaxCostMB << 20
	}
	if cfg.Cache.NumCounters > 0 {
		opts.NumCounters = cfg.Cache.NumCounters
	}

	resolver, err := ParseResolver(cfg.Export.TileResolver)
	if err != nil {
		return Options{}, err
	}
	opts.Resolver = resolver
	return opts, nil
}

// ParseResolver returns the tile resolver with the given name.
func ParseResolver(name string) (formats.TileResolver, error) {
	switch strings.ToLower(name) {
	case "", "band":
		return formats.BandResolver{}, nil
	case "legacy":
		return formats.LegacyBandResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown tile resolver %q", name)
	}
}

// Manager handles asset loading from an archive set.
type Manager struct {
	set  *lod.Set
	opts Options
	log  *zap.Logger

	images *ristretto.Cache[string, *formats.Image]
	tables *ristretto.Cache[uint64, *formats.TileTable]

	mu          sync.Mutex
	palettes    *formats.PaletteTable
	catalog     *formats.TileCatalog
	decorations *formats.DecorationList
	frames      *formats.SpriteFrameTable
}

// Open opens every archive in dir and wraps them in a Manager.
func Open(dir string, opts Options) (*Manager, error) {
	set, err := lod.OpenSet(dir)
	if err != nil {
		return nil, err
	}
	return NewManager(set, opts)
}

// NewManager creates a manager over set.
func NewManager(set *lod.Set, opts Options) (*Manager, error) {
	if opts.Resolver == nil {
		opts.Resolver = formats.BandResolver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &Manager{set: set, opts: opts, log: opts.Logger}
	if !opts.Cache {
		return m, nil
	}

	images, err := ristretto.NewCache(&ristretto.Config[string, *formats.Image]{
		NumCounters:        opts.NumCounters,
		MaxCost:            opts.MaxCost,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}
	tables, err := ristretto.NewCache(&ristretto.Config[uint64, *formats.TileTable]{
		NumCounters:        1_000,
		MaxCost:            100,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		images.Close()
		return nil, fmt.Errorf("creating tile table cache: %w", err)
	}

	m.images, m.tables = images, tables
	return m, nil
}

// Set returns the underlying archive set.
func (m *Manager) Set() *lod.Set {
	return m.set
}

// Resolve reads the raw bytes of "archive/entry".
func (m *Manager) Resolve(path string) ([]byte, error) {
	return m.set.Resolve(path)
}

// Palettes returns the palette table of the palette archive.
func (m *Manager) Palettes() (*formats.PaletteTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.palettes != nil {
		return m.palettes, nil
	}
	archive, ok := m.set.Archive(PaletteArchive)
	if !ok {
		return nil, fmt.Errorf("%w: archive %s", lod.ErrNotFound, PaletteArchive)
	}
	palettes, err := formats.NewPaletteTable(archive)
	if err != nil {
		return nil, err
	}
	m.palettes = palettes
	return palettes, nil
}

// Bitmap decodes a bitmap from the bitmaps archive.
func (m *Manager) Bitmap(name string) (*formats.Image, error) {
	return m.image("bitmaps/"+name, func(data []byte) (*formats.Image, error) {
		return formats.ParseBitmap(data)
	})
}

// Sprite decodes a sprite from the sprites archive.
func (m *Manager) Sprite(name string) (*formats.Image, error) {
	palettes, err := m.Palettes()
	if err != nil {
		return nil, err
	}
	return m.image("sprites/"+name, func(data []byte) (*formats.Image, error) {
		return formats.ParseSprite(data, palettes)
	})
}

func (m *Manager) image(path string, decode func([]byte) (*formats.Image, error)) (*formats.Image, error) {
	key := encoding.NormalizeName(path)
	if m.images != nil {
		if img, ok := m.images.Get(key); ok {
			return img, nil
		}
	}

	data, err := m.set.Resolve(key)
	if err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}

	if m.images != nil {
		m.images.Set(key, img, int64(len(img.Pixels)+formats.PaletteSize))
		m.images.Wait()
	}
	return img, nil
}

// TileCatalog returns the tile catalog.
func (m *Manager) TileCatalog() (*formats.TileCatalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog == nil {
		catalog, err := formats.LoadTileCatalog(m.set)
		if err != nil {
			return nil, err
		}
		m.catalog = catalog
	}
	return m.catalog, nil
}

// TileTable returns the tile table for a remap vector. Maps sharing a
// remap vector share the table.
func (m *Manager) TileTable(remap formats.RemapVector) (*formats.TileTable, error) {
	key := remapKey(remap)
	if m.tables != nil {
		if table, ok := m.tables.Get(key); ok {
			return table, nil
		}
	}

	catalog, err := m.TileCatalog()
	if err != nil {
		return nil, err
	}
	table, err := formats.NewTileTable(catalog, remap, m.opts.Resolver)
	if err != nil {
		return nil, err
	}

	if m.tables != nil {
		m.tables.Set(key, table, 1)
		m.tables.Wait()
	}
	return table, nil
}

func remapKey(remap formats.RemapVector) uint64 {
	var b [16]byte
	for i, v := range remap {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return xxhash.Sum64(b[:])
}

// Map loads an outdoor map from the games archive.
func (m *Manager) Map(name string) (*formats.ODM, error) {
	odm, err := formats.LoadODM(m.set, name)
	if err != nil {
		return nil, err
	}
	m.log.Debug("map loaded", zap.String("map", name),
		zap.Int("models", len(odm.Models)), zap.Int("billboards", len(odm.Billboards)))
	return odm, nil
}

// MapTileTable returns the tile table of a loaded map.
func (m *Manager) MapTileTable(odm *formats.ODM) (*formats.TileTable, error) {
	return m.TileTable(odm.Remap)
}

// BillboardResolver returns a resolver that loads sprites through m.
func (m *Manager) BillboardResolver() (*formats.BillboardResolver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decorations == nil {
		decorations, err := formats.LoadDecorationList(m.set)
		if err != nil {
			return nil, err
		}
		m.decorations = decorations
	}
	if m.frames == nil {
		frames, err := formats.LoadSpriteFrameTable(m.set)
		if err != nil {
			return nil, err
		}
		m.frames = frames
	}
	return formats.NewBillboardResolver(m.decorations, m.frames, m), nil
}

// Stats holds cache statistics.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Stats returns image and tile table cache statistics combined.
func (m *Manager) Stats() Stats {
	var s Stats
	if m.images != nil {
		s.Hits += m.images.Metrics.Hits()
		s.Misses += m.images.Metrics.Misses()
	}
	if m.tables != nil {
		s.Hits += m.tables.Metrics.Hits()
		s.Misses += m.tables.Metrics.Misses()
	}
	return s
}

// Close releases the caches.
func (m *Manager) Close() {
	if m.images != nil {
		m.images.Close()
	}
	if m.tables != nil {
		m.tables.Close()
	}
}
