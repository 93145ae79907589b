package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

const (
	// TileCatalogPath locates the tile catalog in an archive set.
	TileCatalogPath = "icons/dtile.bin"

	// PendingTile is the placeholder name for tiles without a name.
	PendingTile = "pending"

	// TileSlots is the number of tile indices a map can reference.
	TileSlots = 256

	tileNameSize       = 16
	tileAtlasColumns   = 10
	reservedTilePrefix = "drr"
)

// TileAttributes holds the behavior bits of a tile.
type TileAttributes uint16

// Tile attribute bits.
const (
	TileBurn            TileAttributes = 0x0001
	TileWater           TileAttributes = 0x0002
	TileBlock           TileAttributes = 0x0004
	TileRepulse         TileAttributes = 0x0010
	TileFlat            TileAttributes = 0x0020
	TileWave            TileAttributes = 0x0040
	TileNoDraw          TileAttributes = 0x0080
	TileWaterTransition TileAttributes = 0x0200
	TileTransition      TileAttributes = 0x0400
	TileScrollDown      TileAttributes = 0x0800
	TileScrollUp        TileAttributes = 0x1000
	TileScrollLeft      TileAttributes = 0x2000
	TileScrollRight     TileAttributes = 0x4000
)

// Has reports whether all bits of flag are set.
func (a TileAttributes) Has(flag TileAttributes) bool { return a&flag == flag }

// IsBurn reports whether the tile burns whoever stands on it.
func (a TileAttributes) IsBurn() bool { return a.Has(TileBurn) }

// IsWater reports whether the tile is water.
func (a TileAttributes) IsWater() bool { return a.Has(TileWater) }

// IsBlock reports whether the tile blocks movement.
func (a TileAttributes) IsBlock() bool { return a.Has(TileBlock) }

// IsRepulse reports whether the tile pushes the party away.
func (a TileAttributes) IsRepulse() bool { return a.Has(TileRepulse) }

// IsFlat reports whether the tile is drawn flat.
func (a TileAttributes) IsFlat() bool { return a.Has(TileFlat) }

// IsWave reports whether the tile animates as waves.
func (a TileAttributes) IsWave() bool { return a.Has(TileWave) }

// IsNoDraw reports whether the tile is skipped when drawing.
func (a TileAttributes) IsNoDraw() bool { return a.Has(TileNoDraw) }

// IsWaterTransition reports whether the tile blends water into land.
func (a TileAttributes) IsWaterTransition() bool { return a.Has(TileWaterTransition) }

// IsTransition reports whether the tile blends two terrains.
func (a TileAttributes) IsTransition() bool { return a.Has(TileTransition) }

// IsScrollDown reports whether the texture scrolls down.
func (a TileAttributes) IsScrollDown() bool { return a.Has(TileScrollDown) }

// IsScrollUp reports whether the texture scrolls up.
func (a TileAttributes) IsScrollUp() bool { return a.Has(TileScrollUp) }

// IsScrollLeft reports whether the texture scrolls left.
func (a TileAttributes) IsScrollLeft() bool { return a.Has(TileScrollLeft) }

// IsScrollRight reports whether the texture scrolls right.
func (a TileAttributes) IsScrollRight() bool { return a.Has(TileScrollRight) }

// Tile is one record of the tile catalog.
type Tile struct {
	Name       string // Lowercased; PendingTile when the record has none
	ID         int16
	Bitmap     int16
	TileSet    int16
	Section    int16
	Attributes TileAttributes
}

// tileRecord is the 26-byte on-disk layout of a Tile.
type tileRecord struct {
	Name       [tileNameSize]byte
	ID         int16
	Bitmap     int16
	TileSet    int16
	Section    int16
	Attributes uint16
}

// TileCatalog is the decoded dtile.bin.
type TileCatalog struct {
	Tiles []Tile
}

// ParseTileCatalog decodes an unframed dtile.bin: a u32 count followed by
// 26-byte records.
func ParseTileCatalog(data []byte) (*TileCatalog, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading tile count", lod.ErrTruncated)
	}
	if int64(count)*int64(binary.Size(tileRecord{})) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d tiles in %d bytes", lod.ErrTruncated, count, r.Len())
	}

	catalog := &TileCatalog{Tiles: make([]Tile, 0, count)}
	for i := uint32(0); i < count; i++ {
		var rec tileRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: reading tile %d", lod.ErrTruncated, i)
		}

		name := encoding.FixedName(rec.Name[:])
		if name == "" {
			name = PendingTile
		}
		catalog.Tiles = append(catalog.Tiles, Tile{
			Name:       name,
			ID:         rec.ID,
			Bitmap:     rec.Bitmap,
			TileSet:    rec.TileSet,
			Section:    rec.Section,
			Attributes: TileAttributes(rec.Attributes),
		})
	}
	return catalog, nil
}

// LoadTileCatalog reads the tile catalog from an archive set.
func LoadTileCatalog(src AssetSource) (*TileCatalog, error) {
	data, err := loadBlock(src, TileCatalogPath)
	if err != nil {
		return nil, err
	}
	return ParseTileCatalog(data)
}

// Table builds the tile table of a map from its remap vector.
func (c *TileCatalog) Table(remap RemapVector) (*TileTable, error) {
	return NewTileTable(c, remap, BandResolver{})
}

// RemapVector is the per-map tile set selector stored in the map header.
type RemapVector [8]uint16

// TileResolver maps a tile slot of a map to an index in the tile catalog.
type TileResolver interface {
	Resolve(slot int, remap RemapVector) int
}

// BandResolver maps slots by band: 90-124 from remap[1], 126-160 unchanged,
// 162-196 from remap[5], 198 and above from remap[7]. Every other slot is
// its own catalog index.
type BandResolver struct{}

// Resolve implements TileResolver.
func (BandResolver) Resolve(slot int, remap RemapVector) int {
	switch {
	case slot >= 90 && slot <= 124:
		return slot - 90 + int(remap[1])
	case slot >= 126 && slot <= 160:
		return slot
	case slot >= 162 && slot <= 196:
		return slot - 162 + int(remap[5])
	case slot >= 198:
		return slot - 198 + int(remap[7])
	default:
		return slot
	}
}

// LegacyBandResolver also offsets the water band 126-160 by remap[3].
// Earlier revisions of the table builder used it; its output disagrees
// with the game for maps whose water set is not the default one.
type LegacyBandResolver struct{}

// Resolve implements TileResolver.
func (LegacyBandResolver) Resolve(slot int, remap RemapVector) int {
	if slot >= 126 && slot <= 160 {
		return slot - 126 + int(remap[3])
	}
	return BandResolver{}.Resolve(slot, remap)
}

// TileCoord is a cell of the tile atlas grid.
type TileCoord struct {
	Column int
	Row    int
}

// TileTable maps the 256 tile slots of a map to names and atlas cells.
type TileTable struct {
	names   [TileSlots]string
	unique  []string
	columns int
	rows    int
	coords  [TileSlots]TileCoord
}

// NewTileTable resolves every slot through resolver and builds the table.
func NewTileTable(c *TileCatalog, remap RemapVector, resolver TileResolver) (*TileTable, error) {
	var names [TileSlots]string
	for slot := 0; slot < TileSlots; slot++ {
		index := resolver.Resolve(slot, remap)
		if index < 0 || index >= len(c.Tiles) {
			return nil, fmt.Errorf("%w: tile slot %d maps to index %d of %d", lod.ErrNotFound, slot, index, len(c.Tiles))
		}
		names[slot] = c.Tiles[index].Name
	}
	return NewTileTableFromNames(names), nil
}

// NewTileTableFromNames builds a table from already resolved slot names.
//
// The atlas holds each distinct name once, sorted, with PendingTile last.
// Names with the reserved "drr" prefix get no atlas cell; their slots, like
// any slot whose name has no cell, use the last one.
func NewTileTableFromNames(names [TileSlots]string) *TileTable {
	t := &TileTable{names: names}

	t.unique = make([]string, 0, TileSlots)
	for _, name := range names {
		if !strings.HasPrefix(name, reservedTilePrefix) {
			t.unique = append(t.unique, name)
		}
	}
	slices.SortFunc(t.unique, comparePendingLast)
	t.unique = slices.Compact(t.unique)

	n := len(t.unique)
	if n == 0 {
		return t
	}
	t.columns = min(n, tileAtlasColumns)
	t.rows = (n + tileAtlasColumns - 1) / tileAtlasColumns

	position := make(map[string]int, n)
	for i, name := range t.unique {
		position[name] = i
	}
	for slot, name := range names {
		pos, ok := position[name]
		if !ok {
			pos = n - 1
		}
		t.coords[slot] = TileCoord{Column: pos % t.columns, Row: pos / t.columns}
	}
	return t
}

func comparePendingLast(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == PendingTile:
		return 1
	case b == PendingTile:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// Size returns the atlas grid shape as (columns, rows).
func (t *TileTable) Size() (columns, rows int) {
	return t.columns, t.rows
}

// Name returns the tile name of a slot.
func (t *TileTable) Name(slot uint8) string {
	return t.names[slot]
}

// Coordinate returns the atlas cell of a slot.
func (t *TileTable) Coordinate(slot uint8) TileCoord {
	return t.coords[slot]
}

// Names returns the tile name of every slot.
func (t *TileTable) Names() [TileSlots]string {
	return t.names
}

// UniqueNames returns the atlas names in cell order.
func (t *TileTable) UniqueNames() []string {
	return slices.Clone(t.unique)
}
