package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// Outdoor map dimensions.
const (
	MapSize     = 128 // Cells per side
	MapPlaySize = 88  // Cells per side inside the walkable border
	MapArea     = MapSize * MapSize

	TileScale   = 512 // World units per cell
	HeightScale = 32  // World units per height step
)

const (
	odmStringSize   = 32
	odmVersionAt    = 64
	odmRemapAt      = 160
	heightMapOffset = 176
	tileMapOffset   = heightMapOffset + MapArea
	attrMapOffset   = tileMapOffset + MapArea
	odmModelsAt     = attrMapOffset + MapArea
)

// ODM is a decoded outdoor map.
type ODM struct {
	Name          string
	Version       string
	SkyTexture    string
	GroundTexture string
	Remap         RemapVector
	HeightMap     [MapArea]uint8
	TileMap       [MapArea]uint8
	AttributeMap  [MapArea]uint8
	Models        []BSPModel
	Billboards    []Billboard
}

// ParseODM decodes an unframed outdoor map.
func ParseODM(data []byte) (*ODM, error) {
	if len(data) < odmModelsAt {
		return nil, fmt.Errorf("%w: map needs %d bytes before models, got %d", lod.ErrTruncated, odmModelsAt, len(data))
	}

	m := &ODM{
		Version:       encoding.FixedString(data[odmVersionAt : odmVersionAt+odmStringSize]),
		SkyTexture:    encoding.FixedString(data[odmVersionAt+odmStringSize : odmVersionAt+2*odmStringSize]),
		GroundTexture: encoding.FixedString(data[odmVersionAt+2*odmStringSize : odmVersionAt+3*odmStringSize]),
	}
	for i := range m.Remap {
		m.Remap[i] = binary.LittleEndian.Uint16(data[odmRemapAt+2*i:])
	}
	copy(m.HeightMap[:], data[heightMapOffset:])
	copy(m.TileMap[:], data[tileMapOffset:])
	copy(m.AttributeMap[:], data[attrMapOffset:])

	r := bytes.NewReader(data[odmModelsAt:])

	var modelCount uint32
	if err := binary.Read(r, binary.LittleEndian, &modelCount); err != nil {
		return nil, fmt.Errorf("%w: reading model count", lod.ErrTruncated)
	}
	models, err := readBSPModels(r, int(modelCount))
	if err != nil {
		return nil, err
	}
	m.Models = models

	var billboardCount uint32
	if err := binary.Read(r, binary.LittleEndian, &billboardCount); err != nil {
		return nil, fmt.Errorf("%w: reading billboard count", lod.ErrTruncated)
	}
	billboards, err := readBillboards(r, int(billboardCount))
	if err != nil {
		return nil, err
	}
	m.Billboards = billboards

	log.Debug("outdoor map decoded",
		zap.String("version", m.Version),
		zap.Int("models", len(m.Models)),
		zap.Int("billboards", len(m.Billboards)),
		zap.Int("trailing", r.Len()))
	return m, nil
}

// LoadODM reads the outdoor map name from the "games" archive.
func LoadODM(src AssetSource, name string) (*ODM, error) {
	data, err := loadBlock(src, "games/"+name)
	if err != nil {
		return nil, err
	}
	m, err := ParseODM(data)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", name, err)
	}
	m.Name = name
	return m, nil
}

// Size returns the grid size as (width, depth).
func (m *ODM) Size() (width, depth int) {
	return MapSize, MapSize
}

func cellIndex(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= MapSize || y >= MapSize {
		return 0, false
	}
	return y*MapSize + x, true
}

// Height returns the height step of cell (x, y).
func (m *ODM) Height(x, y int) (uint8, bool) {
	i, ok := cellIndex(x, y)
	if !ok {
		return 0, false
	}
	return m.HeightMap[i], true
}

// TileIndex returns the tile slot of cell (x, y).
func (m *ODM) TileIndex(x, y int) (uint8, bool) {
	i, ok := cellIndex(x, y)
	if !ok {
		return 0, false
	}
	return m.TileMap[i], true
}

// Attribute returns the attribute byte of cell (x, y).
func (m *ODM) Attribute(x, y int) (uint8, bool) {
	i, ok := cellIndex(x, y)
	if !ok {
		return 0, false
	}
	return m.AttributeMap[i], true
}

// TileTable builds the tile table of the map from a tile catalog.
func (m *ODM) TileTable(catalog *TileCatalog) (*TileTable, error) {
	return catalog.Table(m.Remap)
}
