package formats

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Palette errors.
var (
	ErrMalformedPalette = errors.New("malformed palette: expected 816 bytes")
	ErrInvalidID        = errors.New("invalid palette id")
)

const (
	paletteHeaderSize = 48
	// PaletteSize is the size of 256 RGB triples.
	PaletteSize       = 256 * 3
	paletteEntrySize  = paletteHeaderSize + PaletteSize
	paletteNamePrefix = "pal"
	paletteNameLen    = 6
)

// Palette holds 256 RGB triples.
type Palette [PaletteSize]byte

// Color returns the opaque color at index i.
func (p *Palette) Color(i uint8) color.NRGBA {
	o := int(i) * 3
	return color.NRGBA{R: p[o], G: p[o+1], B: p[o+2], A: 255}
}

// ColorPalette returns the palette as a color.Palette of opaque colors.
func (p *Palette) ColorPalette() color.Palette {
	out := make(color.Palette, 256)
	for i := range out {
		out[i] = p.Color(uint8(i))
	}
	return out
}

// ParsePalette parses a palette entry: a 48-byte header followed by the colors.
func ParsePalette(data []byte) (*Palette, error) {
	if len(data) != paletteEntrySize {
		return nil, fmt.Errorf("%w: got %d", ErrMalformedPalette, len(data))
	}
	var p Palette
	copy(p[:], data[paletteHeaderSize:])
	return &p, nil
}

// PaletteTable maps palette ids to palettes.
type PaletteTable struct {
	palettes map[uint16]*Palette
}

// NewPaletteTable collects every palette entry in src. Palette entries are
// named "pal" plus a three-digit id, compared case-insensitively.
func NewPaletteTable(src EntrySource) (*PaletteTable, error) {
	t := &PaletteTable{palettes: make(map[uint16]*Palette)}

	for _, name := range src.List() {
		if !IsPaletteName(name) {
			continue
		}
		data, err := src.Get(name)
		if err != nil {
			return nil, fmt.Errorf("reading palette %s: %w", name, err)
		}
		p, err := ParsePalette(data)
		if err != nil {
			return nil, fmt.Errorf("palette %s: %w", name, err)
		}
		id, err := paletteID(name)
		if err != nil {
			return nil, err
		}
		t.palettes[id] = p
	}

	log.Debug("palettes loaded", zap.Int("count", len(t.palettes)))
	return t, nil
}

// IsPaletteName reports whether an entry name denotes a palette.
func IsPaletteName(name string) bool {
	return len(name) == paletteNameLen && strings.EqualFold(name[:len(paletteNamePrefix)], paletteNamePrefix)
}

func paletteID(name string) (uint16, error) {
	id, err := strconv.ParseUint(name[len(name)-3:], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidID, name)
	}
	return uint16(id), nil
}

// Get returns the palette with the given id.
func (t *PaletteTable) Get(id uint16) (*Palette, bool) {
	p, ok := t.palettes[id]
	return p, ok
}

// Len returns the number of palettes.
func (t *PaletteTable) Len() int {
	return len(t.palettes)
}

// IDs returns the palette ids, sorted.
func (t *PaletteTable) IDs() []uint16 {
	ids := make([]uint16, 0, len(t.palettes))
	for id := range t.palettes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
