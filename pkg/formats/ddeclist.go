package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// DecorationListPath locates the decoration list in an archive set.
const DecorationListPath = "icons/ddeclist.bin"

// DecorationBits holds the behavior bits of a decoration.
type DecorationBits uint16

// Decoration bits.
const (
	DecorationNoBlockMovement DecorationBits = 0x0001
	DecorationNoDraw          DecorationBits = 0x0002
	DecorationFlickerSlow     DecorationBits = 0x0004
	DecorationFlickerMedium   DecorationBits = 0x0008
	DecorationFlickerFast     DecorationBits = 0x0010
	DecorationMarker          DecorationBits = 0x0020
	DecorationSlowLoop        DecorationBits = 0x0040
	DecorationEmitFire        DecorationBits = 0x0080
	DecorationSoundOnDawn     DecorationBits = 0x0100
	DecorationSoundOnDusk     DecorationBits = 0x0200
	DecorationEmitSmoke       DecorationBits = 0x0400
)

// Has reports whether all bits of flag are set.
func (b DecorationBits) Has(flag DecorationBits) bool { return b&flag == flag }

// Decoration is one entry of the decoration list. Billboards reference
// decorations by index.
type Decoration struct {
	Name        string
	GameName    string
	Type        uint16
	Height      uint16
	Radius      uint16
	LightRadius uint16
	SFT         uint16 // Frame table index or two-byte group tag
	Bits        DecorationBits
	SoundID     uint16
}

// SFTIndex interprets SFT as an index into the sprite frame table.
func (d *Decoration) SFTIndex() int16 {
	return int16(d.SFT)
}

// SFTGroup interprets SFT as a two-byte group tag.
func (d *Decoration) SFTGroup() [2]byte {
	var g [2]byte
	binary.LittleEndian.PutUint16(g[:], d.SFT)
	return g
}

// decorationRecord is the 80-byte on-disk layout of a Decoration.
type decorationRecord struct {
	Name        [32]byte
	GameName    [32]byte
	Type        uint16
	Height      uint16
	Radius      uint16
	LightRadius uint16
	SFT         uint16
	Bits        uint16
	SoundID     uint16
	_           uint16
}

// DecorationList is the decoded ddeclist.bin.
type DecorationList struct {
	Decorations []Decoration
}

// ParseDecorationList decodes an unframed ddeclist.bin.
func ParseDecorationList(data []byte) (*DecorationList, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading decoration count", lod.ErrTruncated)
	}
	if int64(count)*int64(binary.Size(decorationRecord{})) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d decorations in %d bytes", lod.ErrTruncated, count, r.Len())
	}

	list := &DecorationList{Decorations: make([]Decoration, 0, count)}
	for i := uint32(0); i < count; i++ {
		var rec decorationRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: reading decoration %d", lod.ErrTruncated, i)
		}
		list.Decorations = append(list.Decorations, Decoration{
			Name:        encoding.FixedString(rec.Name[:]),
			GameName:    encoding.FixedString(rec.GameName[:]),
			Type:        rec.Type,
			Height:      rec.Height,
			Radius:      rec.Radius,
			LightRadius: rec.LightRadius,
			SFT:         rec.SFT,
			Bits:        DecorationBits(rec.Bits),
			SoundID:     rec.SoundID,
		})
	}
	return list, nil
}

// LoadDecorationList reads the decoration list from an archive set.
func LoadDecorationList(src AssetSource) (*DecorationList, error) {
	data, err := loadBlock(src, DecorationListPath)
	if err != nil {
		return nil, err
	}
	return ParseDecorationList(data)
}

// Get returns the decoration at index id.
func (l *DecorationList) Get(id int) (*Decoration, bool) {
	if id < 0 || id >= len(l.Decorations) {
		return nil, false
	}
	return &l.Decorations[id], true
}

// Find returns the first decoration with the given name, ignoring case.
func (l *DecorationList) Find(name string) (*Decoration, bool) {
	for i := range l.Decorations {
		if strings.EqualFold(l.Decorations[i].Name, name) {
			return &l.Decorations[i], true
		}
	}
	return nil, false
}
