package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// SpriteFrameTablePath locates the sprite frame table in an archive set.
const SpriteFrameTablePath = "icons/dsft.bin"

// FrameBits holds the flags of a sprite frame.
type FrameBits uint16

// Sprite frame bits.
const (
	FrameNotGroupEnd FrameBits = 0x0001
	FrameLuminous    FrameBits = 0x0002
	FrameGroupStart  FrameBits = 0x0004
	FrameImage1      FrameBits = 0x0010
	FrameCenter      FrameBits = 0x0020
	FrameFidget      FrameBits = 0x0040
	FrameLoaded      FrameBits = 0x0080
	FrameMirror0     FrameBits = 0x0100
	FrameMirror1     FrameBits = 0x0200
	FrameMirror2     FrameBits = 0x0400
	FrameMirror3     FrameBits = 0x0800
	FrameMirror4     FrameBits = 0x1000
	FrameMirror5     FrameBits = 0x2000
	FrameMirror7     FrameBits = 0x4000
	FrameMirror8     FrameBits = 0x8000
)

// Has reports whether all bits of flag are set.
func (b FrameBits) Has(flag FrameBits) bool { return b&flag == flag }

// IsGroupEnd reports whether the frame closes its animation group.
func (b FrameBits) IsGroupEnd() bool { return !b.Has(FrameNotGroupEnd) }

// SpriteFrame is one animation frame of the sprite frame table.
type SpriteFrame struct {
	GroupName    string // Lowercased
	SpriteName   string // Lowercased
	SpriteIndex  [8]int16
	Scale        int32
	Bits         FrameBits
	LightRadius  int16
	PaletteID    int16
	PaletteIndex int16
	Time         int16
	TimeTotal    int16
}

// spriteFrameRecord is the 56-byte on-disk layout of a SpriteFrame.
type spriteFrameRecord struct {
	GroupName    [12]byte
	SpriteName   [12]byte
	SpriteIndex  [8]int16
	Scale        int32
	Bits         uint16
	LightRadius  int16
	PaletteID    int16
	PaletteIndex int16
	Time         int16
	TimeTotal    int16
}

// SpriteFrameTable is the decoded dsft.bin.
type SpriteFrameTable struct {
	Frames []SpriteFrame
	Groups []uint16
}

// ParseSpriteFrameTable decodes an unframed dsft.bin: frame and group
// counts, the frames, then one u16 per group.
func ParseSpriteFrameTable(data []byte) (*SpriteFrameTable, error) {
	r := bytes.NewReader(data)

	var header struct {
		Frames uint32
		Groups uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading frame table header", lod.ErrTruncated)
	}
	need := int64(header.Frames)*int64(binary.Size(spriteFrameRecord{})) + int64(header.Groups)*2
	if need > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d frames and %d groups in %d bytes",
			lod.ErrTruncated, header.Frames, header.Groups, r.Len())
	}

	table := &SpriteFrameTable{
		Frames: make([]SpriteFrame, 0, header.Frames),
		Groups: make([]uint16, header.Groups),
	}
	for i := uint32(0); i < header.Frames; i++ {
		var rec spriteFrameRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: reading frame %d", lod.ErrTruncated, i)
		}
		table.Frames = append(table.Frames, SpriteFrame{
			GroupName:    encoding.FixedName(rec.GroupName[:]),
			SpriteName:   encoding.FixedName(rec.SpriteName[:]),
			SpriteIndex:  rec.SpriteIndex,
			Scale:        rec.Scale,
			Bits:         FrameBits(rec.Bits),
			LightRadius:  rec.LightRadius,
			PaletteID:    rec.PaletteID,
			PaletteIndex: rec.PaletteIndex,
			Time:         rec.Time,
			TimeTotal:    rec.TimeTotal,
		})
	}
	if err := binary.Read(r, binary.LittleEndian, table.Groups); err != nil {
		return nil, fmt.Errorf("%w: reading groups", lod.ErrTruncated)
	}
	return table, nil
}

// LoadSpriteFrameTable reads the sprite frame table from an archive set.
func LoadSpriteFrameTable(src AssetSource) (*SpriteFrameTable, error) {
	data, err := loadBlock(src, SpriteFrameTablePath)
	if err != nil {
		return nil, err
	}
	return ParseSpriteFrameTable(data)
}

// Frame returns the frame at index i.
func (t *SpriteFrameTable) Frame(i int) (*SpriteFrame, bool) {
	if i < 0 || i >= len(t.Frames) {
		return nil, false
	}
	return &t.Frames[i], true
}

// Group returns the frames of the animation group starting at index start.
// A group runs until the first frame without FrameNotGroupEnd.
func (t *SpriteFrameTable) Group(start int) []SpriteFrame {
	if start < 0 || start >= len(t.Frames) {
		return nil
	}
	end := start
	for end < len(t.Frames)-1 && !t.Frames[end].Bits.IsGroupEnd() {
		end++
	}
	return t.Frames[start : end+1]
}
