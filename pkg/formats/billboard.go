package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

// PendingSprite is the placeholder sprite for billboards without one.
const PendingSprite = "pending"

const (
	billboardDataSize = 28
	billboardNameSize = 32
)

// BillboardAttributes holds the trigger and display bits of a billboard.
type BillboardAttributes uint16

// Billboard attribute bits.
const (
	BillboardTriggeredByTouch   BillboardAttributes = 0x0001
	BillboardTriggeredByMonster BillboardAttributes = 0x0002
	BillboardTriggeredByObject  BillboardAttributes = 0x0004
	BillboardShownOnMap         BillboardAttributes = 0x0010
	BillboardChest              BillboardAttributes = 0x0020
	BillboardInvisible          BillboardAttributes = 0x0040
	BillboardShip               BillboardAttributes = 0x0080
)

// Has reports whether all bits of flag are set.
func (a BillboardAttributes) Has(flag BillboardAttributes) bool { return a&flag == flag }

// IsTriggeredByTouch reports whether touching the billboard fires its event.
func (a BillboardAttributes) IsTriggeredByTouch() bool { return a.Has(BillboardTriggeredByTouch) }

// IsTriggeredByMonster reports whether monsters fire its event.
func (a BillboardAttributes) IsTriggeredByMonster() bool { return a.Has(BillboardTriggeredByMonster) }

// IsTriggeredByObject reports whether objects fire its event.
func (a BillboardAttributes) IsTriggeredByObject() bool { return a.Has(BillboardTriggeredByObject) }

// IsShownOnMap reports whether the billboard appears on the map screen.
func (a BillboardAttributes) IsShownOnMap() bool { return a.Has(BillboardShownOnMap) }

// IsChest reports whether the billboard is a chest.
func (a BillboardAttributes) IsChest() bool { return a.Has(BillboardChest) }

// IsInvisible reports whether the billboard is hidden.
func (a BillboardAttributes) IsInvisible() bool { return a.Has(BillboardInvisible) }

// IsShip reports whether the billboard is a ship.
func (a BillboardAttributes) IsShip() bool { return a.Has(BillboardShip) }

// BillboardData is the 28-byte placement record of a billboard.
type BillboardData struct {
	DecorationID     uint16
	Attributes       BillboardAttributes
	Position         [3]int32
	Direction        int32
	EventVariable    int16
	Event            int16
	TriggerRadius    int16
	DirectionDegrees int16
}

// Billboard is a decoration placed on an outdoor map.
type Billboard struct {
	Name string // Lowercased decoration name stored with the map
	Data BillboardData
}

// readBillboards reads count placement records followed by count names.
func readBillboards(r *bytes.Reader, count int) ([]Billboard, error) {
	if int64(count)*(billboardDataSize+billboardNameSize) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d billboards in %d bytes", lod.ErrTruncated, count, r.Len())
	}

	data := make([]BillboardData, count)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("%w: billboard data: %v", lod.ErrTruncated, err)
	}

	billboards := make([]Billboard, count)
	name := make([]byte, billboardNameSize)
	for i := range billboards {
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: billboard name %d: %v", lod.ErrTruncated, i, err)
		}
		billboards[i] = Billboard{Name: encoding.FixedName(name), Data: data[i]}
	}
	return billboards, nil
}

// SpriteSource loads sprites by name.
type SpriteSource interface {
	Sprite(name string) (*Image, error)
}

// SpriteLoader reads sprites from the "sprites" archive of a set.
type SpriteLoader struct {
	Source   AssetSource
	Palettes PaletteSource
}

// Sprite implements SpriteSource.
func (l SpriteLoader) Sprite(name string) (*Image, error) {
	data, err := l.Source.Resolve("sprites/" + name)
	if err != nil {
		return nil, err
	}
	return ParseSprite(data, l.Palettes)
}

// BillboardSprite is the image chosen for a billboard.
type BillboardSprite struct {
	Name       string // Sprite name that resolved
	Image      *Image
	Decoration Decoration
	Frame      SpriteFrame
}

// Dimensions returns the world size of the sprite. The height is the image
// height and the width follows the image aspect ratio.
func (s *BillboardSprite) Dimensions() (width, height float32) {
	if s.Image.Height == 0 {
		return 0, 0
	}
	height = float32(s.Image.Height)
	width = height * float32(s.Image.Width) / float32(s.Image.Height)
	return width, height
}

// BillboardResolver picks sprites for billboards through the decoration
// list and the sprite frame table.
type BillboardResolver struct {
	decorations *DecorationList
	frames      *SpriteFrameTable
	sprites     SpriteSource
}

// NewBillboardResolver creates a resolver.
func NewBillboardResolver(decorations *DecorationList, frames *SpriteFrameTable, sprites SpriteSource) *BillboardResolver {
	return &BillboardResolver{decorations: decorations, frames: frames, sprites: sprites}
}

// Resolve finds the sprite of a billboard. The decoration name is tried
// first, then the sprite name of its frame, then the billboard's own name.
// When none loads, PendingSprite is used.
func (r *BillboardResolver) Resolve(b Billboard) (*BillboardSprite, error) {
	decoration, ok := r.decorations.Get(int(b.Data.DecorationID))
	if !ok {
		return nil, fmt.Errorf("%w: decoration %d for billboard %q", lod.ErrNotFound, b.Data.DecorationID, b.Name)
	}
	frame, ok := r.frames.Frame(int(decoration.SFTIndex()))
	if !ok {
		return nil, fmt.Errorf("%w: sprite frame %d for decoration %q", lod.ErrNotFound, decoration.SFTIndex(), decoration.Name)
	}

	sprite := &BillboardSprite{Decoration: *decoration, Frame: *frame}
	for _, name := range []string{decoration.Name, frame.SpriteName, b.Name} {
		if name == "" {
			continue
		}
		img, err := r.sprites.Sprite(name)
		if err != nil {
			log.Debug("billboard sprite candidate failed", zap.String("name", name), zap.Error(err))
			continue
		}
		sprite.Name, sprite.Image = name, img
		return sprite, nil
	}

	log.Debug("billboard sprite not found, using placeholder",
		zap.Int16("sft", decoration.SFTIndex()),
		zap.String("decoration", decoration.Name),
		zap.String("game_name", decoration.GameName),
		zap.String("group", frame.GroupName),
		zap.String("sprite", frame.SpriteName))

	img, err := r.sprites.Sprite(PendingSprite)
	if err != nil {
		return nil, fmt.Errorf("%w: sprite for billboard %q: %w", ErrMissingAsset, b.Name, err)
	}
	sprite.Name, sprite.Image = PendingSprite, img
	return sprite, nil
}
