package video

import "github.com/valerio/gbplus/gbplus/bit"

const (
	spriteCount       = 40
	maxSpritesPerLine = 10
)

// Sprite represents a single object in OAM (0xFE00-0xFE9F).
type Sprite struct {
	Y         int   // screen position, without the +16 offset
	X         int   // screen position, without the +8 offset
	TileIndex uint8 // tile number, bit 0 ignored for 8x16 sprites
	Flags     uint8 // attribute byte
	OAMIndex  int
	Height    int // 8 or 16, from LCDC bit 2

	PaletteOBP1 bool  // DMG: false = OBP0, true = OBP1
	CGBPalette  uint8 // CGB: object palette 0-7
	VRAMBank    uint8 // CGB: tile data bank
	FlipX       bool
	FlipY       bool
	BehindBG    bool // BG colors 1-3 are drawn over the sprite

	// PixelMask has a bit set for every pixel this sprite won after
	// sprite-to-sprite priority resolution. Bit 7 is the leftmost pixel.
	PixelMask uint8
}

func (s *Sprite) parseFlags() {
	s.CGBPalette = s.Flags & 0x07
	s.VRAMBank = bit.Value(3, s.Flags)
	s.PaletteOBP1 = bit.IsSet(4, s.Flags)
	s.FlipX = bit.IsSet(5, s.Flags)
	s.FlipY = bit.IsSet(6, s.Flags)
	s.BehindBG = bit.IsSet(7, s.Flags)
}

// HasPriorityForPixel reports whether this sprite owns the pixel at pixelX (0-7).
func (s *Sprite) HasPriorityForPixel(pixelX int) bool {
	if pixelX < 0 || pixelX > 7 {
		return false
	}
	return s.PixelMask&(1<<(7-pixelX)) != 0
}

// OAM selects and orders the sprites drawn on each scanline.
type OAM struct {
	data           *[0xA0]uint8
	priorityBuffer SpritePriorityBuffer
	spriteBuffer   [maxSpritesPerLine]Sprite
}

func newOAM(data *[0xA0]uint8) *OAM {
	return &OAM{data: data}
}

func (o *OAM) readSprite(index, height int) Sprite {
	base := index * 4
	sprite := Sprite{
		Y:         int(o.data[base]) - 16,
		X:         int(o.data[base+1]) - 8,
		TileIndex: o.data[base+2],
		Flags:     o.data[base+3],
		OAMIndex:  index,
		Height:    height,
	}
	sprite.parseFlags()
	return sprite
}

// SpritesForScanline returns up to 10 sprites overlapping the scanline, in
// OAM order, with pixel ownership already resolved.
//
// On DMG the sprite with the lower X wins a pixel and ties go to the lower
// OAM index. On CGB only the OAM index matters.
func (o *OAM) SpritesForScanline(scanline, height int, oamOrder bool) []Sprite {
	sprites := o.spriteBuffer[:0]
	o.priorityBuffer.Clear()

	for i := range spriteCount {
		y := int(o.data[i*4]) - 16
		if scanline < y || scanline >= y+height {
			continue
		}

		sprite := o.readSprite(i, height)
		sprites = append(sprites, sprite)

		priorityX := sprite.X
		if oamOrder {
			priorityX = 0
		}
		for pixelX := range 8 {
			o.priorityBuffer.TryClaimPixel(sprite.X+pixelX, sprite.OAMIndex, priorityX)
		}

		if len(sprites) >= maxSpritesPerLine {
			break
		}
	}

	for i := range sprites {
		var mask uint8
		for pixelX := range 8 {
			if o.priorityBuffer.GetOwner(sprites[i].X+pixelX) == sprites[i].OAMIndex {
				mask |= 1 << (7 - pixelX)
			}
		}
		sprites[i].PixelMask = mask
	}

	return sprites
}

// AllSprites returns the 40 OAM entries decoded, for debugging front ends.
func (o *OAM) AllSprites(height int) []Sprite {
	result := make([]Sprite, spriteCount)
	for i := range spriteCount {
		result[i] = o.readSprite(i, height)
	}
	return result
}
