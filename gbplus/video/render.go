package video

import (
	"image/color"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
)

var white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// bgAttributes is the CGB tile attribute byte stored in VRAM bank 1 at the
// same offset as the tile number.
type bgAttributes uint8

func (a bgAttributes) palette() uint8 { return uint8(a) & 0x07 }
func (a bgAttributes) bank() uint8    { return bit.Value(3, uint8(a)) }
func (a bgAttributes) flipX() bool    { return bit.IsSet(5, uint8(a)) }
func (a bgAttributes) flipY() bool    { return bit.IsSet(6, uint8(a)) }
func (a bgAttributes) priority() bool { return bit.IsSet(7, uint8(a)) }

func (p *PPU) renderScanline() {
	line := int(p.ly)
	if line >= visibleLines {
		return
	}

	p.renderBackground(line)
	p.renderWindow(line)
	if bit.IsSet(spriteDisplayEnable, p.lcdc) {
		p.renderSprites(line)
	}
}

// tileRow fetches one row of the tile referenced by tileNumber, honoring the
// LCDC addressing mode used by background and window.
func (p *PPU) tileRow(tileNumber uint8, row int, bank uint8) TileRow {
	var offset int
	if bit.IsSet(bgWindowTileDataSelect, p.lcdc) {
		offset = int(addr.TileData0-addr.VRAMStart) + int(tileNumber)*16
	} else {
		offset = int(addr.TileData2-addr.VRAMStart) + int(int8(tileNumber))*16
	}
	offset += row * 2
	return TileRow{Low: p.vram[bank][offset], High: p.vram[bank][offset+1]}
}

func (p *PPU) bgColor(attr bgAttributes, index uint8) color.RGBA {
	if p.cgb {
		return p.bgColors.color(attr.palette(), index)
	}
	return p.palette.Colors[shade(p.bgp, index)]
}

// renderMapPixel draws screen pixel x from tile map position (mapX, mapY).
func (p *PPU) renderMapPixel(x, mapX, mapY int, mapBase uint16) {
	mapOffset := int(mapBase-addr.VRAMStart) + (mapY/8)*32 + mapX/8
	tileNumber := p.vram[0][mapOffset]

	var attr bgAttributes
	if p.cgb {
		attr = bgAttributes(p.vram[1][mapOffset])
	}

	row := mapY % 8
	if attr.flipY() {
		row = 7 - row
	}
	index := p.tileRow(tileNumber, row, attr.bank()).Pixel(mapX%8, attr.flipX())

	p.lineColor[x] = index
	p.linePriority[x] = attr.priority()
	p.back.SetPixel(x, int(p.ly), p.bgColor(attr, index))
}

func (p *PPU) renderBackground(line int) {
	// on DMG LCDC bit 0 blanks background and window; on CGB it only drops
	// their priority over sprites
	if !p.cgb && !bit.IsSet(bgDisplay, p.lcdc) {
		blank := p.palette.Colors[shade(p.bgp, 0)]
		for x := range Width {
			p.lineColor[x] = 0
			p.linePriority[x] = false
			p.back.SetPixel(x, line, blank)
		}
		return
	}

	mapBase := addr.TileMap0
	if bit.IsSet(bgTileMapDisplaySelect, p.lcdc) {
		mapBase = addr.TileMap1
	}

	mapY := (line + int(p.scy)) & 0xFF
	for x := range Width {
		mapX := (x + int(p.scx)) & 0xFF
		p.renderMapPixel(x, mapX, mapY, mapBase)
	}
}

func (p *PPU) renderWindow(line int) {
	if !bit.IsSet(windowDisplayEnable, p.lcdc) || line < int(p.wy) || p.wx > 166 {
		return
	}
	if !p.cgb && !bit.IsSet(bgDisplay, p.lcdc) {
		return
	}

	mapBase := addr.TileMap0
	if bit.IsSet(windowTileMapSelect, p.lcdc) {
		mapBase = addr.TileMap1
	}

	start := int(p.wx) - 7
	for x := max(start, 0); x < Width; x++ {
		p.renderMapPixel(x, x-start, p.windowLine, mapBase)
	}
	// the window keeps its own line counter, only advanced on lines it is drawn
	p.windowLine++
}

func (p *PPU) renderSprites(line int) {
	height := 8
	if bit.IsSet(spriteSize, p.lcdc) {
		height = 16
	}

	masterPriority := !p.cgb || bit.IsSet(bgDisplay, p.lcdc)

	for _, sprite := range p.oam.SpritesForScanline(line, height, p.cgb) {
		if sprite.PixelMask == 0 {
			continue
		}

		row := line - sprite.Y
		if sprite.FlipY {
			row = height - 1 - row
		}
		tile := sprite.TileIndex
		if height == 16 {
			tile &= 0xFE
		}
		bank := uint8(0)
		if p.cgb {
			bank = sprite.VRAMBank
		}
		offset := int(tile)*16 + row*2
		data := TileRow{Low: p.vram[bank][offset], High: p.vram[bank][offset+1]}

		for pixelX := range 8 {
			x := sprite.X + pixelX
			if x < 0 || x >= Width || !sprite.HasPriorityForPixel(pixelX) {
				continue
			}

			index := data.Pixel(pixelX, sprite.FlipX)
			if index == 0 {
				continue
			}

			if masterPriority && p.lineColor[x] != 0 && (sprite.BehindBG || p.linePriority[x]) {
				continue
			}

			p.back.SetPixel(x, line, p.spriteColor(sprite, index))
		}
	}
}

func (p *PPU) spriteColor(sprite Sprite, index uint8) color.RGBA {
	if p.cgb {
		return p.objColors.color(sprite.CGBPalette, index)
	}
	register := p.obp0
	if sprite.PaletteOBP1 {
		register = p.obp1
	}
	return p.palette.Colors[shade(register, index)]
}
