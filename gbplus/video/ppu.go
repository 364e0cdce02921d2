package video

import (
	"image/color"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// Mode is the PPU mode reported in STAT bits 0-1.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeDrawing
)

const (
	oamScanDots  = 80
	drawingDots  = 172
	hblankDots   = 204
	lineDots     = oamScanDots + drawingDots + hblankDots
	visibleLines = 144
	totalLines   = 154
)

// LCDC (LCD Control) register bits
// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG Display (DMG) / BG and Window master priority (CGB)
const (
	lcdDisplayEnable       uint8 = 7
	windowTileMapSelect    uint8 = 6
	windowDisplayEnable    uint8 = 5
	bgWindowTileDataSelect uint8 = 4
	bgTileMapDisplaySelect uint8 = 3
	spriteSize             uint8 = 2
	spriteDisplayEnable    uint8 = 1
	bgDisplay              uint8 = 0
)

// STAT interrupt source bits
const (
	statHBlankSource uint8 = 3
	statVBlankSource uint8 = 4
	statOAMSource    uint8 = 5
	statLYCSource    uint8 = 6
)

// InterruptRequester receives VBlank and STAT interrupt requests.
type InterruptRequester interface {
	RequestInterrupt(interrupt addr.Interrupt)
}

// PPU owns VRAM, OAM and the LCD registers, advances through the scanline
// modes and renders each line into a back buffer that is presented to the
// front buffer at VBlank.
type PPU struct {
	irq    InterruptRequester
	hblank func()
	cgb    bool

	vram     [2][0x2000]uint8
	vramBank uint8
	oamData  [0xA0]uint8
	oam      *OAM

	lcdc, stat, scy, scx, ly, lyc uint8
	bgp, obp0, obp1, wy, wx       uint8

	bgColors  colorRAM
	objColors colorRAM

	mode       Mode
	dots       int
	windowLine int
	statLine   bool
	frameReady bool

	palette      Palette
	paletteIndex int

	back  *FrameBuffer
	front *FrameBuffer

	// per pixel background state of the current line, used by sprite priority
	lineColor    [Width]uint8
	linePriority [Width]bool
}

// New creates a PPU. hblank, when set, is called on every visible line
// entering mode 0 (CGB HBlank DMA).
func New(irq InterruptRequester, hblank func(), cgb bool) *PPU {
	p := &PPU{
		irq:          irq,
		hblank:       hblank,
		cgb:          cgb,
		palette:      Palettes[DefaultPalette],
		paletteIndex: DefaultPalette,
		back:         NewFrameBuffer(),
		front:        NewFrameBuffer(),
		mode:         ModeOAMScan,
	}
	p.oam = newOAM(&p.oamData)
	if cgb {
		// palettes start white
		for i := range p.bgColors.data {
			p.bgColors.data[i] = 0xFF
			p.objColors.data[i] = 0xFF
		}
	}
	p.back.Fill(p.palette.Colors[0])
	p.front.Fill(p.palette.Colors[0])
	return p
}

// SetPalette selects one of the built-in DMG palettes. Lines rendered from
// now on use it; lines already in the back buffer keep their colors.
func (p *PPU) SetPalette(index int) error {
	palette, err := LookupPalette(index)
	if err != nil {
		return err
	}
	p.palette = palette
	p.paletteIndex = index
	return nil
}

// PaletteIndex returns the selected DMG palette.
func (p *PPU) PaletteIndex() int { return p.paletteIndex }

// Frame returns the last completed frame.
func (p *PPU) Frame() *FrameBuffer { return p.front }

// TakeFrame reports whether a new frame was presented since the last call.
func (p *PPU) TakeFrame() bool {
	ready := p.frameReady
	p.frameReady = false
	return ready
}

// OAM exposes sprite decoding for debugging front ends.
func (p *PPU) OAM() *OAM { return p.oam }

func (p *PPU) Mode() Mode { return p.mode }

func (p *PPU) LY() uint8 { return p.ly }

func (p *PPU) enabled() bool {
	return bit.IsSet(lcdDisplayEnable, p.lcdc)
}

// Tick advances the PPU by dots (PPU clocks, 4.19MHz regardless of CGB speed).
func (p *PPU) Tick(dots int) {
	if !p.enabled() {
		return
	}
	p.dots += dots

	for {
		switch p.mode {
		case ModeOAMScan:
			if p.dots < oamScanDots {
				return
			}
			p.dots -= oamScanDots
			p.setMode(ModeDrawing)

		case ModeDrawing:
			if p.dots < drawingDots {
				return
			}
			p.dots -= drawingDots
			p.renderScanline()
			p.setMode(ModeHBlank)
			if p.hblank != nil {
				p.hblank()
			}

		case ModeHBlank:
			if p.dots < hblankDots {
				return
			}
			p.dots -= hblankDots
			p.setLY(p.ly + 1)
			if p.ly == visibleLines {
				p.setMode(ModeVBlank)
				p.irq.RequestInterrupt(addr.VBlankInterrupt)
				p.present()
			} else {
				p.setMode(ModeOAMScan)
			}

		case ModeVBlank:
			if p.dots < lineDots {
				return
			}
			p.dots -= lineDots
			if p.ly == totalLines-1 {
				p.windowLine = 0
				p.setLY(0)
				p.setMode(ModeOAMScan)
			} else {
				p.setLY(p.ly + 1)
			}
		}
	}
}

func (p *PPU) present() {
	p.back, p.front = p.front, p.back
	p.frameReady = true
}

func (p *PPU) setMode(mode Mode) {
	p.mode = mode
	p.updateStatLine()
}

func (p *PPU) setLY(ly uint8) {
	p.ly = ly
	p.updateStatLine()
}

// updateStatLine requests the STAT interrupt on a rising edge of the OR of
// all enabled sources, so back to back sources do not fire twice.
func (p *PPU) updateStatLine() {
	line := false
	if p.enabled() {
		switch p.mode {
		case ModeHBlank:
			line = bit.IsSet(statHBlankSource, p.stat)
		case ModeVBlank:
			line = bit.IsSet(statVBlankSource, p.stat) || bit.IsSet(statOAMSource, p.stat) && p.ly == visibleLines
		case ModeOAMScan:
			line = bit.IsSet(statOAMSource, p.stat)
		}
		if p.ly == p.lyc && bit.IsSet(statLYCSource, p.stat) {
			line = true
		}
	}

	if line && !p.statLine {
		p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
	}
	p.statLine = line
}

func (p *PPU) writeLCDC(value uint8) {
	wasOn := p.enabled()
	p.lcdc = value
	isOn := p.enabled()

	switch {
	case wasOn && !isOn:
		p.ly = 0
		p.dots = 0
		p.mode = ModeHBlank
		p.windowLine = 0
		p.statLine = false
		p.back.Fill(p.blankColor())
		p.present()
	case !wasOn && isOn:
		p.dots = 0
		p.windowLine = 0
		p.setMode(ModeOAMScan)
	}
}

func (p *PPU) blankColor() color.RGBA {
	if p.cgb {
		return white
	}
	return p.palette.Colors[0]
}

func (p *PPU) Read(address uint16) uint8 {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		return p.vram[p.vramBank][address-addr.VRAMStart]
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		return p.oamData[address-addr.OAMStart]
	}

	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		stat := 0x80 | p.stat&0x78 | uint8(p.mode)
		if !p.enabled() {
			stat &^= 0x03
		}
		return bit.SetTo(2, stat, p.ly == p.lyc)
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}

	if p.cgb {
		switch address {
		case addr.VBK:
			return 0xFE | p.vramBank
		case addr.BCPS:
			return p.bgColors.readIndex()
		case addr.BCPD:
			return p.bgColors.readData()
		case addr.OCPS:
			return p.objColors.readIndex()
		case addr.OCPD:
			return p.objColors.readData()
		}
	}
	return 0xFF
}

func (p *PPU) Write(address uint16, value uint8) {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		p.vram[p.vramBank][address-addr.VRAMStart] = value
		return
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		p.oamData[address-addr.OAMStart] = value
		return
	}

	switch address {
	case addr.LCDC:
		p.writeLCDC(value)
	case addr.STAT:
		p.stat = value & 0x78
		p.updateStatLine()
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read only
	case addr.LYC:
		p.lyc = value
		p.updateStatLine()
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}

	if p.cgb {
		switch address {
		case addr.VBK:
			p.vramBank = value & 0x01
		case addr.BCPS:
			p.bgColors.writeIndex(value)
		case addr.BCPD:
			p.bgColors.writeData(value)
		case addr.OCPS:
			p.objColors.writeIndex(value)
		case addr.OCPD:
			p.objColors.writeData(value)
		}
	}
}

func (p *PPU) Save(e *savestate.Encoder) {
	e.Section("PPU_")
	e.Bytes(p.vram[0][:])
	e.Bytes(p.vram[1][:])
	e.U8(p.vramBank)
	e.Bytes(p.oamData[:])
	for _, r := range []uint8{p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc, p.bgp, p.obp0, p.obp1, p.wy, p.wx} {
		e.U8(r)
	}
	p.bgColors.save(e)
	p.objColors.save(e)
	e.U8(uint8(p.mode))
	e.Int(p.dots)
	e.Int(p.windowLine)
	e.Bool(p.statLine)
	e.Bytes(p.front.Bytes())
	e.Bytes(p.back.Bytes()[:p.renderedLines()*Width*4])
}

// renderedLines counts the back buffer lines already drawn for the frame
// in progress.
func (p *PPU) renderedLines() int {
	switch {
	case !p.enabled() || p.ly >= visibleLines:
		return 0
	case p.mode == ModeHBlank:
		return int(p.ly) + 1
	}
	return int(p.ly)
}

func (p *PPU) Load(d *savestate.Decoder) {
	d.Section("PPU_")
	d.BytesInto(p.vram[0][:])
	d.BytesInto(p.vram[1][:])
	p.vramBank = d.U8() & 0x01
	d.BytesInto(p.oamData[:])
	for _, r := range []*uint8{&p.lcdc, &p.stat, &p.scy, &p.scx, &p.ly, &p.lyc, &p.bgp, &p.obp0, &p.obp1, &p.wy, &p.wx} {
		*r = d.U8()
	}
	p.bgColors.load(d)
	p.objColors.load(d)
	p.mode = Mode(d.U8() & 0x03)
	p.dots = d.Int()
	p.windowLine = d.Int()
	p.statLine = d.Bool()

	if p.ly >= totalLines || p.dots < 0 || p.dots >= lineDots {
		d.Fail("ppu line %d dot %d out of range", p.ly, p.dots)
	}
	d.BytesInto(p.front.Bytes())
	copy(p.back.Bytes(), p.front.Bytes())
	partial := d.Bytes()
	if len(partial)%(Width*4) != 0 || len(partial) > len(p.back.Bytes()) {
		d.Fail("partial frame of %d bytes", len(partial))
		return
	}
	copy(p.back.Bytes(), partial)
}
