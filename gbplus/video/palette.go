package video

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// ErrUnknownPalette is returned when selecting a palette index that does not exist.
var ErrUnknownPalette = errors.New("unknown palette")

// Palette maps the four DMG shades (0 lightest) to display colors.
type Palette struct {
	Name   string
	Colors [4]color.RGBA
}

func rgb(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

// Palettes lists the built-in DMG palettes, selectable by index.
var Palettes = []Palette{
	{"gray", [4]color.RGBA{rgb(0xFFFFFF), rgb(0xAAAAAA), rgb(0x555555), rgb(0x000000)}},
	{"classic", [4]color.RGBA{rgb(0x9BBC0F), rgb(0x8BAC0F), rgb(0x306230), rgb(0x0F380F)}},
	{"pocket", [4]color.RGBA{rgb(0xC4CFA1), rgb(0x8B956D), rgb(0x4D533C), rgb(0x1F1F1F)}},
	{"amber", [4]color.RGBA{rgb(0xFFC040), rgb(0xC88C28), rgb(0x805010), rgb(0x301800)}},
	{"inverted", [4]color.RGBA{rgb(0x000000), rgb(0x555555), rgb(0xAAAAAA), rgb(0xFFFFFF)}},
}

// DefaultPalette is the index used until ChangePalette is called.
const DefaultPalette = 1

// LookupPalette returns the built-in palette at index.
func LookupPalette(index int) (Palette, error) {
	if index < 0 || index >= len(Palettes) {
		return Palette{}, fmt.Errorf("%w: %d", ErrUnknownPalette, index)
	}
	return Palettes[index], nil
}

// PaletteByName returns the index of the built-in palette called name.
func PaletteByName(name string) (int, bool) {
	for i, p := range Palettes {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// shade resolves a 2 bit color index through a DMG palette register (BGP, OBP0, OBP1).
func shade(register, index uint8) uint8 {
	return (register >> (index * 2)) & 0x03
}

// colorRAM is one of the two CGB palette memories: 8 palettes of 4 colors,
// each color a little endian RGB555 word. The index register auto increments
// after data writes when bit 7 is set.
type colorRAM struct {
	data          [64]uint8
	index         uint8
	autoIncrement bool
}

func (c *colorRAM) readIndex() uint8 {
	return 0x40 | bit.SetTo(7, c.index, c.autoIncrement)
}

func (c *colorRAM) writeIndex(value uint8) {
	c.index = value & 0x3F
	c.autoIncrement = bit.IsSet(7, value)
}

func (c *colorRAM) readData() uint8 {
	return c.data[c.index]
}

func (c *colorRAM) writeData(value uint8) {
	c.data[c.index] = value
	if c.autoIncrement {
		c.index = (c.index + 1) & 0x3F
	}
}

// color expands a RGB555 entry to 8 bits per channel.
func (c *colorRAM) color(palette, index uint8) color.RGBA {
	offset := (palette&0x07)*8 + index*2
	word := uint16(c.data[offset]) | uint16(c.data[offset+1])<<8

	expand := func(v uint16) uint8 {
		v &= 0x1F
		return uint8(v<<3 | v>>2)
	}
	return color.RGBA{R: expand(word), G: expand(word >> 5), B: expand(word >> 10), A: 0xFF}
}

func (c *colorRAM) save(e *savestate.Encoder) {
	e.Bytes(c.data[:])
	e.U8(c.index)
	e.Bool(c.autoIncrement)
}

func (c *colorRAM) load(d *savestate.Decoder) {
	d.BytesInto(c.data[:])
	c.index = d.U8() & 0x3F
	c.autoIncrement = d.Bool()
}
