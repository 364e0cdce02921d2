// Package testrom builds small synthetic ROM images for tests.
package testrom

// ROM is a cartridge image under construction.
type ROM struct {
	data []byte
}

// Entry point code placed at 0x0100: NOP; JP 0x0150.
var entry = []byte{0x00, 0xC3, 0x50, 0x01}

// New creates an image of the size declared by romSizeCode with a valid
// header and an entry point that jumps to 0x0150, which holds an endless
// JR loop until overwritten.
func New(cartType, romSizeCode, ramSizeCode uint8) *ROM {
	r := &ROM{data: make([]byte, 0x8000<<romSizeCode)}
	copy(r.data[0x100:], entry)
	r.Title("TESTROM")
	r.data[0x147] = cartType
	r.data[0x148] = romSizeCode
	r.data[0x149] = ramSizeCode
	// JR -2
	r.Code(0x150, 0x18, 0xFE)
	return r
}

// Title writes the title field, up to 15 characters.
func (r *ROM) Title(title string) *ROM {
	field := r.data[0x134:0x143]
	for i := range field {
		field[i] = 0
	}
	copy(field, title)
	return r
}

// CGB sets the CGB flag byte at 0x0143.
func (r *ROM) CGB(flag uint8) *ROM {
	r.data[0x143] = flag
	return r
}

// Code writes bytes at addr in bank 0 (or the flat image offset).
func (r *ROM) Code(addr int, code ...byte) *ROM {
	copy(r.data[addr:], code)
	return r
}

// Fill writes value over a whole 16KiB bank.
func (r *ROM) Fill(bank int, value byte) *ROM {
	b := r.data[bank*0x4000 : (bank+1)*0x4000]
	for i := range b {
		b[i] = value
	}
	return r
}

// Bytes returns the image with the header checksum fixed up.
func (r *ROM) Bytes() []byte {
	var sum uint8
	for _, b := range r.data[0x134:0x14D] {
		sum = sum - b - 1
	}
	r.data[0x14D] = sum
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}
