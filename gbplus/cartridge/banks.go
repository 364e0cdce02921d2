package cartridge

import "github.com/valerio/gbplus/gbplus/savestate"

// banks holds the ROM and external RAM shared by every controller.
type banks struct {
	rom      []byte
	ram      []byte
	romBanks int
	ramBanks int

	battery bool
	dirty   bool
}

func newBanks(rom []byte, ramSize int, battery bool) *banks {
	b := &banks{
		ram:      make([]byte, ramSize),
		ramBanks: ramSize / ramBankSize,
		battery:  battery,
	}
	b.setROM(rom)
	return b
}

func (b *banks) setROM(rom []byte) {
	b.rom = rom
	b.romBanks = len(rom) / romBankSize
	if b.romBanks == 0 && len(rom) > 0 {
		b.romBanks = 1
	}
}

// readROM reads from a 16KiB bank, wrapping bank numbers past the end of
// the image. Reads return 0xFF while no ROM is attached.
func (b *banks) readROM(bank int, addr uint16) uint8 {
	if b.romBanks == 0 {
		return 0xFF
	}
	offset := (bank%b.romBanks)*romBankSize + int(addr&0x3FFF)
	if offset >= len(b.rom) {
		return 0xFF
	}
	return b.rom[offset]
}

func (b *banks) ramOffset(bank int, addr uint16) int {
	if b.ramBanks == 0 {
		return int(addr-0xA000) % len(b.ram)
	}
	return (bank%b.ramBanks)*ramBankSize + int(addr&0x1FFF)
}

func (b *banks) readRAM(bank int, addr uint16) uint8 {
	if len(b.ram) == 0 {
		return 0xFF
	}
	return b.ram[b.ramOffset(bank, addr)]
}

func (b *banks) writeRAM(bank int, addr uint16, value uint8) {
	if len(b.ram) == 0 {
		return
	}
	i := b.ramOffset(bank, addr)
	if b.ram[i] != value {
		b.ram[i] = value
		if b.battery {
			b.dirty = true
		}
	}
}

func (b *banks) save(e *savestate.Encoder) {
	e.Bytes(b.ram)
}

func (b *banks) load(d *savestate.Decoder) {
	d.BytesInto(b.ram)
}
