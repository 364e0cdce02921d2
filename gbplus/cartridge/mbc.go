package cartridge

import (
	"github.com/valerio/gbplus/gbplus/rtc"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// MBC is a memory bank controller. It receives every CPU access to
// 0x0000-0x7FFF and 0xA000-0xBFFF.
type MBC interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
	Save(e *savestate.Encoder)
	Load(d *savestate.Decoder)
}

// NoMBC maps up to 32KiB of ROM directly, with optional unbanked RAM.
type NoMBC struct {
	mem        *banks
	ramEnabled bool
}

func newNoMBC(mem *banks) *NoMBC {
	return &NoMBC{mem: mem, ramEnabled: true}
}

func (m *NoMBC) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return m.mem.readROM(0, addr)
	case addr < 0x8000:
		return m.mem.readROM(1, addr)
	case addr >= 0xA000 && addr < 0xC000:
		return m.mem.readRAM(0, addr)
	}
	return 0xFF
}

func (m *NoMBC) Write(addr uint16, value uint8) {
	if addr >= 0xA000 && addr < 0xC000 {
		m.mem.writeRAM(0, addr, value)
	}
}

func (m *NoMBC) Save(e *savestate.Encoder) {}

func (m *NoMBC) Load(d *savestate.Decoder) {}

// MBC1 supports up to 2MiB ROM and 32KiB RAM. A 5 bit register selects the
// ROM bank at 0x4000, a 2 bit register either extends it or selects the RAM
// bank depending on the banking mode.
type MBC1 struct {
	mem        *banks
	bank1      uint8
	bank2      uint8
	mode       uint8
	ramEnabled bool
}

func newMBC1(mem *banks) *MBC1 {
	return &MBC1{mem: mem, bank1: 1}
}

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		bank := 0
		if m.mode == 1 {
			bank = int(m.bank2) << 5
		}
		return m.mem.readROM(bank, addr)
	case addr < 0x8000:
		return m.mem.readROM(int(m.bank2)<<5|int(m.bank1), addr)
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.mem.readRAM(m.ramBank(), addr)
	}
	return 0xFF
}

func (m *MBC1) ramBank() int {
	if m.mode == 1 {
		return int(m.bank2)
	}
	return 0
}

func (m *MBC1) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.bank1 = value & 0x1F
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case addr < 0x6000:
		m.bank2 = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	case addr >= 0xA000 && addr < 0xC000:
		if m.ramEnabled {
			m.mem.writeRAM(m.ramBank(), addr, value)
		}
	}
}

func (m *MBC1) Save(e *savestate.Encoder) {
	e.U8(m.bank1)
	e.U8(m.bank2)
	e.U8(m.mode)
	e.Bool(m.ramEnabled)
}

func (m *MBC1) Load(d *savestate.Decoder) {
	m.bank1 = d.U8()
	m.bank2 = d.U8()
	m.mode = d.U8()
	m.ramEnabled = d.Bool()
}

// MBC2 has 512 half-byte cells of built-in RAM and up to 16 ROM banks.
// Bit 8 of the written address picks between the RAM enable and ROM bank
// registers.
type MBC2 struct {
	mem        *banks
	romBank    uint8
	ramEnabled bool
}

const mbc2RAMSize = 512

func newMBC2(mem *banks) *MBC2 {
	return &MBC2{mem: mem, romBank: 1}
}

func (m *MBC2) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return m.mem.readROM(0, addr)
	case addr < 0x8000:
		return m.mem.readROM(int(m.romBank), addr)
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | m.mem.ram[addr&0x1FF]
	}
	return 0xFF
}

func (m *MBC2) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
			return
		}
		m.romBank = value & 0x0F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr >= 0xA000 && addr < 0xC000:
		if m.ramEnabled {
			m.mem.writeRAM(0, 0xA000+addr&0x1FF, value&0x0F)
		}
	}
}

func (m *MBC2) Save(e *savestate.Encoder) {
	e.U8(m.romBank)
	e.Bool(m.ramEnabled)
}

func (m *MBC2) Load(d *savestate.Decoder) {
	m.romBank = d.U8()
	m.ramEnabled = d.Bool()
}

// MBC3 supports up to 2MiB ROM, 32KiB RAM and optionally the real time
// clock, whose registers are mapped in place of RAM when selected.
type MBC3 struct {
	mem        *banks
	clock      *rtc.Clock
	romBank    uint8
	ramBank    uint8
	ramEnabled bool
}

func newMBC3(mem *banks, clock *rtc.Clock) *MBC3 {
	return &MBC3{mem: mem, clock: clock, romBank: 1}
}

func (m *MBC3) rtcSelected() bool {
	return m.clock != nil && m.ramBank >= rtc.RegSeconds && m.ramBank <= rtc.RegDayHigh
}

func (m *MBC3) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return m.mem.readROM(0, addr)
	case addr < 0x8000:
		return m.mem.readROM(int(m.romBank), addr)
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSelected() {
			return m.clock.Read()
		}
		if m.ramBank > 0x07 {
			return 0xFF
		}
		return m.mem.readRAM(int(m.ramBank), addr)
	}
	return 0xFF
}

func (m *MBC3) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr < 0x6000:
		m.ramBank = value & 0x0F
		if m.rtcSelected() {
			m.clock.Select(m.ramBank)
		}
	case addr < 0x8000:
		if m.clock != nil {
			m.clock.Latch(value)
		}
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled {
			return
		}
		if m.rtcSelected() {
			m.clock.Write(value)
			return
		}
		if m.ramBank <= 0x07 {
			m.mem.writeRAM(int(m.ramBank), addr, value)
		}
	}
}

func (m *MBC3) Save(e *savestate.Encoder) {
	e.U8(m.romBank)
	e.U8(m.ramBank)
	e.Bool(m.ramEnabled)
}

func (m *MBC3) Load(d *savestate.Decoder) {
	m.romBank = d.U8()
	m.ramBank = d.U8()
	m.ramEnabled = d.Bool()
}

// MBC5 has a 9 bit ROM bank register (bank 0 is selectable at 0x4000) and
// up to 16 RAM banks. On rumble carts bit 3 of the RAM bank drives the motor.
type MBC5 struct {
	mem        *banks
	romBank    uint16
	ramBank    uint8
	ramEnabled bool
	rumble     bool
	motorOn    bool
}

func newMBC5(mem *banks, rumble bool) *MBC5 {
	return &MBC5{mem: mem, romBank: 1, rumble: rumble}
}

func (m *MBC5) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return m.mem.readROM(0, addr)
	case addr < 0x8000:
		return m.mem.readROM(int(m.romBank), addr)
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.mem.readRAM(int(m.ramBank), addr)
	}
	return 0xFF
}

func (m *MBC5) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x3000:
		m.romBank = m.romBank&0x100 | uint16(value)
	case addr < 0x4000:
		m.romBank = m.romBank&0xFF | uint16(value&0x01)<<8
	case addr < 0x6000:
		if m.rumble {
			m.motorOn = value&0x08 != 0
			m.ramBank = value & 0x07
		} else {
			m.ramBank = value & 0x0F
		}
	case addr >= 0xA000 && addr < 0xC000:
		if m.ramEnabled {
			m.mem.writeRAM(int(m.ramBank), addr, value)
		}
	}
}

// Rumbling reports the state of the rumble motor line.
func (m *MBC5) Rumbling() bool {
	return m.motorOn
}

func (m *MBC5) Save(e *savestate.Encoder) {
	e.U16(m.romBank)
	e.U8(m.ramBank)
	e.Bool(m.ramEnabled)
	e.Bool(m.motorOn)
}

func (m *MBC5) Load(d *savestate.Decoder) {
	m.romBank = d.U16() & 0x1FF
	m.ramBank = d.U8()
	m.ramEnabled = d.Bool()
	m.motorOn = d.Bool()
}
