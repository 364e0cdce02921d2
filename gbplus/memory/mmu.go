package memory

import (
	"io"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/cartridge"
	"github.com/valerio/gbplus/gbplus/savestate"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM0
	regionWRAMN
	regionEcho
	regionOAM
	regionIO
)

const wramBankSize = 0x1000

// Device is a component mapped into the address space.
type Device interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Config selects the hardware model and optional peripherals.
type Config struct {
	CGB    bool
	Serial io.Writer
	Logger *slog.Logger
}

// MMU routes CPU accesses to the cartridge, video and sound devices and owns
// work RAM, high RAM, interrupt flags and the small IO peripherals.
type MMU struct {
	cart  *cartridge.Cartridge
	video Device
	sound Device

	regionMap [256]memRegion

	wram     [8][wramBankSize]byte
	wramBank uint8
	hram     [0x7F]byte
	io       [0x80]byte

	ie      uint8
	ifFlags uint8

	timer  *Timer
	joypad *Joypad
	serial *Serial

	cgb         bool
	doubleSpeed bool
	speedArmed  bool

	dma  uint8
	hdma hdma

	// cycles the CPU is held for by general purpose HDMA, collected by the frame loop
	stall int

	logger *slog.Logger
}

type hdma struct {
	src, dst uint16
	blocks   int // remaining 16 byte blocks
	hblank   bool
	active   bool
}

// New creates a memory unit wired to the given devices. cart may be nil,
// in which case cartridge space reads as 0xFF.
func New(cart *cartridge.Cartridge, video, sound Device, cfg Config) *MMU {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &MMU{
		cart:     cart,
		video:    video,
		sound:    sound,
		cgb:      cfg.CGB,
		wramBank: 1,
		logger:   logger,
	}
	m.timer = NewTimer(func() { m.RequestInterrupt(addr.TimerInterrupt) })
	m.joypad = NewJoypad(func() { m.RequestInterrupt(addr.JoypadInterrupt) })
	m.serial = NewSerial(func() { m.RequestInterrupt(addr.SerialInterrupt) }, cfg.Serial, logger)
	m.serial.cgb = cfg.CGB
	initRegionMap(m)
	return m
}

func initRegionMap(m *MMU) {
	for i := 0x00; i <= 0xFF; i++ {
		switch {
		case i <= 0x7F:
			m.regionMap[i] = regionROM
		case i <= 0x9F:
			m.regionMap[i] = regionVRAM
		case i <= 0xBF:
			m.regionMap[i] = regionExtRAM
		case i <= 0xCF:
			m.regionMap[i] = regionWRAM0
		case i <= 0xDF:
			m.regionMap[i] = regionWRAMN
		case i <= 0xFD:
			m.regionMap[i] = regionEcho
		case i == 0xFE:
			m.regionMap[i] = regionOAM
		default:
			m.regionMap[i] = regionIO
		}
	}
}

// PowerOn sets the IO registers to the values left by the boot ROM.
func (m *MMU) PowerOn() {
	m.joypad.Write(0x30)
	m.ifFlags = 0x01
	m.ie = 0x00
	if m.cgb {
		m.timer.SetSeed(0x1EA0)
	} else {
		m.timer.SetSeed(0xABCC)
	}

	// APU first: register writes are ignored while NR52 is off
	m.Write(addr.NR52, 0xF1)
	for _, r := range []struct {
		a uint16
		v uint8
	}{
		{addr.NR10, 0x80}, {addr.NR11, 0xBF}, {addr.NR12, 0xF3}, {addr.NR13, 0xFF}, {addr.NR14, 0xBF},
		{addr.NR21, 0x3F}, {addr.NR22, 0x00}, {addr.NR23, 0xFF}, {addr.NR24, 0xBF},
		{addr.NR30, 0x7F}, {addr.NR31, 0xFF}, {addr.NR32, 0x9F}, {addr.NR33, 0xFF}, {addr.NR34, 0xBF},
		{addr.NR41, 0xFF}, {addr.NR42, 0x00}, {addr.NR43, 0x00}, {addr.NR44, 0xBF},
		{addr.NR50, 0x77}, {addr.NR51, 0xF3},
		{addr.LCDC, 0x91}, {addr.SCY, 0x00}, {addr.SCX, 0x00}, {addr.LYC, 0x00},
		{addr.BGP, 0xFC}, {addr.OBP0, 0xFF}, {addr.OBP1, 0xFF}, {addr.WY, 0x00}, {addr.WX, 0x00},
	} {
		m.Write(r.a, r.v)
	}
}

// SetCartridge swaps the mapped cartridge.
func (m *MMU) SetCartridge(cart *cartridge.Cartridge) {
	m.cart = cart
}

func (m *MMU) Timer() *Timer { return m.timer }

func (m *MMU) Joypad() *Joypad { return m.joypad }

func (m *MMU) Serial() *Serial { return m.serial }

// CGB reports whether the color hardware is enabled.
func (m *MMU) CGB() bool { return m.cgb }

// DoubleSpeed reports whether the CGB runs at 8MHz.
func (m *MMU) DoubleSpeed() bool { return m.doubleSpeed }

// SpeedSwitch is triggered by STOP. It toggles CGB double speed when KEY1
// was armed and reports whether a switch happened.
func (m *MMU) SpeedSwitch() bool {
	if !m.cgb || !m.speedArmed {
		return false
	}
	m.speedArmed = false
	m.doubleSpeed = !m.doubleSpeed
	m.timer.Write(addr.DIV, 0)
	return true
}

// Tick advances the timer and serial port by CPU cycles.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.serial.Tick(cycles)
}

// TakeStall returns and resets the cycles consumed by general purpose HDMA.
func (m *MMU) TakeStall() int {
	s := m.stall
	m.stall = 0
	return s
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.ifFlags |= uint8(interrupt) & 0x1F
}

// PendingInterrupts returns the interrupts that are both requested and enabled.
func (m *MMU) PendingInterrupts() uint8 {
	return m.ie & m.ifFlags & 0x1F
}

// AckInterrupt clears the request flag of a serviced interrupt.
func (m *MMU) AckInterrupt(interrupt addr.Interrupt) {
	m.ifFlags &^= uint8(interrupt)
}

func (m *MMU) Read(address uint16) uint8 {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.cart == nil {
			return 0xFF
		}
		return m.cart.Read(address)
	case regionVRAM, regionOAM:
		if address >= 0xFEA0 && address <= 0xFEFF {
			return 0xFF
		}
		return m.video.Read(address)
	case regionWRAM0:
		return m.wram[0][address&0x0FFF]
	case regionWRAMN:
		return m.wram[m.wramBank][address&0x0FFF]
	case regionEcho:
		return m.Read(address - 0x2000)
	}
	return m.readIO(address)
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == addr.IE:
		return m.ie
	case address >= addr.HRAMStart:
		return m.hram[address-addr.HRAMStart]
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		return m.ifFlags | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.sound.Read(address)
	case address == addr.DMA:
		return m.dma
	case address >= addr.LCDC && address <= addr.WX:
		return m.video.Read(address)
	}

	if m.cgb {
		switch address {
		case addr.KEY1:
			v := uint8(0x7E) | bit.Bool(m.speedArmed)
			return bit.SetTo(7, v, m.doubleSpeed)
		case addr.VBK, addr.BCPS, addr.BCPD, addr.OCPS, addr.OCPD:
			return m.video.Read(address)
		case addr.HDMA5:
			if !m.hdma.active {
				return 0xFF
			}
			return uint8(m.hdma.blocks-1) & 0x7F
		case addr.SVBK:
			return 0xF8 | m.wramBank
		}
	}

	return 0xFF
}

func (m *MMU) Write(address uint16, value uint8) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.cart != nil {
			m.cart.Write(address, value)
		}
	case regionVRAM, regionOAM:
		if address >= 0xFEA0 && address <= 0xFEFF {
			return
		}
		m.video.Write(address, value)
	case regionWRAM0:
		m.wram[0][address&0x0FFF] = value
	case regionWRAMN:
		m.wram[m.wramBank][address&0x0FFF] = value
	case regionEcho:
		m.Write(address-0x2000, value)
	default:
		m.writeIO(address, value)
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.IE:
		m.ie = value
		return
	case address >= addr.HRAMStart:
		m.hram[address-addr.HRAMStart] = value
		return
	case address == addr.P1:
		m.joypad.Write(value)
		return
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
		return
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
		return
	case address == addr.IF:
		m.ifFlags = value & 0x1F
		return
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.sound.Write(address, value)
		return
	case address == addr.DMA:
		m.dma = value
		m.oamDMA(uint16(value) << 8)
		return
	case address >= addr.LCDC && address <= addr.WX:
		m.video.Write(address, value)
		return
	}

	if m.cgb {
		switch address {
		case addr.KEY1:
			m.speedArmed = bit.IsSet(0, value)
			return
		case addr.VBK, addr.BCPS, addr.BCPD, addr.OCPS, addr.OCPD:
			m.video.Write(address, value)
			return
		case addr.HDMA1:
			m.hdma.src = m.hdma.src&0x00FF | uint16(value)<<8
			return
		case addr.HDMA2:
			m.hdma.src = m.hdma.src&0xFF00 | uint16(value&0xF0)
			return
		case addr.HDMA3:
			m.hdma.dst = m.hdma.dst&0x00FF | uint16(value&0x1F)<<8
			return
		case addr.HDMA4:
			m.hdma.dst = m.hdma.dst&0xFF00 | uint16(value&0xF0)
			return
		case addr.HDMA5:
			m.startHDMA(value)
			return
		case addr.SVBK:
			m.wramBank = value & 0x07
			if m.wramBank == 0 {
				m.wramBank = 1
			}
			return
		}
	}

	m.io[address&0x7F] = value
}

// oamDMA copies 160 bytes from source to OAM.
func (m *MMU) oamDMA(source uint16) {
	if source >= 0xE000 {
		source -= 0x2000
	}
	for i := range uint16(160) {
		m.video.Write(addr.OAMStart+i, m.Read(source+i))
	}
}

func (m *MMU) startHDMA(value uint8) {
	if m.hdma.active && m.hdma.hblank && !bit.IsSet(7, value) {
		// writing bit 7 clear stops a running HBlank transfer
		m.hdma.active = false
		return
	}

	m.hdma.blocks = int(value&0x7F) + 1
	m.hdma.hblank = bit.IsSet(7, value)
	m.hdma.active = true

	if !m.hdma.hblank {
		for m.hdma.active {
			m.copyHDMABlock()
		}
	}
}

func (m *MMU) copyHDMABlock() {
	for i := uint16(0); i < 0x10; i++ {
		m.video.Write(0x8000|(m.hdma.dst+i)&0x1FFF, m.Read(m.hdma.src+i))
	}
	m.hdma.src += 0x10
	m.hdma.dst = (m.hdma.dst + 0x10) & 0x1FFF
	m.hdma.blocks--
	if m.hdma.blocks == 0 {
		m.hdma.active = false
	}

	cost := 32
	if m.doubleSpeed {
		cost = 64
	}
	m.stall += cost
}

// HBlank is called by the PPU when it enters mode 0 on a visible line.
func (m *MMU) HBlank() {
	if m.hdma.active && m.hdma.hblank {
		m.copyHDMABlock()
	}
}

func (m *MMU) Save(e *savestate.Encoder) {
	e.Section("MMU_")
	for i := range m.wram {
		e.Bytes(m.wram[i][:])
	}
	e.U8(m.wramBank)
	e.Bytes(m.hram[:])
	e.Bytes(m.io[:])
	e.U8(m.ie)
	e.U8(m.ifFlags)
	e.Bool(m.doubleSpeed)
	e.Bool(m.speedArmed)
	e.U8(m.dma)
	e.U16(m.hdma.src)
	e.U16(m.hdma.dst)
	e.Int(m.hdma.blocks)
	e.Bool(m.hdma.hblank)
	e.Bool(m.hdma.active)
	m.timer.Save(e)
	m.joypad.Save(e)
	m.serial.Save(e)
}

func (m *MMU) Load(d *savestate.Decoder) {
	d.Section("MMU_")
	for i := range m.wram {
		d.BytesInto(m.wram[i][:])
	}
	m.wramBank = d.U8() & 0x07
	if m.wramBank == 0 {
		m.wramBank = 1
	}
	d.BytesInto(m.hram[:])
	d.BytesInto(m.io[:])
	m.ie = d.U8()
	m.ifFlags = d.U8() & 0x1F
	m.doubleSpeed = d.Bool()
	m.speedArmed = d.Bool()
	m.dma = d.U8()
	m.hdma.src = d.U16()
	m.hdma.dst = d.U16()
	m.hdma.blocks = d.Int()
	m.hdma.hblank = d.Bool()
	m.hdma.active = d.Bool()
	if m.hdma.blocks < 0 || m.hdma.blocks > 0x80 {
		d.Fail("hdma block count %d out of range", m.hdma.blocks)
	}
	m.timer.Load(d)
	m.joypad.Load(d)
	m.serial.Load(d)
}
