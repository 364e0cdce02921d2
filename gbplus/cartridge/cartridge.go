package cartridge

import (
	"bytes"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/rtc"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// Cartridge is a ROM image plus its memory bank controller, external RAM
// and, for MBC3 timer carts, the real time clock.
type Cartridge struct {
	header   Header
	raw      [headerEnd - headerStart]byte
	features features
	mem      *banks
	mbc      MBC
	clock    *rtc.Clock
}

type options struct {
	verifyChecksum bool
	timeSource     rtc.TimeSource
	logger         *slog.Logger
}

// Option configures a Cartridge.
type Option func(*options)

// SkipHeaderChecksum accepts images whose header checksum does not match,
// as some homebrew and test ROMs ship that way.
func SkipHeaderChecksum() Option {
	return func(o *options) { o.verifyChecksum = false }
}

// WithTimeSource sets the wall clock followed by the RTC.
func WithTimeSource(ts rtc.TimeSource) Option {
	return func(o *options) { o.timeSource = ts }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{verifyChecksum: true, timeSource: rtc.SystemTime, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New parses the header of rom and builds the matching controller. The
// image is copied so the caller may reuse its buffer.
func New(rom []byte, opts ...Option) (*Cartridge, error) {
	o := buildOptions(opts)

	h, err := ParseHeader(rom, o.verifyChecksum)
	if err != nil {
		return nil, err
	}
	if want := h.ROMBanks * romBankSize; len(rom) < want {
		return nil, romFormatError("image is %d bytes, header declares %d", len(rom), want)
	}

	c, err := build(h, rom[headerStart:headerEnd], o)
	if err != nil {
		return nil, err
	}
	c.mem.setROM(bytes.Clone(rom))

	o.logger.Info("Cartridge loaded",
		"title", h.Title,
		"type", TypeName(h.Type),
		"rom_banks", h.ROMBanks,
		"ram_bytes", len(c.mem.ram),
		"cgb", h.CGBSupported())
	return c, nil
}

func build(h Header, raw []byte, o options) (*Cartridge, error) {
	f, ok := supportedTypes[h.Type]
	if !ok {
		return nil, &UnsupportedMapperError{Type: h.Type}
	}

	ramSize := 0
	if f.ram {
		ramSize = h.RAMSize
	}
	if f.kind == KindMBC2 {
		ramSize = mbc2RAMSize
	}

	c := &Cartridge{
		header:   h,
		features: f,
		mem:      newBanks(nil, ramSize, f.battery),
	}
	copy(c.raw[:], raw)

	switch f.kind {
	case KindROM:
		c.mbc = newNoMBC(c.mem)
	case KindMBC1:
		c.mbc = newMBC1(c.mem)
	case KindMBC2:
		c.mbc = newMBC2(c.mem)
	case KindMBC3:
		if f.timer {
			c.clock = rtc.New(o.timeSource)
		}
		c.mbc = newMBC3(c.mem, c.clock)
	case KindMBC5:
		c.mbc = newMBC5(c.mem, f.rumble)
	}
	return c, nil
}

// Read handles CPU reads in 0x0000-0x7FFF and 0xA000-0xBFFF.
func (c *Cartridge) Read(addr uint16) uint8 {
	return c.mbc.Read(addr)
}

// Write handles CPU writes in 0x0000-0x7FFF and 0xA000-0xBFFF.
func (c *Cartridge) Write(addr uint16, value uint8) {
	c.mbc.Write(addr, value)
}

func (c *Cartridge) Header() Header {
	return c.header
}

func (c *Cartridge) Kind() Kind {
	return c.features.kind
}

// HasBattery reports whether external RAM survives power off.
func (c *Cartridge) HasBattery() bool {
	return c.features.battery && len(c.mem.ram) > 0
}

// HasTimer reports whether the cartridge carries a real time clock.
func (c *Cartridge) HasTimer() bool {
	return c.clock != nil
}

// RTC returns the clock of timer carts, nil otherwise.
func (c *Cartridge) RTC() *rtc.Clock {
	return c.clock
}

// RAM returns the external RAM. The slice is owned by the cartridge.
func (c *Cartridge) RAM() []byte {
	return c.mem.ram
}

// LoadRAM replaces external RAM with battery data. Shorter data leaves the
// tail untouched, longer data (such as RTC footers) is ignored past the end.
func (c *Cartridge) LoadRAM(data []byte) error {
	if len(c.mem.ram) == 0 {
		return ErrNoRAM
	}
	copy(c.mem.ram, data)
	c.mem.dirty = false
	return nil
}

// RAMDirty reports whether battery backed RAM changed since the last clear.
func (c *Cartridge) RAMDirty() bool {
	return c.mem.dirty
}

func (c *Cartridge) ClearRAMDirty() {
	c.mem.dirty = false
}

// HasROM reports whether ROM banks are populated.
func (c *Cartridge) HasROM() bool {
	return len(c.mem.rom) > 0
}

// AttachROM repopulates the ROM banks of a cartridge restored from a save
// state. The image must carry the same header the state was captured with.
func (c *Cartridge) AttachROM(rom []byte) error {
	if len(rom) < headerEnd {
		return romFormatError("image is %d bytes, too small to contain a header", len(rom))
	}
	if !bytes.Equal(rom[headerStart:headerEnd], c.raw[:]) {
		return romFormatError("image header does not match the running cartridge %q", c.header.Title)
	}
	if want := c.header.ROMBanks * romBankSize; len(rom) < want {
		return romFormatError("image is %d bytes, header declares %d", len(rom), want)
	}
	c.mem.setROM(bytes.Clone(rom))
	return nil
}

// Save writes the header bytes, controller registers, RAM and clock. ROM
// contents are not part of the state.
func (c *Cartridge) Save(e *savestate.Encoder) {
	e.Section("CART")
	e.Bytes(c.raw[:])
	e.U8(uint8(c.features.kind))
	c.mem.save(e)
	e.Bool(c.mem.dirty)
	c.mbc.Save(e)
	if c.clock != nil {
		c.clock.Save(e)
	}
}

// Restore rebuilds a cartridge from a state written by Save. The result has
// no ROM until AttachROM is called.
func Restore(d *savestate.Decoder, opts ...Option) (*Cartridge, error) {
	o := buildOptions(opts)

	d.Section("CART")
	raw := d.Bytes()
	kind := Kind(d.U8())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if len(raw) != headerEnd-headerStart {
		d.Fail("cartridge header block is %d bytes", len(raw))
		return nil, d.Err()
	}

	image := make([]byte, headerEnd)
	copy(image[headerStart:], raw)
	h, err := ParseHeader(image, false)
	if err != nil {
		d.Fail("stored cartridge header: %v", err)
		return nil, d.Err()
	}

	c, err := build(h, raw, o)
	if err != nil {
		d.Fail("stored cartridge header: %v", err)
		return nil, d.Err()
	}
	if c.features.kind != kind {
		d.Fail("stored controller %v does not match header type %v", kind, c.features.kind)
		return nil, d.Err()
	}

	c.mem.load(d)
	c.mem.dirty = d.Bool()
	c.mbc.Load(d)
	if c.clock != nil {
		c.clock.Load(d)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return c, nil
}
