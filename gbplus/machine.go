package gbplus

import (
	"io"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/audio"
	"github.com/valerio/gbplus/gbplus/cartridge"
	"github.com/valerio/gbplus/gbplus/cpu"
	"github.com/valerio/gbplus/gbplus/memory"
	"github.com/valerio/gbplus/gbplus/savestate"
	"github.com/valerio/gbplus/gbplus/timing"
	"github.com/valerio/gbplus/gbplus/video"
)

// machine wires one cartridge to a fresh set of components. It is replaced
// wholesale on LoadROM and LoadSaveState.
type machine struct {
	cart *cartridge.Cartridge
	mmu  *memory.MMU
	cpu  *cpu.CPU
	ppu  *video.PPU
	apu  *audio.APU
	cgb  bool

	// overshoot holds the dots the last instruction of a frame ran past
	// the frame boundary. They count towards the next frame.
	overshoot int
}

type machineConfig struct {
	ring       *audio.RingBuffer
	sampleRate int
	serial     io.Writer
	logger     *slog.Logger
	palette    int
}

func newMachine(cart *cartridge.Cartridge, cgb bool, cfg machineConfig) *machine {
	m := &machine{cart: cart, cgb: cgb}
	m.ppu = video.New(m, m.hblank, cgb)
	m.apu = audio.New(cfg.ring, cfg.sampleRate)
	m.mmu = memory.New(cart, m.ppu, m.apu, memory.Config{
		CGB:    cgb,
		Serial: cfg.serial,
		Logger: cfg.logger,
	})
	m.cpu = cpu.New(m.mmu, cgb)
	m.mmu.PowerOn()
	// the index was validated when it was selected
	_ = m.ppu.SetPalette(cfg.palette)
	return m
}

// RequestInterrupt lets the PPU raise interrupts on the MMU, which is built
// after it.
func (m *machine) RequestInterrupt(interrupt addr.Interrupt) {
	m.mmu.RequestInterrupt(interrupt)
}

func (m *machine) hblank() {
	m.mmu.HBlank()
}

// step executes one CPU instruction and ticks all components. It returns
// the elapsed dots, which run at half the CPU rate in double speed.
func (m *machine) step() (int, error) {
	cycles, err := m.cpu.Exec()
	if err != nil {
		return 0, err
	}
	cycles += m.mmu.TakeStall()

	m.mmu.Tick(cycles)
	dots := cycles
	if m.mmu.DoubleSpeed() {
		dots >>= 1
	}
	m.ppu.Tick(dots)
	m.apu.Tick(dots)
	return dots, nil
}

// runFrame steps until a frame worth of dots has elapsed.
func (m *machine) runFrame() error {
	elapsed := m.overshoot
	for elapsed < timing.CyclesPerFrame {
		dots, err := m.step()
		if err != nil {
			m.overshoot = 0
			return err
		}
		elapsed += dots
	}
	m.overshoot = elapsed - timing.CyclesPerFrame
	return nil
}

// maxOvershoot bounds the overshoot a valid state can carry: the longest
// instruction plus a general purpose HDMA of 128 blocks.
const maxOvershoot = 24 + 0x80*32

func (m *machine) save(e *savestate.Encoder) {
	m.cart.Save(e)
	m.mmu.Save(e)
	m.cpu.Save(e)
	m.ppu.Save(e)
	m.apu.Save(e)
	e.Section("SCHD")
	e.Int(m.overshoot)
}

// restoreMachine builds a machine from a state payload. The cartridge comes
// back without ROM banks.
func restoreMachine(payload []byte, cgb bool, cfg machineConfig, opts ...cartridge.Option) (*machine, error) {
	d := savestate.NewDecoder(payload)
	cart, err := cartridge.Restore(d, opts...)
	if err != nil {
		return nil, err
	}

	m := newMachine(cart, cgb, cfg)
	m.mmu.Load(d)
	m.cpu.Load(d)
	m.ppu.Load(d)
	m.apu.Load(d)
	d.Section("SCHD")
	m.overshoot = d.Int()
	if m.overshoot < 0 || m.overshoot > maxOvershoot {
		d.Fail("frame overshoot %d out of range", m.overshoot)
	}
	if n := d.Remaining(); n != 0 && d.Err() == nil {
		d.Fail("%d trailing bytes", n)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	// the palette is a host setting and is not part of the state
	_ = m.ppu.SetPalette(cfg.palette)
	return m, nil
}
