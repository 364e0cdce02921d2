// Package gbplus is a Game Boy and Game Boy Color emulator engine exposed
// through a small call surface: load a ROM, step frames, read back the
// screen and audio, persist battery RAM, clock and save states.
//
// An Engine is not safe for concurrent use, with one exception: the audio
// calls (ReadRingBuffer, BufferLen, PopSample) may run on a consumer
// goroutine while another goroutine steps frames.
package gbplus

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/valerio/gbplus/gbplus/audio"
	"github.com/valerio/gbplus/gbplus/cartridge"
	"github.com/valerio/gbplus/gbplus/video"
)

const (
	Name    = "gbplus"
	Version = "0.1.0"
)

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateAwaitingROM
	stateFailed
)

func (s engineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateAwaitingROM:
		return "awaiting ROM"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Engine owns one emulated machine at a time.
type Engine struct {
	opts   options
	logger *slog.Logger

	m       *machine
	state   engineState
	err     error
	paused  bool
	palette int
	held    [8]bool

	ring *audio.RingBuffer
	idle *video.FrameBuffer

	// generation is bumped by every mutating call, sampleGen by every
	// ReadRingBuffer.
	generation atomic.Uint64
	sampleGen  atomic.Uint64
	scratch    []float32
}

// New returns an idle engine with no cartridge.
func New(opts ...Option) *Engine {
	o := buildOptions(opts)
	e := &Engine{
		opts:    o,
		logger:  o.logger,
		palette: video.DefaultPalette,
		ring:    audio.NewRingBuffer(o.ringCapacity),
		idle:    video.NewFrameBuffer(),
	}
	e.idle.Fill(video.Palettes[e.palette].Colors[0])
	return e
}

func (e *Engine) mutated() {
	e.generation.Add(1)
}

func (e *Engine) machineConfig() machineConfig {
	return machineConfig{
		ring:       e.ring,
		sampleRate: e.opts.sampleRate,
		serial:     e.opts.serial,
		logger:     e.logger,
		palette:    e.palette,
	}
}

func (e *Engine) cartridgeOptions() []cartridge.Option {
	return []cartridge.Option{
		cartridge.WithTimeSource(e.opts.timeSource),
		cartridge.WithLogger(e.logger),
	}
}

// useCGB decides the hardware model for a cartridge.
func (e *Engine) useCGB(h cartridge.Header) bool {
	switch e.opts.model {
	case ModelDMG:
		if h.CGBOnly() {
			e.logger.Warn("running a CGB only cartridge on DMG hardware", "title", h.Title)
		}
		return false
	case ModelCGB:
		return true
	}
	return h.CGBSupported()
}

// LoadROM parses the image header and powers on a new machine. On error the
// engine keeps its previous machine, if any, and can be used again.
func (e *Engine) LoadROM(rom []byte) error {
	cart, err := cartridge.New(rom, e.cartridgeOptions()...)
	if err != nil {
		e.logger.Warn("ROM rejected", "error", err)
		return err
	}

	h := cart.Header()
	m := newMachine(cart, e.useCGB(h), e.machineConfig())
	e.applyHeld(m)
	e.install(m, stateRunning)

	e.logger.Debug("machine powered on",
		"title", h.Title,
		"mapper", cart.Kind(),
		"cgb", m.cgb,
		"rom_banks", h.ROMBanks,
		"ram_size", h.RAMSize)
	return nil
}

func (e *Engine) install(m *machine, s engineState) {
	e.m = m
	e.state = s
	e.err = nil
	e.ring.Reset()
	e.mutated()
}

// ReloadROM repopulates the ROM banks without touching machine state. It
// completes a LoadSaveState and is also accepted while running, as long as
// the image carries the same header.
func (e *Engine) ReloadROM(rom []byte) error {
	if e.m == nil {
		return ErrNoROM
	}
	if err := e.m.cart.AttachROM(rom); err != nil {
		return err
	}
	if e.state == stateAwaitingROM {
		e.state = stateRunning
	}
	e.mutated()
	return nil
}

// StepFrame advances the machine by one frame (70224 dots). After an
// illegal opcode the engine is failed and keeps returning the same error;
// the caller has to create a new engine.
func (e *Engine) StepFrame() error {
	if e.paused {
		return nil
	}
	switch e.state {
	case stateIdle:
		return ErrNoROM
	case stateAwaitingROM:
		return ErrROMNotReloaded
	case stateFailed:
		return e.err
	}

	err := e.m.runFrame()
	e.mutated()
	if err != nil {
		e.state = stateFailed
		e.err = fmt.Errorf("step frame: %w", err)
		e.logger.Error("emulation stopped", "error", err)
		return e.err
	}

	if clock := e.m.cart.RTC(); clock != nil {
		clock.Sync()
	}
	return nil
}

// SetPause suspends StepFrame, which returns immediately while paused.
func (e *Engine) SetPause(paused bool) {
	e.paused = paused
}

func (e *Engine) Paused() bool { return e.paused }

// Failed reports whether an illegal opcode stopped the machine.
func (e *Engine) Failed() bool { return e.state == stateFailed }

// Err returns the error that stopped the machine, if any.
func (e *Engine) Err() error { return e.err }

// AwaitingROM reports whether a restored state still needs ReloadROM.
func (e *Engine) AwaitingROM() bool { return e.state == stateAwaitingROM }

// ChangePalette selects the colors monochrome games are drawn with. It has
// no effect on CGB rendering. The setting survives ROM and state loads.
func (e *Engine) ChangePalette(index int) error {
	palette, err := video.LookupPalette(index)
	if err != nil {
		return err
	}
	e.palette = index
	if e.m != nil {
		// validated above
		_ = e.m.ppu.SetPalette(index)
	} else {
		e.idle.Fill(palette.Colors[0])
	}
	return nil
}

// Palette returns the selected palette index.
func (e *Engine) Palette() int { return e.palette }

// Screen returns the last completed frame, 160x144 RGBA. Before a ROM is
// loaded it is a blank frame.
func (e *Engine) Screen() ScreenView {
	fb := e.idle
	if e.m != nil {
		fb = e.m.ppu.Frame()
	}
	return ScreenView{view: issue(&e.generation), data: fb.Bytes()}
}

// ScreenLength is the size of the Screen buffer in bytes.
func (e *Engine) ScreenLength() int {
	return video.Width * video.Height * 4
}

// ReadRingBuffer drains every buffered sample. The view is backed by a
// buffer reused by the next call.
func (e *Engine) ReadRingBuffer() SampleView {
	n := e.ring.Len()
	if cap(e.scratch) < n {
		e.scratch = make([]float32, n)
	}
	e.scratch = e.scratch[:n]
	e.scratch = e.scratch[:e.ring.Read(e.scratch)]
	e.sampleGen.Add(1)
	return SampleView{view: issue(&e.sampleGen), data: e.scratch}
}

// BufferLen returns the number of samples returned by the last
// ReadRingBuffer.
func (e *Engine) BufferLen() int {
	return len(e.scratch)
}

// PopSample removes the oldest buffered sample.
func (e *Engine) PopSample() (float32, bool) {
	return e.ring.Pop()
}

// Mixer exposes channel muting for debugging front ends. It is nil until a
// ROM is loaded and changes with every load.
func (e *Engine) Mixer() audio.Mixer {
	if e.m == nil {
		return nil
	}
	return e.m.apu
}

// SampleRate is the audio output rate in Hz.
func (e *Engine) SampleRate() int { return e.opts.sampleRate }

// Info describes the loaded cartridge.
type Info struct {
	Title    string
	Mapper   string
	Type     string
	CGB      bool
	CGBFlag  uint8
	ROMSize  int
	RAMSize  int
	Battery  bool
	Timer    bool
	Checksum uint16
}

// Info returns header information about the loaded cartridge.
func (e *Engine) Info() (Info, error) {
	if e.m == nil {
		return Info{}, ErrNoROM
	}
	c := e.m.cart
	h := c.Header()
	return Info{
		Title:    h.Title,
		Mapper:   c.Kind().String(),
		Type:     cartridge.TypeName(h.Type),
		CGB:      e.m.cgb,
		CGBFlag:  h.CGBFlag,
		ROMSize:  h.ROMBanks * 0x4000,
		RAMSize:  h.RAMSize,
		Battery:  c.HasBattery(),
		Timer:    c.HasTimer(),
		Checksum: h.GlobalChecksum,
	}, nil
}

// Peek reads a byte through the CPU bus.
func (e *Engine) Peek(address uint16) uint8 {
	if e.m == nil {
		return 0xFF
	}
	return e.m.mmu.Read(address)
}

// Poke writes a byte through the CPU bus.
func (e *Engine) Poke(address uint16, value uint8) {
	if e.m == nil {
		return
	}
	e.m.mmu.Write(address, value)
	e.mutated()
}
