package adapter

import (
	"bytes"
	"log/slog"
	"math"

	emucore "github.com/user-none/eblitui/api"
	"github.com/valerio/gbplus/gbplus"
	"github.com/valerio/gbplus/gbplus/timing"
	"github.com/valerio/gbplus/gbplus/video"
)

var _ emucore.Emulator = (*Emulator)(nil)
var _ emucore.SaveStater = (*Emulator)(nil)
var _ emucore.BatterySaver = (*Emulator)(nil)
var _ emucore.MemoryInspector = (*Emulator)(nil)
var _ emucore.MemoryMapper = (*Emulator)(nil)

// Emulator adapts one engine to the emucore interfaces.
type Emulator struct {
	engine *gbplus.Engine
	rom    []byte
	logger *slog.Logger

	pcm []int16
}

func newEmulator(e *gbplus.Engine, rom []byte) *Emulator {
	return &Emulator{engine: e, rom: bytes.Clone(rom), logger: logger()}
}

// Engine returns the wrapped engine.
func (e *Emulator) Engine() *gbplus.Engine { return e.engine }

// RunFrame executes one frame. Errors are logged; a failed engine keeps
// showing its last frame.
func (e *Emulator) RunFrame() {
	if err := e.engine.StepFrame(); err != nil && !e.engine.Failed() {
		e.logger.Warn("frame not stepped", "error", err)
	}
}

func (e *Emulator) GetFramebuffer() []byte {
	return e.engine.Screen().Bytes()
}

func (e *Emulator) GetFramebufferStride() int {
	return video.Width * 4
}

func (e *Emulator) GetActiveHeight() int {
	return video.Height
}

// GetAudioSamples drains the ring buffer as interleaved stereo PCM.
func (e *Emulator) GetAudioSamples() []int16 {
	samples := e.engine.ReadRingBuffer().Samples()
	e.pcm = e.pcm[:0]
	for _, s := range samples {
		e.pcm = append(e.pcm, toPCM16(s))
	}
	return e.pcm
}

func toPCM16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * math.MaxInt16))
}

var inputButtons = []struct {
	bit    uint
	button gbplus.ButtonID
}{
	{emucore.ButtonUp, gbplus.ButtonUp},
	{emucore.ButtonDown, gbplus.ButtonDown},
	{emucore.ButtonLeft, gbplus.ButtonLeft},
	{emucore.ButtonRight, gbplus.ButtonRight},
	{buttonA, gbplus.ButtonA},
	{buttonB, gbplus.ButtonB},
	{buttonSelect, gbplus.ButtonSelect},
	{buttonStart, gbplus.ButtonStart},
}

// SetInput applies the button bitmask of player 0. Other players are ignored.
func (e *Emulator) SetInput(player int, buttons uint32) {
	if player != 0 {
		return
	}
	for _, b := range inputButtons {
		pressed := buttons&(1<<b.bit) != 0
		if pressed != e.engine.Held(b.button) {
			e.engine.UpdateInput(b.button, pressed)
		}
	}
}

func (e *Emulator) GetRegion() emucore.Region {
	return emucore.RegionNTSC
}

func (e *Emulator) SetRegion(region emucore.Region) {}

// GetTiming rounds the frame rate of about 59.73 Hz to a whole number. Hosts
// pacing by it run 0.45% fast.
func (e *Emulator) GetTiming() emucore.Timing {
	return emucore.Timing{FPS: int(math.Round(timing.TargetFPS())), Scanlines: 154}
}

func (e *Emulator) SetOption(key string, value string) {
	switch key {
	case paletteOption:
		if i, ok := video.PaletteByName(value); ok {
			_ = e.engine.ChangePalette(i)
			return
		}
		e.logger.Warn("unknown palette", "value", value)
	}
}

func (e *Emulator) Close() {}

// Serialize captures the complete emulator state.
func (e *Emulator) Serialize() ([]byte, error) {
	state, err := e.engine.CreateSaveState()
	if err != nil {
		return nil, err
	}
	return state.Copy(), nil
}

// Deserialize restores a state and reattaches the ROM in one step. States
// of other games are rejected and the running game continues.
func (e *Emulator) Deserialize(data []byte) error {
	return e.engine.RestoreState(data, e.rom)
}

func (e *Emulator) HasSRAM() bool {
	info, err := e.engine.Info()
	return err == nil && info.Battery && e.engine.SaveLength() > 0
}

func (e *Emulator) GetSRAM() []byte {
	return e.engine.SaveGame().Copy()
}

func (e *Emulator) SetSRAM(data []byte) {
	if err := e.engine.LoadSave(data); err != nil {
		e.logger.Warn("battery save not loaded", "error", err)
	}
}

// ReadMemory reads from the 16 bit CPU address space.
func (e *Emulator) ReadMemory(addr uint32, buf []byte) uint32 {
	var count uint32
	for i := range buf {
		cur := addr + uint32(i)
		if cur > 0xFFFF {
			return count
		}
		buf[i] = e.engine.Peek(uint16(cur))
		count++
	}
	return count
}

const (
	wramStart = 0xC000
	wramSize  = 0x2000
)

func (e *Emulator) MemoryMap() []emucore.MemoryRegion {
	regions := []emucore.MemoryRegion{{Type: emucore.MemorySystemRAM, Size: wramSize}}
	if n := e.engine.SaveLength(); n > 0 {
		regions = append(regions, emucore.MemoryRegion{Type: emucore.MemorySaveRAM, Size: n})
	}
	return regions
}

// ReadRegion returns a copy of cartridge RAM or the visible work RAM banks.
func (e *Emulator) ReadRegion(regionType int) []byte {
	switch regionType {
	case emucore.MemorySaveRAM:
		return e.GetSRAM()
	case emucore.MemorySystemRAM:
		out := make([]byte, wramSize)
		e.ReadMemory(wramStart, out)
		return out
	}
	return nil
}

func (e *Emulator) WriteRegion(regionType int, data []byte) {
	switch regionType {
	case emucore.MemorySaveRAM:
		e.SetSRAM(data)
	case emucore.MemorySystemRAM:
		for i, b := range data[:min(len(data), wramSize)] {
			e.engine.Poke(uint16(wramStart+i), b)
		}
	}
}
