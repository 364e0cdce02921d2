package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	emucore "github.com/user-none/eblitui/api"
	"github.com/valerio/gbplus/gbplus"
	"github.com/valerio/gbplus/gbplus/internal/testrom"
	"github.com/valerio/gbplus/gbplus/video"
)

// joypadROM selects the button group and copies P1 to 0xC000 in a loop.
func joypadROM() []byte {
	return testrom.New(0x03, 0x00, 0x02).
		Title("ADAPTER").
		Code(0x150,
			0x3E, 0x10, // LD A,0x10
			0xE0, 0x00, // LDH (P1),A
			0xF0, 0x00, // LDH A,(P1)
			0xEA, 0x00, 0xC0, // LD (0xC000),A
			0x18, 0xF9, // JR -7
		).Bytes()
}

func newTestEmulator(t *testing.T) *Emulator {
	t.Helper()
	f := &Factory{}
	emu, err := f.CreateEmulator(joypadROM(), emucore.RegionNTSC)
	require.NoError(t, err)
	return emu.(*Emulator)
}

func TestSystemInfo(t *testing.T) {
	info := (&Factory{}).SystemInfo()
	assert.Equal(t, gbplus.Name, info.Name)
	assert.Equal(t, video.Width, info.ScreenWidth)
	assert.Equal(t, video.Height, info.MaxScreenHeight)
	assert.Len(t, info.Buttons, 4)
	require.Len(t, info.CoreOptions, 1)
	assert.Len(t, info.CoreOptions[0].Values, len(video.Palettes))
	assert.Contains(t, info.CoreOptions[0].Values, info.CoreOptions[0].Default)
}

func TestCreateEmulatorRejectsBadROM(t *testing.T) {
	_, err := (&Factory{}).CreateEmulator(make([]byte, 16), emucore.RegionNTSC)
	var format *gbplus.RomFormatError
	assert.ErrorAs(t, err, &format)
}

func TestRunFrame(t *testing.T) {
	e := newTestEmulator(t)
	e.RunFrame()
	assert.Len(t, e.GetFramebuffer(), e.GetFramebufferStride()*e.GetActiveHeight())

	pcm := e.GetAudioSamples()
	assert.NotEmpty(t, pcm)
	assert.Zero(t, len(pcm)%2, "stereo pairs")
	assert.Equal(t, emucore.Timing{FPS: 60, Scanlines: 154}, e.GetTiming())
}

func TestSetInput(t *testing.T) {
	e := newTestEmulator(t)
	e.SetInput(0, 1<<buttonA|1<<buttonStart)
	e.RunFrame()
	assert.Equal(t, uint8(0x06), e.Engine().Peek(0xC000)&0x0F)

	e.SetInput(1, 0) // second player does not exist
	assert.True(t, e.Engine().Held(gbplus.ButtonA))

	e.SetInput(0, 0)
	e.RunFrame()
	assert.Equal(t, uint8(0x0F), e.Engine().Peek(0xC000)&0x0F)
}

func TestToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
		{0.5, 16384},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toPCM16(tt.in), "%v", tt.in)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	e := newTestEmulator(t)
	for range 3 {
		e.RunFrame()
	}
	state, err := e.Serialize()
	require.NoError(t, err)

	e.RunFrame()
	want := append([]byte(nil), e.GetFramebuffer()...)

	require.NoError(t, e.Deserialize(state))
	e.RunFrame()
	assert.Equal(t, want, e.GetFramebuffer())

	assert.Error(t, e.Deserialize([]byte("garbage")))
}

func TestDeserializeOtherGame(t *testing.T) {
	e := newTestEmulator(t)
	e.RunFrame()

	other, err := (&Factory{}).CreateEmulator(testrom.New(0x00, 0x00, 0x00).Title("OTHER").Bytes(), emucore.RegionNTSC)
	require.NoError(t, err)
	other.RunFrame()
	state, err := other.(*Emulator).Serialize()
	require.NoError(t, err)

	var format *gbplus.StateFormatError
	require.ErrorAs(t, e.Deserialize(state), &format)

	assert.False(t, e.Engine().AwaitingROM())
	info, err := e.Engine().Info()
	require.NoError(t, err)
	assert.Equal(t, "ADAPTER", info.Title)
	require.NoError(t, e.Engine().StepFrame())
}

func TestBatterySaver(t *testing.T) {
	e := newTestEmulator(t)
	require.True(t, e.HasSRAM())
	sram := make([]byte, 0x2000)
	sram[0] = 0x99
	e.SetSRAM(sram)
	assert.Equal(t, sram, e.GetSRAM())
	assert.Equal(t, sram, e.ReadRegion(emucore.MemorySaveRAM))
}

func TestMemoryAccess(t *testing.T) {
	e := newTestEmulator(t)
	e.WriteRegion(emucore.MemorySystemRAM, []byte{0, 0xAA, 0xBB})

	buf := make([]byte, 2)
	assert.Equal(t, uint32(2), e.ReadMemory(0xC001, buf))
	assert.Equal(t, []byte{0xAA, 0xBB}, buf)
	assert.Equal(t, uint32(1), e.ReadMemory(0xFFFF, buf), "stops at the end of the address space")

	wram := e.ReadRegion(emucore.MemorySystemRAM)
	assert.Len(t, wram, wramSize)
	assert.Equal(t, uint8(0xBB), wram[2])

	assert.Len(t, e.MemoryMap(), 2)
}

func TestSetOptionPalette(t *testing.T) {
	e := newTestEmulator(t)
	e.SetOption(paletteOption, "gray")
	assert.Equal(t, 0, e.Engine().Palette())
	e.SetOption(paletteOption, "nope")
	assert.Equal(t, 0, e.Engine().Palette())
}
