package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/savestate"
)

func newTestAPU() (*APU, *RingBuffer) {
	ring := NewRingBuffer(1 << 18)
	apu := New(ring, DefaultSampleRate)
	apu.Write(addr.NR52, 0x80)
	apu.Write(addr.NR50, 0x77)
	apu.Write(addr.NR51, 0xFF)
	return apu, ring
}

func drain(ring *RingBuffer) []float32 {
	out := make([]float32, ring.Len())
	n := ring.Read(out)
	return out[:n]
}

func TestAPU_RegisterMapping(t *testing.T) {
	tests := []struct {
		name     string
		register uint16
		value    uint8
		testFunc func(t *testing.T, apu *APU)
	}{
		{
			name:     "NR10 sweep",
			register: addr.NR10, value: 0x3A, // pace=3, negate, shift=2
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(3), apu.ch1.sweep.pace)
				assert.True(t, apu.ch1.sweep.negate)
				assert.Equal(t, uint8(2), apu.ch1.sweep.shift)
			},
		},
		{
			name:     "NR11 duty and length timer",
			register: addr.NR11, value: 0xBF, // duty=2, length timer=63
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(2), apu.ch1.duty, "CH1 duty should be 2")
				assert.Equal(t, 1, apu.ch1.length.counter, "CH1 length should be 64-63")
			},
		},
		{
			name:     "NR12 volume and envelope",
			register: addr.NR12, value: 0xF7, // vol=15, up=0, pace=7
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(15), apu.ch1.envelope.initial)
				assert.False(t, apu.ch1.envelope.increase)
				assert.Equal(t, uint8(7), apu.ch1.envelope.pace)
				assert.True(t, apu.ch1.envelope.dacOn())
			},
		},
		{
			name:     "NR23 period low",
			register: addr.NR23, value: 0xAB,
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint16(0xAB), apu.ch2.period)
			},
		},
		{
			name:     "NR24 period high keeps low byte",
			register: addr.NR24, value: 0x45, // length enable, period bits 0b101
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint16(0x500), apu.ch2.period)
				assert.True(t, apu.ch2.length.enabled)
				assert.False(t, apu.ch2.enabled, "no trigger without bit 7")
			},
		},
		{
			name:     "NR31 wave length",
			register: addr.NR31, value: 0x10,
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, 256-0x10, apu.ch3.length.counter)
			},
		},
		{
			name:     "NR32 output level",
			register: addr.NR32, value: 0x40,
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(2), apu.ch3.level)
			},
		},
		{
			name:     "NR43 noise clock",
			register: addr.NR43, value: 0x5B, // shift=5, width7, divisor=3
			testFunc: func(t *testing.T, apu *APU) {
				assert.Equal(t, uint8(5), apu.ch4.shift)
				assert.True(t, apu.ch4.width7)
				assert.Equal(t, 48<<5, apu.ch4.period())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apu, _ := newTestAPU()
			apu.Write(tt.register, tt.value)
			tt.testFunc(t, apu)
		})
	}
}

func TestAPU_ReadMasks(t *testing.T) {
	apu, _ := newTestAPU()

	apu.Write(addr.NR11, 0x80)
	assert.Equal(t, uint8(0xBF), apu.Read(addr.NR11))
	apu.Write(addr.NR13, 0x12)
	assert.Equal(t, uint8(0xFF), apu.Read(addr.NR13), "period low is write only")
	apu.Write(addr.NR32, 0x20)
	assert.Equal(t, uint8(0xBF), apu.Read(addr.NR32))
	assert.Equal(t, uint8(0xFF), apu.Read(0xFF15))
	assert.Equal(t, uint8(0xFF), apu.Read(0xFF27))
	assert.Equal(t, uint8(0x77), apu.Read(addr.NR50))
	assert.Equal(t, uint8(0xF0), apu.Read(addr.NR52))
}

func TestAPU_PowerOff(t *testing.T) {
	apu, _ := newTestAPU()
	apu.Write(addr.WaveRAMStart, 0x12)
	apu.Write(addr.NR12, 0xF0)
	apu.Write(addr.NR14, 0x80)
	require.Equal(t, uint8(0xF1), apu.Read(addr.NR52))

	apu.Write(addr.NR52, 0x00)
	assert.Equal(t, uint8(0x70), apu.Read(addr.NR52))
	assert.Equal(t, uint8(0x00), apu.Read(addr.NR50))
	assert.Equal(t, uint8(0x00), apu.Read(addr.NR12))
	assert.Equal(t, uint8(0x12), apu.Read(addr.WaveRAMStart), "wave RAM survives power off")

	apu.Write(addr.NR50, 0x77)
	assert.Equal(t, uint8(0x00), apu.Read(addr.NR50), "writes are ignored while off")

	apu.Write(addr.WaveRAMStart+1, 0x34)
	assert.Equal(t, uint8(0x34), apu.Read(addr.WaveRAMStart+1))

	apu.Write(addr.NR52, 0x80)
	apu.Write(addr.NR50, 0x77)
	assert.Equal(t, uint8(0x77), apu.Read(addr.NR50))
}

func TestAPU_Trigger(t *testing.T) {
	t.Run("square with DAC on", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR22, 0xF0)
		apu.Write(addr.NR24, 0x80)
		assert.Equal(t, uint8(0x02), apu.Read(addr.NR52)&0x0F)
	})

	t.Run("square with DAC off", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR22, 0x00)
		apu.Write(addr.NR24, 0x80)
		assert.Equal(t, uint8(0x00), apu.Read(addr.NR52)&0x0F)
	})

	t.Run("DAC off stops a playing channel", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR42, 0xF0)
		apu.Write(addr.NR44, 0x80)
		require.Equal(t, uint8(0x08), apu.Read(addr.NR52)&0x0F)
		apu.Write(addr.NR42, 0x00)
		assert.Equal(t, uint8(0x00), apu.Read(addr.NR52)&0x0F)
	})

	t.Run("wave follows NR30", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR34, 0x80)
		assert.Equal(t, uint8(0x00), apu.Read(addr.NR52)&0x04)
		apu.Write(addr.NR30, 0x80)
		apu.Write(addr.NR34, 0x80)
		assert.Equal(t, uint8(0x04), apu.Read(addr.NR52)&0x04)
	})
}

func TestAPU_LengthCounter(t *testing.T) {
	apu, _ := newTestAPU()
	apu.Write(addr.NR12, 0xF0)
	apu.Write(addr.NR11, 0x3E) // length 2
	apu.Write(addr.NR14, 0xC0) // trigger with length enabled

	apu.Tick(cyclesPerStep) // step 0 clocks length
	assert.True(t, apu.ch1.enabled)
	apu.Tick(2 * cyclesPerStep) // steps 1, 2
	assert.False(t, apu.ch1.enabled)
	assert.Equal(t, uint8(0x00), apu.Read(addr.NR52)&0x01)
}

func TestAPU_LengthDisabledKeepsPlaying(t *testing.T) {
	apu, _ := newTestAPU()
	apu.Write(addr.NR12, 0xF0)
	apu.Write(addr.NR11, 0x3F)
	apu.Write(addr.NR14, 0x80)
	apu.Tick(16 * cyclesPerStep)
	assert.True(t, apu.ch1.enabled)
}

func TestAPU_Envelope(t *testing.T) {
	apu, _ := newTestAPU()
	apu.Write(addr.NR12, 0xF1) // volume 15, decrease, pace 1
	apu.Write(addr.NR14, 0x80)

	apu.Tick(7 * cyclesPerStep)
	assert.Equal(t, uint8(15), apu.ch1.envelope.volume)
	apu.Tick(cyclesPerStep) // step 7
	assert.Equal(t, uint8(14), apu.ch1.envelope.volume)
	apu.Tick(8 * cyclesPerStep)
	assert.Equal(t, uint8(13), apu.ch1.envelope.volume)

	up, _ := newTestAPU()
	up.Write(addr.NR22, 0x09) // volume 0, increase, pace 1
	up.Write(addr.NR24, 0x80)
	up.Tick(8 * cyclesPerStep)
	assert.Equal(t, uint8(1), up.ch2.envelope.volume)
}

func TestAPU_Sweep(t *testing.T) {
	t.Run("overflow on trigger", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR10, 0x11) // pace 1, add, shift 1
		apu.Write(addr.NR12, 0xF0)
		apu.Write(addr.NR13, 0xFF)
		apu.Write(addr.NR14, 0x87)
		assert.False(t, apu.ch1.enabled)
	})

	t.Run("period increases", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR10, 0x11)
		apu.Write(addr.NR12, 0xF0)
		apu.Write(addr.NR13, 0x00)
		apu.Write(addr.NR14, 0x81) // period 0x100
		require.True(t, apu.ch1.enabled)

		apu.Tick(3 * cyclesPerStep) // step 2 clocks sweep
		assert.Equal(t, uint16(0x180), apu.ch1.period)
	})

	t.Run("negate decreases", func(t *testing.T) {
		apu, _ := newTestAPU()
		apu.Write(addr.NR10, 0x19)
		apu.Write(addr.NR12, 0xF0)
		apu.Write(addr.NR13, 0x00)
		apu.Write(addr.NR14, 0x81)
		apu.Tick(3 * cyclesPerStep)
		assert.Equal(t, uint16(0x080), apu.ch1.period)
	})
}

func TestAPU_SampleRate(t *testing.T) {
	apu, ring := newTestAPU()
	apu.Tick(cpuFrequency)
	assert.Equal(t, DefaultSampleRate*Channels, ring.Len())

	ring.Reset()
	for range 70224 / 4 {
		apu.Tick(4)
	}
	frames := ring.Len() / Channels
	assert.InDelta(t, 738, frames, 1)
}

func TestAPU_SilentWhenIdle(t *testing.T) {
	apu, ring := newTestAPU()
	apu.Tick(10000)
	for _, s := range drain(ring) {
		assert.Zero(t, s)
	}

	off := New(ring, DefaultSampleRate)
	off.Tick(10000)
	assert.NotZero(t, ring.Len(), "a powered off APU still produces silence")
}

func TestAPU_Mixing(t *testing.T) {
	apu, ring := newTestAPU()
	apu.Write(addr.NR51, 0x10) // channel 1 left only
	apu.Write(addr.NR11, 0x80) // 50% duty
	apu.Write(addr.NR12, 0xF0)
	apu.Write(addr.NR14, 0x80)
	apu.Tick(20000)

	samples := drain(ring)
	require.NotEmpty(t, samples)
	var high, low bool
	for i := 0; i < len(samples); i += 2 {
		left, right := samples[i], samples[i+1]
		assert.Zero(t, right)
		assert.InDelta(t, 0.25, abs(left), 1e-6)
		high = high || left > 0
		low = low || left < 0
	}
	assert.True(t, high && low, "square wave swings both ways")

	t.Run("master volume", func(t *testing.T) {
		apu.Write(addr.NR50, 0x30) // left 3, right 0
		apu.Tick(2000)
		for i, s := range drain(ring) {
			if i%2 == 0 {
				assert.InDelta(t, 0.125, abs(s), 1e-6)
			}
		}
	})

	t.Run("muted channel", func(t *testing.T) {
		apu.ToggleChannel(1)
		ch1, _, _, _ := apu.ChannelStatus()
		assert.False(t, ch1)
		apu.Tick(2000)
		for _, s := range drain(ring) {
			assert.Zero(t, s)
		}
		apu.UnmuteAll()
		ch1, _, _, _ = apu.ChannelStatus()
		assert.True(t, ch1)
	})
}

func TestAPU_Wave(t *testing.T) {
	apu, ring := newTestAPU()
	for i := uint16(0); i < waveRAMSize; i++ {
		apu.Write(addr.WaveRAMStart+i, 0xF0)
	}
	apu.Write(addr.NR30, 0x80)
	apu.Write(addr.NR32, 0x20) // full volume
	apu.Write(addr.NR33, 0x00)
	apu.Write(addr.NR34, 0x87)
	apu.Tick(20000)

	var high, low bool
	for _, s := range drain(ring) {
		high = high || s > 0
		low = low || s < 0
	}
	assert.True(t, high && low)
}

func TestAPU_Noise(t *testing.T) {
	apu, _ := newTestAPU()
	apu.Write(addr.NR42, 0xF0)
	apu.Write(addr.NR43, 0x00)
	apu.Write(addr.NR44, 0x80)
	require.Equal(t, uint16(0x7FFF), apu.ch4.lfsr)

	apu.Tick(8)
	assert.Equal(t, uint16(0x3FFF), apu.ch4.lfsr)

	apu.Write(addr.NR43, 0x08) // 7-bit mode
	apu.Write(addr.NR44, 0x80)
	apu.Tick(8)
	assert.Equal(t, uint16(0x3FBF), apu.ch4.lfsr)
}

func TestAPU_ChannelControls(t *testing.T) {
	apu, _ := newTestAPU()
	for _, reg := range []uint16{addr.NR12, addr.NR22, addr.NR42} {
		apu.Write(reg, 0xF0)
	}
	apu.Write(addr.NR30, 0x80)
	for _, reg := range []uint16{addr.NR14, addr.NR24, addr.NR34, addr.NR44} {
		apu.Write(reg, 0x80)
	}

	apu.SoloChannel(3)
	ch1, ch2, ch3, ch4 := apu.ChannelStatus()
	assert.Equal(t, []bool{false, false, true, false}, []bool{ch1, ch2, ch3, ch4})

	apu.ToggleChannel(3)
	apu.ToggleChannel(9)
	_, _, ch3, _ = apu.ChannelStatus()
	assert.False(t, ch3)
}

func TestAPU_SaveLoad(t *testing.T) {
	apu, ring := newTestAPU()
	apu.Write(addr.NR10, 0x15)
	apu.Write(addr.NR11, 0x40)
	apu.Write(addr.NR12, 0xF3)
	apu.Write(addr.NR13, 0x40)
	apu.Write(addr.NR14, 0x86)
	apu.Write(addr.NR42, 0xA1)
	apu.Write(addr.NR43, 0x21)
	apu.Write(addr.NR44, 0x80)
	apu.Write(addr.WaveRAMStart+3, 0x5A)
	apu.Tick(12345)
	ring.Reset()

	e := savestate.NewEncoder()
	apu.Save(e)

	restoredRing := NewRingBuffer(1 << 16)
	restored := New(restoredRing, DefaultSampleRate)
	d := savestate.NewDecoder(e.Data())
	restored.Load(d)
	require.NoError(t, d.Err())

	for _, reg := range []uint16{addr.NR10, addr.NR11, addr.NR12, addr.NR43, addr.NR50, addr.NR51, addr.NR52, addr.WaveRAMStart + 3} {
		assert.Equal(t, apu.Read(reg), restored.Read(reg), "register 0x%04X", reg)
	}

	apu.Tick(30000)
	restored.Tick(30000)
	assert.Equal(t, drain(ring), drain(restoredRing), "restored APU produces the same samples")
}

func TestAPU_LoadRejectsBadState(t *testing.T) {
	apu, _ := newTestAPU()
	e := savestate.NewEncoder()
	apu.Save(e)
	data := e.Data()

	d := savestate.NewDecoder(data[:len(data)/2])
	New(nil, 0).Load(d)
	assert.Error(t, d.Err())
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
