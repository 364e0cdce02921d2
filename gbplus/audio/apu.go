package audio

import (
	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// APU implements the Game Boy's Audio Processing Unit
// Reference: https://gbdev.io/pandocs/Audio.html
//
// It is ticked with single speed CPU cycles and pushes interleaved stereo
// float32 samples into a RingBuffer at the configured sample rate.
type APU struct {
	ring       *RingBuffer
	sampleRate int

	powered   bool       // Master audio enable (NR52 bit 7)
	registers [0x20]byte // Audio registers FF10-FF2F as last written

	ch1 square
	ch2 square
	ch3 wave
	ch4 noise

	// Frame sequencer state
	// Runs at 512 Hz, advances every cyclesPerStep (8192) CPU cycles
	sequencerStep   int
	sequencerCycles int

	// sampleClock accumulates cycles*sampleRate, a sample is due every
	// cpuFrequency units so the rate stays exact without floats.
	sampleClock int

	muted [4]bool
}

// New creates a powered off APU writing to ring, which may be nil.
func New(ring *RingBuffer, sampleRate int) *APU {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &APU{
		ring:       ring,
		sampleRate: sampleRate,
		ch1:        newSquare(true),
		ch2:        newSquare(false),
		ch3:        newWave(),
		ch4:        newNoise(),
	}
}

// SetRing replaces the sample sink.
func (a *APU) SetRing(ring *RingBuffer) {
	a.ring = ring
}

func (a *APU) SampleRate() int { return a.sampleRate }

// Tick advances the APU by cycles, emitting the samples that fall due.
func (a *APU) Tick(cycles int) {
	for cycles > 0 {
		step := (cpuFrequency - a.sampleClock + a.sampleRate - 1) / a.sampleRate
		if step > cycles {
			step = cycles
		}
		a.advance(step)
		cycles -= step

		a.sampleClock += step * a.sampleRate
		if a.sampleClock >= cpuFrequency {
			a.sampleClock -= cpuFrequency
			a.emit()
		}
	}
}

func (a *APU) advance(cycles int) {
	if !a.powered {
		return
	}

	a.sequencerCycles += cycles
	for a.sequencerCycles >= cyclesPerStep {
		a.sequencerCycles -= cyclesPerStep
		a.clockSequencer()
	}

	a.ch1.step(cycles)
	a.ch2.step(cycles)
	a.ch3.step(cycles)
	a.ch4.step(cycles)
}

// clockSequencer runs one frame sequencer step which controls sweep,
// length counter, and envelope timing.
//
//	Step   Length  Sweep  Envelope
//	0      Clock   -      -
//	1      -       -      -
//	2      Clock   Clock  -
//	3      -       -      -
//	4      Clock   -      -
//	5      -       -      -
//	6      Clock   Clock  -
//	7      -       -      Clock
//
// Reference: https://gbdev.io/pandocs/Audio_details.html#frame-sequencer
func (a *APU) clockSequencer() {
	switch a.sequencerStep {
	case 0, 4:
		a.clockLength()
	case 2, 6:
		a.clockLength()
		a.ch1.clockSweep()
	case 7:
		a.ch1.envelope.clock()
		a.ch2.envelope.clock()
		a.ch4.envelope.clock()
	}
	a.sequencerStep = (a.sequencerStep + 1) & 7
}

func (a *APU) clockLength() {
	if !a.ch1.length.clock() {
		a.ch1.enabled = false
	}
	if !a.ch2.length.clock() {
		a.ch2.enabled = false
	}
	if !a.ch3.length.clock() {
		a.ch3.enabled = false
	}
	if !a.ch4.length.clock() {
		a.ch4.enabled = false
	}
}

func (a *APU) emit() {
	left, right := a.mix()
	if a.ring != nil {
		a.ring.Push(left, right)
	}
}

// mix routes the channels through NR51 and scales by the NR50 volumes.
func (a *APU) mix() (left, right float32) {
	if !a.powered {
		return 0, 0
	}

	outputs := [4]float32{a.ch1.output(), a.ch2.output(), a.ch3.output(), a.ch4.output()}
	panning := a.registers[addr.NR51-addr.AudioStart]
	for i, v := range outputs {
		if a.muted[i] {
			continue
		}
		if bit.IsSet(uint8(i), panning) {
			right += v
		}
		if bit.IsSet(uint8(i+4), panning) {
			left += v
		}
	}

	volume := a.registers[addr.NR50-addr.AudioStart]
	left *= float32((volume>>4)&0x07+1) / 8 / 4
	right *= float32(volume&0x07+1) / 8 / 4
	return left, right
}

func (a *APU) Read(address uint16) uint8 {
	switch {
	case address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd:
		return a.ch3.ram[address-addr.WaveRAMStart]
	case address == addr.NR52:
		status := uint8(0x70)
		status = bit.SetTo(7, status, a.powered)
		status = bit.SetTo(0, status, a.ch1.enabled)
		status = bit.SetTo(1, status, a.ch2.enabled)
		status = bit.SetTo(2, status, a.ch3.enabled)
		status = bit.SetTo(3, status, a.ch4.enabled)
		return status
	case address >= addr.AudioStart && address < addr.WaveRAMStart:
		index := address - addr.AudioStart
		return a.registers[index] | readMasks[index]
	}
	return 0xFF
}

func (a *APU) Write(address uint16, value uint8) {
	switch {
	case address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd:
		a.ch3.ram[address-addr.WaveRAMStart] = value
		return
	case address == addr.NR52:
		a.setPower(bit.IsSet(7, value))
		return
	case address < addr.AudioStart || address >= addr.WaveRAMStart:
		return
	}

	// registers are read only while powered off
	if !a.powered {
		return
	}
	a.registers[address-addr.AudioStart] = value

	switch address {
	case addr.NR10:
		a.ch1.sweep.write(value)
	case addr.NR11, addr.NR12, addr.NR13, addr.NR14:
		writeSquare(&a.ch1, address-addr.NR10, value)
	case addr.NR21, addr.NR22, addr.NR23, addr.NR24:
		writeSquare(&a.ch2, address-addr.NR21+1, value)

	case addr.NR30:
		a.ch3.dacOn = bit.IsSet(7, value)
		if !a.ch3.dacOn {
			a.ch3.enabled = false
		}
	case addr.NR31:
		a.ch3.length.load(int(value))
	case addr.NR32:
		a.ch3.level = (value >> 5) & 0x03
	case addr.NR33:
		a.ch3.period = a.ch3.period&0x700 | uint16(value)
	case addr.NR34:
		a.ch3.period = a.ch3.period&0xFF | uint16(value&0x07)<<8
		a.ch3.length.enabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.ch3.trigger()
		}

	case addr.NR41:
		a.ch4.length.load(int(value & 0x3F))
	case addr.NR42:
		a.ch4.envelope.write(value)
		if !a.ch4.envelope.dacOn() {
			a.ch4.enabled = false
		}
	case addr.NR43:
		a.ch4.write(value)
	case addr.NR44:
		a.ch4.length.enabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.ch4.trigger()
		}
	}
}

// writeSquare handles NRx1-NRx4 of a pulse channel, reg being 1-4.
func writeSquare(ch *square, reg uint16, value uint8) {
	switch reg {
	case 1:
		ch.duty = value >> 6
		ch.length.load(int(value & 0x3F))
	case 2:
		ch.envelope.write(value)
		if !ch.envelope.dacOn() {
			ch.enabled = false
		}
	case 3:
		ch.period = ch.period&0x700 | uint16(value)
	case 4:
		ch.period = ch.period&0xFF | uint16(value&0x07)<<8
		ch.length.enabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			ch.trigger()
		}
	}
}

// setPower handles NR52 bit 7. Powering off clears every register except
// wave RAM; powering on restarts the frame sequencer.
func (a *APU) setPower(on bool) {
	if on == a.powered {
		return
	}
	a.powered = on
	if on {
		a.sequencerStep = 0
		a.sequencerCycles = 0
		return
	}

	ram := a.ch3.ram
	a.registers = [len(a.registers)]byte{}
	a.ch1 = newSquare(true)
	a.ch2 = newSquare(false)
	a.ch3 = newWave()
	a.ch3.ram = ram
	a.ch4 = newNoise()
}

// Powered reports NR52 bit 7.
func (a *APU) Powered() bool { return a.powered }

// ToggleChannel toggles muting for a specific channel (1-4)
func (a *APU) ToggleChannel(channel int) {
	if channel >= 1 && channel <= 4 {
		a.muted[channel-1] = !a.muted[channel-1]
	}
}

// SoloChannel mutes all channels except the specified one
func (a *APU) SoloChannel(channel int) {
	for i := range a.muted {
		a.muted[i] = i != channel-1
	}
}

// UnmuteAll unmutes all channels
func (a *APU) UnmuteAll() {
	a.muted = [4]bool{}
}

// ChannelStatus reports which channels are playing and not muted.
func (a *APU) ChannelStatus() (ch1, ch2, ch3, ch4 bool) {
	return !a.muted[0] && a.ch1.enabled,
		!a.muted[1] && a.ch2.enabled,
		!a.muted[2] && a.ch3.enabled,
		!a.muted[3] && a.ch4.enabled
}

func (a *APU) Save(e *savestate.Encoder) {
	e.Section("APU_")
	e.Bool(a.powered)
	e.Bytes(a.registers[:])
	e.Int(a.sequencerStep)
	e.Int(a.sequencerCycles)
	e.Int(a.sampleClock)
	a.ch1.save(e)
	a.ch2.save(e)
	a.ch3.save(e)
	a.ch4.save(e)
}

func (a *APU) Load(d *savestate.Decoder) {
	d.Section("APU_")
	a.powered = d.Bool()
	d.BytesInto(a.registers[:])
	a.sequencerStep = d.Int()
	a.sequencerCycles = d.Int()
	a.sampleClock = d.Int()
	a.ch1.load(d)
	a.ch2.load(d)
	a.ch3.load(d)
	a.ch4.load(d)

	switch {
	case a.sequencerStep < 0 || a.sequencerStep > 7:
		d.Fail("frame sequencer step %d out of range", a.sequencerStep)
	case a.sequencerCycles < 0 || a.sequencerCycles >= cyclesPerStep:
		d.Fail("frame sequencer cycles %d out of range", a.sequencerCycles)
	case a.sampleClock < 0 || a.sampleClock >= cpuFrequency:
		d.Fail("sample clock %d out of range", a.sampleClock)
	}
}
