package audio

import (
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// envelope is the volume unit shared by the square and noise channels (NRx2).
type envelope struct {
	initial  uint8
	increase bool
	pace     uint8
	volume   uint8
	timer    uint8
}

func (e *envelope) write(value uint8) {
	e.initial = value >> 4
	e.increase = bit.IsSet(3, value)
	e.pace = value & 0x07
}

// dacOn reports whether the upper 5 bits of NRx2 are not all zero.
func (e *envelope) dacOn() bool {
	return e.initial != 0 || e.increase
}

func (e *envelope) trigger() {
	e.volume = e.initial
	e.timer = e.pace
}

func (e *envelope) clock() {
	if e.pace == 0 {
		return
	}
	if e.timer > 0 {
		e.timer--
	}
	if e.timer != 0 {
		return
	}
	e.timer = e.pace
	if e.increase && e.volume < 15 {
		e.volume++
	} else if !e.increase && e.volume > 0 {
		e.volume--
	}
}

func (e *envelope) save(enc *savestate.Encoder) {
	enc.U8(e.initial)
	enc.Bool(e.increase)
	enc.U8(e.pace)
	enc.U8(e.volume)
	enc.U8(e.timer)
}

func (e *envelope) load(d *savestate.Decoder) {
	e.initial = d.U8() & 0x0F
	e.increase = d.Bool()
	e.pace = d.U8() & 0x07
	e.volume = d.U8() & 0x0F
	e.timer = d.U8()
}

// lengthCounter silences a channel once it reaches zero while enabled.
type lengthCounter struct {
	max     int
	counter int
	enabled bool
}

func (l *lengthCounter) load(value int) {
	l.counter = l.max - value
}

func (l *lengthCounter) trigger() {
	if l.counter == 0 {
		l.counter = l.max
	}
}

// clock returns false when the counter expired on this clock.
func (l *lengthCounter) clock() bool {
	if !l.enabled || l.counter == 0 {
		return true
	}
	l.counter--
	return l.counter != 0
}

func (l *lengthCounter) save(e *savestate.Encoder) {
	e.Int(l.counter)
	e.Bool(l.enabled)
}

func (l *lengthCounter) loadState(d *savestate.Decoder) {
	l.counter = d.Int()
	l.enabled = d.Bool()
	if l.counter < 0 || l.counter > l.max {
		d.Fail("length counter %d out of range", l.counter)
	}
}

// sweep is the period sweep unit of channel 1 (NR10).
type sweep struct {
	pace    uint8
	negate  bool
	shift   uint8
	timer   uint8
	enabled bool
	shadow  uint16
}

func (s *sweep) write(value uint8) {
	s.pace = (value >> 4) & 0x07
	s.negate = bit.IsSet(3, value)
	s.shift = value & 0x07
}

func (s *sweep) reload() {
	s.timer = s.pace
	if s.timer == 0 {
		s.timer = 8
	}
}

func (s *sweep) next() uint16 {
	delta := s.shadow >> s.shift
	if s.negate {
		return s.shadow - delta
	}
	return s.shadow + delta
}

// square is a pulse channel, channel 1 additionally has a sweep unit.
type square struct {
	enabled  bool
	duty     uint8
	period   uint16
	timer    int
	phase    uint8
	length   lengthCounter
	envelope envelope
	sweep    *sweep
}

func newSquare(withSweep bool) square {
	s := square{length: lengthCounter{max: squareLength}}
	if withSweep {
		s.sweep = &sweep{}
	}
	return s
}

func (s *square) reloadTimer() {
	s.timer = int(2048-s.period) * 4
}

func (s *square) trigger() {
	s.length.trigger()
	s.reloadTimer()
	s.envelope.trigger()
	s.enabled = s.envelope.dacOn()

	if sw := s.sweep; sw != nil {
		sw.shadow = s.period
		sw.reload()
		sw.enabled = sw.pace != 0 || sw.shift != 0
		if sw.shift != 0 && sw.next() > maxPeriod {
			s.enabled = false
		}
	}
}

func (s *square) clockSweep() {
	sw := s.sweep
	if sw == nil {
		return
	}
	if sw.timer > 0 {
		sw.timer--
	}
	if sw.timer != 0 {
		return
	}
	sw.reload()
	if !sw.enabled || sw.pace == 0 {
		return
	}

	period := sw.next()
	if period > maxPeriod {
		s.enabled = false
		return
	}
	if sw.shift != 0 {
		sw.shadow = period
		s.period = period
		// overflow is checked again with the new period
		if sw.next() > maxPeriod {
			s.enabled = false
		}
	}
}

func (s *square) step(cycles int) {
	s.timer -= cycles
	for s.timer <= 0 {
		s.timer += int(2048-s.period) * 4
		s.phase = (s.phase + 1) & 7
	}
}

// output returns the channel level in [-1, 1].
func (s *square) output() float32 {
	if !s.enabled {
		return 0
	}
	v := float32(s.envelope.volume) / 15
	if dutyTable[s.duty][s.phase] == 0 {
		return -v
	}
	return v
}

func (s *square) save(e *savestate.Encoder) {
	e.Bool(s.enabled)
	e.U8(s.duty)
	e.U16(s.period)
	e.Int(s.timer)
	e.U8(s.phase)
	s.length.save(e)
	s.envelope.save(e)
	if sw := s.sweep; sw != nil {
		e.U8(sw.pace)
		e.Bool(sw.negate)
		e.U8(sw.shift)
		e.U8(sw.timer)
		e.Bool(sw.enabled)
		e.U16(sw.shadow)
	}
}

func (s *square) load(d *savestate.Decoder) {
	s.enabled = d.Bool()
	s.duty = d.U8() & 0x03
	s.period = d.U16() & 0x7FF
	s.timer = d.Int()
	if s.timer < 0 || s.timer > 2048*4 {
		d.Fail("square timer %d out of range", s.timer)
	}
	s.phase = d.U8() & 0x07
	s.length.loadState(d)
	s.envelope.load(d)
	if sw := s.sweep; sw != nil {
		sw.pace = d.U8() & 0x07
		sw.negate = d.Bool()
		sw.shift = d.U8() & 0x07
		sw.timer = d.U8()
		sw.enabled = d.Bool()
		sw.shadow = d.U16() & 0x7FF
	}
}

// wave plays 32 4-bit samples from wave RAM (channel 3).
type wave struct {
	enabled bool
	dacOn   bool
	level   uint8
	period  uint16
	timer   int
	pos     uint8
	sample  uint8
	length  lengthCounter
	ram     [waveRAMSize]uint8
}

func newWave() wave {
	return wave{length: lengthCounter{max: waveLength}}
}

func (w *wave) trigger() {
	w.length.trigger()
	w.timer = int(2048-w.period) * 2
	w.pos = 0
	w.enabled = w.dacOn
}

func (w *wave) step(cycles int) {
	w.timer -= cycles
	for w.timer <= 0 {
		w.timer += int(2048-w.period) * 2
		w.pos = (w.pos + 1) & 31
		w.sample = w.ram[w.pos/2]
		if w.pos&1 == 0 {
			w.sample >>= 4
		}
		w.sample &= 0x0F
	}
}

func (w *wave) output() float32 {
	if !w.enabled || w.level == 0 {
		return 0
	}
	return (float32(w.sample) - 7.5) / 7.5 / float32(uint8(1)<<waveVolume[w.level])
}

func (w *wave) save(e *savestate.Encoder) {
	e.Bool(w.enabled)
	e.Bool(w.dacOn)
	e.U8(w.level)
	e.U16(w.period)
	e.Int(w.timer)
	e.U8(w.pos)
	e.U8(w.sample)
	w.length.save(e)
	e.Bytes(w.ram[:])
}

func (w *wave) load(d *savestate.Decoder) {
	w.enabled = d.Bool()
	w.dacOn = d.Bool()
	w.level = d.U8() & 0x03
	w.period = d.U16() & 0x7FF
	w.timer = d.Int()
	if w.timer < 0 || w.timer > 2048*2 {
		d.Fail("wave timer %d out of range", w.timer)
	}
	w.pos = d.U8() & 31
	w.sample = d.U8() & 0x0F
	w.length.loadState(d)
	d.BytesInto(w.ram[:])
}

// noise is the LFSR channel (channel 4).
type noise struct {
	enabled  bool
	shift    uint8
	width7   bool
	divisor  uint8
	timer    int
	lfsr     uint16
	length   lengthCounter
	envelope envelope
}

func newNoise() noise {
	return noise{length: lengthCounter{max: noiseLength}, lfsr: 0x7FFF}
}

func (n *noise) write(value uint8) {
	n.shift = value >> 4
	n.width7 = bit.IsSet(3, value)
	n.divisor = value & 0x07
}

func (n *noise) period() int {
	return noiseDivisors[n.divisor] << n.shift
}

func (n *noise) trigger() {
	n.length.trigger()
	n.envelope.trigger()
	n.timer = n.period()
	n.lfsr = 0x7FFF
	n.enabled = n.envelope.dacOn()
}

func (n *noise) step(cycles int) {
	// shifts 14 and 15 never clock the LFSR
	if n.shift >= 14 {
		return
	}
	n.timer -= cycles
	for n.timer <= 0 {
		n.timer += n.period()
		x := (n.lfsr ^ n.lfsr>>1) & 1
		n.lfsr = n.lfsr>>1 | x<<14
		if n.width7 {
			n.lfsr = n.lfsr&^(1<<6) | x<<6
		}
	}
}

func (n *noise) output() float32 {
	if !n.enabled {
		return 0
	}
	v := float32(n.envelope.volume) / 15
	if n.lfsr&1 != 0 {
		return -v
	}
	return v
}

func (n *noise) save(e *savestate.Encoder) {
	e.Bool(n.enabled)
	e.U8(n.shift)
	e.Bool(n.width7)
	e.U8(n.divisor)
	e.Int(n.timer)
	e.U16(n.lfsr)
	n.length.save(e)
	n.envelope.save(e)
}

func (n *noise) load(d *savestate.Decoder) {
	n.enabled = d.Bool()
	n.shift = d.U8() & 0x0F
	n.width7 = d.Bool()
	n.divisor = d.U8() & 0x07
	n.timer = d.Int()
	if n.timer < 0 || n.timer > noiseDivisors[7]<<15 {
		d.Fail("noise timer %d out of range", n.timer)
	}
	n.lfsr = d.U16() & 0x7FFF
	n.length.loadState(d)
	n.envelope.load(d)
}
