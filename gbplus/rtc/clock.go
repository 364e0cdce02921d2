// Package rtc emulates the MBC3 real-time clock: a seconds/minutes/hours/day
// counter driven by wall-clock time rather than emulated CPU cycles.
package rtc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// Register select values written to 0x4000-0x5FFF.
const (
	RegSeconds uint8 = 0x08
	RegMinutes uint8 = 0x09
	RegHours   uint8 = 0x0A
	RegDayLow  uint8 = 0x0B
	RegDayHigh uint8 = 0x0C
)

const (
	dayHighBit = 0
	haltBit    = 6
	carryBit   = 7

	maxDays = 512
)

// TimeSource provides the wall-clock the RTC follows.
type TimeSource interface {
	Now() time.Time
}

// TimeSourceFunc adapts a function to TimeSource.
type TimeSourceFunc func() time.Time

func (f TimeSourceFunc) Now() time.Time { return f() }

// SystemTime is the default time source.
var SystemTime TimeSource = TimeSourceFunc(time.Now)

type registers struct {
	seconds uint8
	minutes uint8
	hours   uint8
	days    uint16
}

// Clock is the RTC register file of a single cartridge.
type Clock struct {
	source TimeSource

	live    registers
	latched registers
	halted  bool
	carry   bool

	// latched copies of the day-high flags
	latchedHalt  bool
	latchedCarry bool

	numWraps  uint64
	selected  uint8
	latchHalf bool

	lastSync  time.Time
	subsecond time.Duration

	dirty bool
}

// New creates a running clock at 00:00:00 day 0.
func New(source TimeSource) *Clock {
	if source == nil {
		source = SystemTime
	}
	return &Clock{source: source, selected: RegSeconds, lastSync: source.Now()}
}

// SetTimeSource swaps the time source, restarting the sync point at its current time.
func (c *Clock) SetTimeSource(source TimeSource) {
	if source == nil {
		source = SystemTime
	}
	c.source = source
	c.lastSync = source.Now()
	c.subsecond = 0
}

// Sync advances the live registers by the wall time elapsed since the previous sync.
func (c *Clock) Sync() {
	now := c.source.Now()
	elapsed := now.Sub(c.lastSync)
	c.lastSync = now
	if c.halted || elapsed <= 0 {
		return
	}

	c.subsecond += elapsed
	secs := c.subsecond / time.Second
	c.subsecond -= secs * time.Second
	c.Advance(uint64(secs))
}

// Advance moves the live registers forward by the given number of seconds.
func (c *Clock) Advance(seconds uint64) {
	// out of range values wrap at their bit width without carrying, so step
	// one second at a time until every register is back in range
	for seconds > 0 && !c.live.valid() {
		c.tick()
		seconds--
	}
	if seconds == 0 {
		return
	}

	total := uint64(c.live.seconds) + 60*uint64(c.live.minutes) + 3600*uint64(c.live.hours) + seconds
	c.live.seconds = uint8(total % 60)
	total /= 60
	c.live.minutes = uint8(total % 60)
	total /= 60
	c.live.hours = uint8(total % 24)
	days := uint64(c.live.days) + total/24

	if days >= maxDays {
		c.numWraps += days / maxDays
		c.carry = true
		c.dirty = true
	}
	c.live.days = uint16(days % maxDays)
}

func (r registers) valid() bool {
	return r.seconds < 60 && r.minutes < 60 && r.hours < 24
}

func (c *Clock) tick() {
	s := (c.live.seconds + 1) & 0x3F
	if s != 60 {
		c.live.seconds = s
		return
	}
	c.live.seconds = 0

	m := (c.live.minutes + 1) & 0x3F
	if m != 60 {
		c.live.minutes = m
		return
	}
	c.live.minutes = 0

	h := (c.live.hours + 1) & 0x1F
	if h != 24 {
		c.live.hours = h
		return
	}
	c.live.hours = 0

	c.live.days++
	if c.live.days >= maxDays {
		c.live.days = 0
		c.carry = true
		c.numWraps++
		c.dirty = true
	}
}

// Select picks the register mapped at 0xA000-0xBFFF.
func (c *Clock) Select(reg uint8) {
	c.selected = reg
}

// Latch handles writes to 0x6000-0x7FFF: writing 0 then 1 copies the live
// registers into the readable latch.
func (c *Clock) Latch(value uint8) {
	if value == 0 {
		c.latchHalf = true
		return
	}
	if value == 1 && c.latchHalf {
		c.Sync()
		c.latched = c.live
		c.latchedHalt = c.halted
		c.latchedCarry = c.carry
	}
	c.latchHalf = false
}

// Read returns the latched value of the selected register.
func (c *Clock) Read() uint8 {
	switch c.selected {
	case RegSeconds:
		return c.latched.seconds & 0x3F
	case RegMinutes:
		return c.latched.minutes & 0x3F
	case RegHours:
		return c.latched.hours & 0x1F
	case RegDayLow:
		return uint8(c.latched.days)
	case RegDayHigh:
		v := uint8(c.latched.days>>8) & 1
		v = bit.SetTo(haltBit, v, c.latchedHalt)
		v = bit.SetTo(carryBit, v, c.latchedCarry)
		return v
	}
	return 0xFF
}

// Write sets the selected register. Live and latched copies both change.
func (c *Clock) Write(value uint8) {
	c.Sync()

	switch c.selected {
	case RegSeconds:
		c.live.seconds = value & 0x3F
		c.subsecond = 0
	case RegMinutes:
		c.live.minutes = value & 0x3F
	case RegHours:
		c.live.hours = value & 0x1F
	case RegDayLow:
		c.live.days = c.live.days&0x100 | uint16(value)
	case RegDayHigh:
		c.live.days = c.live.days&0xFF | uint16(bit.Value(dayHighBit, value))<<8
		c.halted = bit.IsSet(haltBit, value)
		c.carry = bit.IsSet(carryBit, value)
	default:
		return
	}

	c.latched = c.live
	c.latchedHalt = c.halted
	c.latchedCarry = c.carry
	c.dirty = true
}

// Registers reports the live register values.
func (c *Clock) Registers() (seconds, minutes, hours uint8, days uint16) {
	return c.live.seconds, c.live.minutes, c.live.hours, c.live.days
}

// Halted reports whether the clock is stopped.
func (c *Clock) Halted() bool { return c.halted }

// Carry reports the day counter overflow flag.
func (c *Clock) Carry() bool { return c.carry }

// NumWraps counts how many times the day counter has overflowed.
func (c *Clock) NumWraps() uint64 { return c.numWraps }

func (c *Clock) Dirty() bool { return c.dirty }

func (c *Clock) ClearDirty() { c.dirty = false }

// Snapshot is the persisted form of the clock.
type Snapshot struct {
	// Timestamp and TimestampNanos mark the wall time at which the current
	// seconds count started.
	Timestamp      int64  `json:"timestamp"`
	TimestampNanos int64  `json:"timestamp_nanos,omitempty"`
	Halted         bool   `json:"halted"`
	CarryBit       bool   `json:"carry_bit"`
	NumWraps       uint64 `json:"num_wraps"`
	Seconds        uint8  `json:"seconds"`
	Minutes        uint8  `json:"minutes"`
	Hours          uint8  `json:"hours"`
	Days           uint16 `json:"days"`
}

// Fetch syncs the clock and serializes it with the current wall time.
func (c *Clock) Fetch() ([]byte, error) {
	c.Sync()
	start := c.lastSync.Add(-c.subsecond)
	return json.Marshal(Snapshot{
		Timestamp:      start.Unix(),
		TimestampNanos: int64(start.Nanosecond()),
		Halted:         c.halted,
		CarryBit:       c.carry,
		NumWraps:       c.numWraps,
		Seconds:        c.live.seconds,
		Minutes:        c.live.minutes,
		Hours:          c.live.hours,
		Days:           c.live.days,
	})
}

// Restore loads a snapshot produced by Fetch and replays the wall time that
// passed since it was taken. A malformed snapshot leaves the clock untouched.
func (c *Clock) Restore(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding rtc snapshot: %w", err)
	}

	c.live = registers{
		seconds: s.Seconds & 0x3F,
		minutes: s.Minutes & 0x3F,
		hours:   s.Hours & 0x1F,
		days:    s.Days % maxDays,
	}
	c.halted = s.Halted
	c.carry = s.CarryBit
	c.numWraps = s.NumWraps
	c.subsecond = 0

	now := c.source.Now()
	c.lastSync = now
	if elapsed := now.Sub(time.Unix(s.Timestamp, s.TimestampNanos)); elapsed > 0 && !c.halted {
		c.Advance(uint64(elapsed / time.Second))
		c.subsecond = elapsed % time.Second
	}

	c.latched = c.live
	c.latchedHalt = c.halted
	c.latchedCarry = c.carry
	return nil
}

func (r registers) save(e *savestate.Encoder) {
	e.U8(r.seconds)
	e.U8(r.minutes)
	e.U8(r.hours)
	e.U16(r.days)
}

func (r *registers) load(d *savestate.Decoder) {
	r.seconds = d.U8()
	r.minutes = d.U8()
	r.hours = d.U8()
	r.days = d.U16() % maxDays
}

// Save writes the clock, including the wall time of its last sync so the
// time between saving and restoring is replayed on the next sync.
func (c *Clock) Save(e *savestate.Encoder) {
	e.Section("RTC_")
	c.live.save(e)
	c.latched.save(e)
	e.Bool(c.halted)
	e.Bool(c.carry)
	e.Bool(c.latchedHalt)
	e.Bool(c.latchedCarry)
	e.U64(c.numWraps)
	e.U8(c.selected)
	e.Bool(c.latchHalf)
	e.U64(uint64(c.lastSync.UnixNano()))
	e.U64(uint64(c.subsecond))
}

func (c *Clock) Load(d *savestate.Decoder) {
	d.Section("RTC_")
	c.live.load(d)
	c.latched.load(d)
	c.halted = d.Bool()
	c.carry = d.Bool()
	c.latchedHalt = d.Bool()
	c.latchedCarry = d.Bool()
	c.numWraps = d.U64()
	c.selected = d.U8()
	c.latchHalf = d.Bool()
	c.lastSync = time.Unix(0, int64(d.U64()))
	c.subsecond = time.Duration(d.U64())
}
