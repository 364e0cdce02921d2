package cpu

import (
	"fmt"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// Bus provides the interface for component communication
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	// PendingInterrupts returns IE & IF.
	PendingInterrupts() uint8
	AckInterrupt(interrupt addr.Interrupt)
	// SpeedSwitch is called by STOP and reports whether the CGB changed speed.
	SpeedSwitch() bool
}

// Flag is one of the 4 possible flags used in the flag register (high part of AF)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// interruptCycles is the cost of dispatching to an interrupt vector.
const interruptCycles = 20

// DecodeError is returned when the CPU fetches one of the unused opcodes.
// Real hardware locks up, so the CPU keeps returning the same error.
type DecodeError struct {
	Opcode uint8
	PC     uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("illegal opcode 0x%02X at 0x%04X", e.Opcode, e.PC)
}

// CPU is the main struct holding SM83 state
type CPU struct {
	// registers
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	// metadata
	interruptsEnabled bool
	eiPending         bool // EI delay: interrupts enable after the next instruction
	currentOpcode     uint16
	halted            bool
	stopped           bool
	cycles            uint64

	// haltBug makes the next fetch skip the PC increment, so the byte after
	// HALT is read twice. Set by HALT with IME=0 and an interrupt pending.
	haltBug bool

	// err latches the first illegal opcode
	err *DecodeError

	bus Bus
}

// New returns a CPU with the register values left by the DMG or CGB boot ROM.
func New(bus Bus, cgb bool) *CPU {
	cpu := &CPU{
		bus: bus,
	}

	if cgb {
		cpu.setAF(0x1180)
		cpu.setBC(0x0000)
		cpu.setDE(0xFF56)
		cpu.setHL(0x000D)
	} else {
		cpu.setAF(0x01B0)
		cpu.setBC(0x0013)
		cpu.setDE(0x00D8)
		cpu.setHL(0x014D)
	}
	cpu.sp = 0xFFFE
	cpu.pc = 0x0100

	return cpu
}

// Exec executes a single CPU instruction, or dispatches an interrupt, and
// returns the cycles it took. Components are ticked by the caller.
func (c *CPU) Exec() (int, error) {
	if c.err != nil {
		return 4, c.err
	}

	pending := c.bus.PendingInterrupts()

	if c.halted || c.stopped {
		if pending == 0 {
			return 4, nil
		}
		// any enabled and requested interrupt wakes the CPU, even with IME=0
		c.halted = false
		c.stopped = false
	}

	if c.interruptsEnabled && pending != 0 {
		return c.handleInterrupts(pending), nil
	}

	enableAfter := c.eiPending
	instruction := Decode(c)

	// The halt bug skips the first PC increment, so the opcode byte is
	// fetched again as the next instruction or operand.
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}
	if bit.High(c.currentOpcode) == 0xCB {
		c.pc++
	}

	cycles := instruction(c)
	c.cycles += uint64(cycles)

	if enableAfter && c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	if c.err != nil {
		return cycles, c.err
	}
	return cycles, nil
}

// handleInterrupts services the highest priority pending interrupt.
func (c *CPU) handleInterrupts(pending uint8) int {
	for _, interrupt := range addr.Interrupts {
		if pending&uint8(interrupt) == 0 {
			continue
		}
		c.bus.AckInterrupt(interrupt)
		c.interruptsEnabled = false
		c.eiPending = false

		c.pushStack(c.pc)
		c.pc = interrupt.Vector()

		c.cycles += interruptCycles
		return interruptCycles
	}
	return 0
}

// peekImmediate returns the byte at the memory address pointed by the PC
// this value is known as immediate ('n' in mnemonics), some opcodes use it as a parameter
func (c *CPU) peekImmediate() uint8 {
	return c.bus.Read(c.pc)
}

// peekImmediateWord returns the two bytes at the memory address pointed by PC and PC+1
// this value is known as immediate ('nn' in mnemonics), some opcodes use it as a parameter
func (c *CPU) peekImmediateWord() uint16 {
	low := c.bus.Read(c.pc)
	high := c.bus.Read(c.pc + 1)
	return bit.Combine(high, low)
}

// readImmediate acts similarly as its peek counterpart, but increments the PC once after reading
func (c *CPU) readImmediate() uint8 {
	n := c.peekImmediate()
	c.pc++
	return n
}

// readImmediateWord acts similarly as its peek counterpart, but increments the PC twice after reading
func (c *CPU) readImmediateWord() uint16 {
	nn := c.peekImmediateWord()
	c.pc += 2
	return nn
}

// readSignedImmediate reads the immediate as a signed offset ('e' in mnemonics)
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit will return 1 if the passed flag is set, 0 otherwise
func (c *CPU) flagToBit(flag Flag) uint8 {
	return bit.Bool(c.isSetFlag(flag))
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if !condition {
		c.resetFlag(flag)
		return
	}

	c.setFlag(flag)
}

// setFlags overwrites all four flags at once.
func (c *CPU) setFlags(z, n, h, cy bool) {
	c.f = bit.Bool(z)<<7 | bit.Bool(n)<<6 | bit.Bool(h)<<5 | bit.Bool(cy)<<4
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// F register lower 4 bits must be 0
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

// Debug getter methods for register display
func (c *CPU) GetA() uint8       { return c.a }
func (c *CPU) GetF() uint8       { return c.f }
func (c *CPU) GetB() uint8       { return c.b }
func (c *CPU) GetC() uint8       { return c.c }
func (c *CPU) GetD() uint8       { return c.d }
func (c *CPU) GetE() uint8       { return c.e }
func (c *CPU) GetH() uint8       { return c.h }
func (c *CPU) GetL() uint8       { return c.l }
func (c *CPU) GetSP() uint16     { return c.sp }
func (c *CPU) GetPC() uint16     { return c.pc }
func (c *CPU) GetCycles() uint64 { return c.cycles }

// Interrupt state getters
func (c *CPU) GetIME() bool   { return c.interruptsEnabled }
func (c *CPU) IsHalted() bool { return c.halted }

// Err returns the latched illegal opcode error, if any.
func (c *CPU) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

// GetFlagString returns a human-readable representation of the flag register
func (c *CPU) GetFlagString() string {
	flags := []byte("----")
	for i, f := range []struct {
		flag Flag
		name byte
	}{{zeroFlag, 'Z'}, {subFlag, 'N'}, {halfCarryFlag, 'H'}, {carryFlag, 'C'}} {
		if c.isSetFlag(f.flag) {
			flags[i] = f.name
		}
	}
	return string(flags)
}

func (c *CPU) Save(e *savestate.Encoder) {
	e.Section("CPU_")
	e.U16(c.getAF())
	e.U16(c.getBC())
	e.U16(c.getDE())
	e.U16(c.getHL())
	e.U16(c.sp)
	e.U16(c.pc)
	e.Bool(c.interruptsEnabled)
	e.Bool(c.eiPending)
	e.Bool(c.halted)
	e.Bool(c.stopped)
	e.Bool(c.haltBug)
	e.U64(c.cycles)
	e.Bool(c.err != nil)
	if c.err != nil {
		e.U8(c.err.Opcode)
		e.U16(c.err.PC)
	}
}

func (c *CPU) Load(d *savestate.Decoder) {
	d.Section("CPU_")
	c.setAF(d.U16())
	c.setBC(d.U16())
	c.setDE(d.U16())
	c.setHL(d.U16())
	c.sp = d.U16()
	c.pc = d.U16()
	c.interruptsEnabled = d.Bool()
	c.eiPending = d.Bool()
	c.halted = d.Bool()
	c.stopped = d.Bool()
	c.haltBug = d.Bool()
	c.cycles = d.U64()
	c.err = nil
	if d.Bool() {
		c.err = &DecodeError{Opcode: d.U8(), PC: d.U16()}
	}
}
