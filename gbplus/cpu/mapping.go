package cpu

import "github.com/valerio/gbplus/gbplus/bit"

// Opcode represents a function that executes an opcode
type Opcode func(*CPU) int

// Decode retrieves the instruction identified by the value pointed at by the PC.
// Note: PC must be incremented separately, this is so we can handle the "HALT bug".
func Decode(c *CPU) Opcode {
	// peek PC+1|PC
	instr := c.peekImmediateWord()
	high, low := bit.High(instr), bit.Low(instr)

	// 0xCB is only ever used as a prefix for the next byte.
	if low == 0xCB {
		c.currentOpcode = bit.Combine(0xCB, high)
		return opcodesCB[high]
	}

	c.currentOpcode = bit.Combine(0, low)
	return opcodes[low]
}

var opcodes [256]Opcode

var opcodesCB [256]Opcode

var illegalOpcodes = []uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

// IsIllegal reports whether op is one of the unused opcodes that lock the CPU.
func IsIllegal(op uint8) bool {
	for _, v := range illegalOpcodes {
		if v == op {
			return true
		}
	}
	return false
}

func init() {
	for op, fn := range map[uint8]Opcode{
		0x00: opcode0x00, 0x01: opcode0x01, 0x02: opcode0x02, 0x03: opcode0x03, 0x07: opcode0x07,
		0x08: opcode0x08, 0x09: opcode0x09, 0x0A: opcode0x0A, 0x0B: opcode0x0B, 0x0F: opcode0x0F,
		0x10: opcode0x10, 0x11: opcode0x11, 0x12: opcode0x12, 0x13: opcode0x13, 0x17: opcode0x17,
		0x18: opcode0x18, 0x19: opcode0x19, 0x1A: opcode0x1A, 0x1B: opcode0x1B, 0x1F: opcode0x1F,
		0x21: opcode0x21, 0x22: opcode0x22, 0x23: opcode0x23, 0x27: opcode0x27,
		0x29: opcode0x29, 0x2A: opcode0x2A, 0x2B: opcode0x2B, 0x2F: opcode0x2F,
		0x31: opcode0x31, 0x32: opcode0x32, 0x33: opcode0x33, 0x37: opcode0x37,
		0x39: opcode0x39, 0x3A: opcode0x3A, 0x3B: opcode0x3B, 0x3F: opcode0x3F,
		0x76: opcode0x76,
		0xC3: opcode0xC3, 0xC9: opcode0xC9, 0xCD: opcode0xCD, 0xD9: opcode0xD9,
		0xE0: opcode0xE0, 0xE2: opcode0xE2, 0xE8: opcode0xE8, 0xE9: opcode0xE9, 0xEA: opcode0xEA,
		0xF0: opcode0xF0, 0xF2: opcode0xF2, 0xF3: opcode0xF3, 0xF8: opcode0xF8, 0xF9: opcode0xF9,
		0xFA: opcode0xFA, 0xFB: opcode0xFB,
	} {
		opcodes[op] = fn
	}

	for _, op := range illegalOpcodes {
		opcodes[op] = illegal
	}

	for r := uint8(0); r < 8; r++ {
		// INC r, DEC r, LD r, n
		opcodes[0x04|r<<3] = incR8(r)
		opcodes[0x05|r<<3] = decR8(r)
		opcodes[0x06|r<<3] = ldR8Immediate(r)

		// LD r, r' (0x76 stays HALT)
		for src := uint8(0); src < 8; src++ {
			op := 0x40 | r<<3 | src
			if op != 0x76 {
				opcodes[op] = ldR8(r, src)
			}
		}

		// ALU A, r and ALU A, n
		for src := uint8(0); src < 8; src++ {
			opcodes[0x80|r<<3|src] = aluR8(r, src)
		}
		opcodes[0xC6|r<<3] = aluImmediate(r)

		// RST
		opcodes[0xC7|r<<3] = rstVector(uint16(r) << 3)
	}

	for cc := uint8(0); cc < 4; cc++ {
		opcodes[0x20|cc<<3] = jrCond(cc)
		opcodes[0xC0|cc<<3] = retCond(cc)
		opcodes[0xC2|cc<<3] = jpCond(cc)
		opcodes[0xC4|cc<<3] = callCond(cc)
	}

	for rr := uint8(0); rr < 4; rr++ {
		opcodes[0xC1|rr<<4] = popR16(rr)
		opcodes[0xC5|rr<<4] = pushR16(rr)
	}

	for op := range 256 {
		opcodesCB[op] = cbOpcode(uint8(op))
	}
}

// cost returns base cycles, or withHL when the operand is (HL).
func cost(index uint8, base, withHL int) int {
	if index == hlIndirect {
		return withHL
	}
	return base
}

func incR8(r uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.writeR8(r, cpu.inc(cpu.readR8(r)))
		return cost(r, 4, 12)
	}
}

func decR8(r uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.writeR8(r, cpu.dec(cpu.readR8(r)))
		return cost(r, 4, 12)
	}
}

func ldR8Immediate(r uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.writeR8(r, cpu.readImmediate())
		return cost(r, 8, 12)
	}
}

func ldR8(dst, src uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.writeR8(dst, cpu.readR8(src))
		if dst == hlIndirect || src == hlIndirect {
			return 8
		}
		return 4
	}
}

func aluR8(op, src uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.alu(op, cpu.readR8(src))
		return cost(src, 4, 8)
	}
}

func aluImmediate(op uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.alu(op, cpu.readImmediate())
		return 8
	}
}

func rstVector(vector uint16) Opcode {
	return func(cpu *CPU) int {
		cpu.rst(vector)
		return 16
	}
}

func jrCond(cc uint8) Opcode {
	return func(cpu *CPU) int {
		if cpu.condition(cc) {
			cpu.jr()
			return 12
		}
		cpu.pc++
		return 8
	}
}

func retCond(cc uint8) Opcode {
	return func(cpu *CPU) int {
		if cpu.condition(cc) {
			cpu.ret()
			return 20
		}
		return 8
	}
}

func jpCond(cc uint8) Opcode {
	return func(cpu *CPU) int {
		if cpu.condition(cc) {
			cpu.jp()
			return 16
		}
		cpu.pc += 2
		return 12
	}
}

func callCond(cc uint8) Opcode {
	return func(cpu *CPU) int {
		if cpu.condition(cc) {
			cpu.call()
			return 24
		}
		cpu.pc += 2
		return 12
	}
}

// register pairs in PUSH/POP order
func (c *CPU) readR16(rr uint8) uint16 {
	switch rr {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	}
	return c.getAF()
}

func (c *CPU) writeR16(rr uint8, value uint16) {
	switch rr {
	case 0:
		c.setBC(value)
	case 1:
		c.setDE(value)
	case 2:
		c.setHL(value)
	default:
		c.setAF(value)
	}
}

func popR16(rr uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.writeR16(rr, cpu.popStack())
		return 12
	}
}

func pushR16(rr uint8) Opcode {
	return func(cpu *CPU) int {
		cpu.pushStack(cpu.readR16(rr))
		return 16
	}
}
