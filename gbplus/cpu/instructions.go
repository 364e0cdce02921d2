package cpu

import "github.com/valerio/gbplus/gbplus/bit"

// hlIndirect is the operand index of (HL) in the regular opcode blocks,
// which order their operands B, C, D, E, H, L, (HL), A.
const hlIndirect = 6

func (c *CPU) readR8(index uint8) uint8 {
	switch index {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case hlIndirect:
		return c.bus.Read(c.getHL())
	}
	return c.a
}

func (c *CPU) writeR8(index uint8, value uint8) {
	switch index {
	case 0:
		c.b = value
	case 1:
		c.c = value
	case 2:
		c.d = value
	case 3:
		c.e = value
	case 4:
		c.h = value
	case 5:
		c.l = value
	case hlIndirect:
		c.bus.Write(c.getHL(), value)
	default:
		c.a = value
	}
}

func (c *CPU) pushStack(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++

	return bit.Combine(high, low)
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (result&0xF) == 0)
	c.resetFlag(subFlag)
	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (result&0xF) == 0xF)
	c.setFlag(subFlag)
	return result
}

func (c *CPU) rlc(value uint8) uint8 {
	result := value<<1 | value>>7
	c.setFlags(result == 0, false, false, value > 0x7F)
	return result
}

func (c *CPU) rl(value uint8) uint8 {
	result := value<<1 | c.flagToBit(carryFlag)
	c.setFlags(result == 0, false, false, value > 0x7F)
	return result
}

func (c *CPU) rrc(value uint8) uint8 {
	result := value>>1 | value<<7
	c.setFlags(result == 0, false, false, value&1 == 1)
	return result
}

func (c *CPU) rr(value uint8) uint8 {
	result := value>>1 | c.flagToBit(carryFlag)<<7
	c.setFlags(result == 0, false, false, value&1 == 1)
	return result
}

func (c *CPU) sla(value uint8) uint8 {
	result := value << 1
	c.setFlags(result == 0, false, false, value > 0x7F)
	return result
}

// sra shifts right keeping bit 7.
func (c *CPU) sra(value uint8) uint8 {
	result := value>>1 | value&0x80
	c.setFlags(result == 0, false, false, value&1 == 1)
	return result
}

func (c *CPU) srl(value uint8) uint8 {
	result := value >> 1
	c.setFlags(result == 0, false, false, value&1 == 1)
	return result
}

func (c *CPU) swap(value uint8) uint8 {
	result := value<<4 | value>>4
	c.setFlags(result == 0, false, false, false)
	return result
}

// bit tests bit index of value, carry is unaffected.
func (c *CPU) bit(index, value uint8) {
	c.setFlagToCondition(zeroFlag, !bit.IsSet(index, value))
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

// addToA sets the result of adding an 8 bit value (plus carry) to A, while setting all relevant flags.
func (c *CPU) addToA(value uint8, withCarry bool) {
	carry := uint8(0)
	if withCarry {
		carry = c.flagToBit(carryFlag)
	}
	a := c.a
	sum := uint16(a) + uint16(value) + uint16(carry)
	result := uint8(sum)

	c.setFlags(result == 0, false, (a&0xF)+(value&0xF)+carry > 0xF, sum > 0xFF)
	c.a = result
}

// sub subtracts the value (plus carry) from A and sets all relevant flags. The
// result is only stored when store is true, which gives CP.
func (c *CPU) sub(value uint8, withCarry, store bool) {
	carry := uint8(0)
	if withCarry {
		carry = c.flagToBit(carryFlag)
	}
	a := c.a
	diff := int(a) - int(value) - int(carry)
	result := uint8(diff)

	c.setFlags(result == 0, true, int(a&0xF)-int(value&0xF)-int(carry) < 0, diff < 0)
	if store {
		c.a = result
	}
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.setFlags(c.a == 0, false, true, false)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.setFlags(c.a == 0, false, false, false)
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.setFlags(c.a == 0, false, false, false)
}

// alu runs one of the eight accumulator operations in opcode order:
// ADD, ADC, SUB, SBC, AND, XOR, OR, CP.
func (c *CPU) alu(op, value uint8) {
	switch op {
	case 0:
		c.addToA(value, false)
	case 1:
		c.addToA(value, true)
	case 2:
		c.sub(value, false, true)
	case 3:
		c.sub(value, true, true)
	case 4:
		c.and(value)
	case 5:
		c.xor(value)
	case 6:
		c.or(value)
	case 7:
		c.sub(value, false, false)
	}
}

// addToHL sets the result of adding a 16 bit value to HL, zero flag is unaffected.
func (c *CPU) addToHL(value uint16) {
	hl := c.getHL()
	result := uint32(hl) + uint32(value)

	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, (hl&0xFFF)+(value&0xFFF) > 0xFFF)
	c.setFlagToCondition(carryFlag, result > 0xFFFF)

	c.setHL(uint16(result))
}

// addSigned returns SP plus the signed immediate, flags come from the low byte.
func (c *CPU) addSigned() uint16 {
	sp := c.sp
	n := uint16(int16(c.readSignedImmediate()))
	result := sp + n

	c.setFlags(false, false, (sp^n^result)&0x10 != 0, (sp^n^result)&0x100 != 0)
	return result
}

// daa adjusts A to binary coded decimal after an addition or subtraction.
func (c *CPU) daa() {
	a := c.a
	adjust := uint8(0)
	carry := c.isSetFlag(carryFlag)

	if c.isSetFlag(subFlag) {
		if c.isSetFlag(halfCarryFlag) {
			adjust |= 0x06
		}
		if carry {
			adjust |= 0x60
		}
		a -= adjust
	} else {
		if c.isSetFlag(halfCarryFlag) || a&0x0F > 0x09 {
			adjust |= 0x06
		}
		if carry || a > 0x99 {
			adjust |= 0x60
			carry = true
		}
		a += adjust
	}

	c.a = a
	c.setFlagToCondition(zeroFlag, a == 0)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry)
}

// jr performs a relative jump using the signed immediate value
func (c *CPU) jr() {
	n := c.readSignedImmediate()
	c.pc = uint16(int32(c.pc) + int32(n))
}

// jp performs an absolute jump using the immediate value (16 bit word)
func (c *CPU) jp() {
	c.pc = c.readImmediateWord()
}

func (c *CPU) call() {
	target := c.readImmediateWord()
	c.pushStack(c.pc)
	c.pc = target
}

func (c *CPU) ret() {
	c.pc = c.popStack()
}

func (c *CPU) rst(vector uint16) {
	c.pushStack(c.pc)
	c.pc = vector
}

// condition evaluates the branch condition encoded in bits 3-4: NZ, Z, NC, C.
func (c *CPU) condition(cc uint8) bool {
	switch cc & 0x03 {
	case 0:
		return !c.isSetFlag(zeroFlag)
	case 1:
		return c.isSetFlag(zeroFlag)
	case 2:
		return !c.isSetFlag(carryFlag)
	}
	return c.isSetFlag(carryFlag)
}
