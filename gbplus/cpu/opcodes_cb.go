package cpu

import "github.com/valerio/gbplus/gbplus/bit"

// cbOpcode builds the handler for one 0xCB prefixed opcode. Bits 0-2 select
// the operand, bits 3-5 the operation or bit index and bits 6-7 the group:
// rotate/shift, BIT, RES, SET.
func cbOpcode(op uint8) Opcode {
	r := op & 0x07
	y := (op >> 3) & 0x07

	switch op >> 6 {
	case 0:
		shift := [8]func(*CPU, uint8) uint8{
			(*CPU).rlc, (*CPU).rrc, (*CPU).rl, (*CPU).rr,
			(*CPU).sla, (*CPU).sra, (*CPU).swap, (*CPU).srl,
		}[y]
		return func(c *CPU) int {
			c.writeR8(r, shift(c, c.readR8(r)))
			return cost(r, 8, 16)
		}
	case 1:
		return func(c *CPU) int {
			c.bit(y, c.readR8(r))
			return cost(r, 8, 12)
		}
	case 2:
		return func(c *CPU) int {
			c.writeR8(r, bit.Clear(y, c.readR8(r)))
			return cost(r, 8, 16)
		}
	}
	return func(c *CPU) int {
		c.writeR8(r, bit.Set(y, c.readR8(r)))
		return cost(r, 8, 16)
	}
}
