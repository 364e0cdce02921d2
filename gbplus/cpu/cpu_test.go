package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// testBus is a flat 64KiB address space with IE/IF at their usual places.
type testBus struct {
	mem        [0x10000]uint8
	speedArmed bool
	switched   int
}

func (b *testBus) Read(address uint16) uint8        { return b.mem[address] }
func (b *testBus) Write(address uint16, value uint8) { b.mem[address] = value }

func (b *testBus) PendingInterrupts() uint8 {
	return b.mem[addr.IE] & b.mem[addr.IF] & 0x1F
}

func (b *testBus) AckInterrupt(i addr.Interrupt) {
	b.mem[addr.IF] &^= uint8(i)
}

func (b *testBus) SpeedSwitch() bool {
	if !b.speedArmed {
		return false
	}
	b.speedArmed = false
	b.switched++
	return true
}

// newTestCPU loads code at 0xC000 and points PC at it.
func newTestCPU(code ...uint8) (*CPU, *testBus) {
	bus := &testBus{}
	copy(bus.mem[0xC000:], code)
	cpu := New(bus, false)
	cpu.pc = 0xC000
	return cpu, bus
}

func step(t *testing.T, cpu *CPU) int {
	t.Helper()
	cycles, err := cpu.Exec()
	require.NoError(t, err)
	return cycles
}

func TestPowerOnRegisters(t *testing.T) {
	dmg := New(&testBus{}, false)
	assert.Equal(t, uint16(0x01B0), dmg.getAF())
	assert.Equal(t, uint16(0x0013), dmg.getBC())
	assert.Equal(t, uint16(0x00D8), dmg.getDE())
	assert.Equal(t, uint16(0x014D), dmg.getHL())
	assert.Equal(t, uint16(0xFFFE), dmg.sp)
	assert.Equal(t, uint16(0x0100), dmg.pc)

	cgb := New(&testBus{}, true)
	assert.Equal(t, uint8(0x11), cgb.a)
	assert.Equal(t, uint16(0xFF56), cgb.getDE())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name           string
		code           []uint8
		expectedOpcode uint16
	}{
		{"NOP", []uint8{0x00}, 0x00},
		{"INC B", []uint8{0x04}, 0x04},
		{"CB BIT 0,B", []uint8{0xCB, 0x40}, 0xCB40},
		{"CB SET 7,A", []uint8{0xCB, 0xFF}, 0xCBFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestCPU(tt.code...)
			assert.NotNil(t, Decode(cpu))
			assert.Equal(t, tt.expectedOpcode, cpu.currentOpcode)
		})
	}
}

func TestOpcodeTablesComplete(t *testing.T) {
	for op := range 256 {
		if op == 0xCB {
			continue
		}
		assert.NotNil(t, opcodes[op], "opcode 0x%02X", op)
		assert.NotNil(t, opcodesCB[op], "opcode 0xCB%02X", op)
	}
}

func TestInstructions(t *testing.T) {
	tests := []struct {
		name   string
		code   []uint8
		setup  func(*CPU)
		cycles int
		check  func(*testing.T, *CPU, *testBus)
	}{
		{
			name:   "LD BC, nn",
			code:   []uint8{0x01, 0x34, 0x12},
			cycles: 12,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0x1234), c.getBC())
				assert.Equal(t, uint16(0xC003), c.pc)
			},
		},
		{
			name:   "INC (HL)",
			code:   []uint8{0x34},
			setup:  func(c *CPU) { c.setHL(0xD000); c.bus.Write(0xD000, 0x0F) },
			cycles: 12,
			check: func(t *testing.T, c *CPU, b *testBus) {
				assert.Equal(t, uint8(0x10), b.mem[0xD000])
				assert.Equal(t, "--H-", c.GetFlagString())
			},
		},
		{
			name:   "DEC B to zero keeps carry",
			code:   []uint8{0x05},
			setup:  func(c *CPU) { c.b = 1; c.f = uint8(carryFlag) },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0), c.b)
				assert.Equal(t, "ZN-C", c.GetFlagString())
			},
		},
		{
			name:   "LD D, E",
			code:   []uint8{0x53},
			setup:  func(c *CPU) { c.e = 0x99 },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x99), c.d)
			},
		},
		{
			name:   "LD (HL), A",
			code:   []uint8{0x77},
			setup:  func(c *CPU) { c.a = 0x42; c.setHL(0xD100) },
			cycles: 8,
			check: func(t *testing.T, _ *CPU, b *testBus) {
				assert.Equal(t, uint8(0x42), b.mem[0xD100])
			},
		},
		{
			name:   "ADD A, B with carries",
			code:   []uint8{0x80},
			setup:  func(c *CPU) { c.a = 0xF8; c.b = 0x08 },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x00), c.a)
				assert.Equal(t, "Z-HC", c.GetFlagString())
			},
		},
		{
			name:   "ADC A, n",
			code:   []uint8{0xCE, 0x01},
			setup:  func(c *CPU) { c.a = 0x0E; c.f = uint8(carryFlag) },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x10), c.a)
				assert.Equal(t, "--H-", c.GetFlagString())
			},
		},
		{
			name:   "SUB n borrow",
			code:   []uint8{0xD6, 0x01},
			setup:  func(c *CPU) { c.a = 0x00 },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0xFF), c.a)
				assert.Equal(t, "-NHC", c.GetFlagString())
			},
		},
		{
			name:   "SBC A, C",
			code:   []uint8{0x99},
			setup:  func(c *CPU) { c.a = 0x10; c.c = 0x0F; c.f = uint8(carryFlag) },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x00), c.a)
				assert.Equal(t, "ZNH-", c.GetFlagString())
			},
		},
		{
			name:   "CP n leaves A",
			code:   []uint8{0xFE, 0x42},
			setup:  func(c *CPU) { c.a = 0x42 },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x42), c.a)
				assert.Equal(t, "ZN--", c.GetFlagString())
			},
		},
		{
			name:   "AND sets half carry",
			code:   []uint8{0xE6, 0xF0},
			setup:  func(c *CPU) { c.a = 0x0F },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, "Z-H-", c.GetFlagString())
			},
		},
		{
			name:   "XOR A",
			code:   []uint8{0xAF},
			setup:  func(c *CPU) { c.a = 0x5A },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0), c.a)
				assert.Equal(t, "Z---", c.GetFlagString())
			},
		},
		{
			name:   "ADD HL, DE",
			code:   []uint8{0x19},
			setup:  func(c *CPU) { c.setHL(0x0FFF); c.setDE(0x0001); c.f = uint8(zeroFlag) },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0x1000), c.getHL())
				assert.Equal(t, "Z-H-", c.GetFlagString())
			},
		},
		{
			name:   "ADD SP, -1",
			code:   []uint8{0xE8, 0xFF},
			setup:  func(c *CPU) { c.sp = 0x0001 },
			cycles: 16,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0x0000), c.sp)
				assert.Equal(t, "--HC", c.GetFlagString())
			},
		},
		{
			name:   "LD HL, SP+2",
			code:   []uint8{0xF8, 0x02},
			setup:  func(c *CPU) { c.sp = 0xFFF0 },
			cycles: 12,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0xFFF2), c.getHL())
			},
		},
		{
			name:   "DAA after addition",
			code:   []uint8{0x27},
			setup:  func(c *CPU) { c.a = 0x3C; c.f = 0 },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x42), c.a)
			},
		},
		{
			name:   "DAA after subtraction",
			code:   []uint8{0x27},
			setup:  func(c *CPU) { c.a = 0x0F; c.f = uint8(subFlag | halfCarryFlag) },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x09), c.a)
				assert.Equal(t, "-N--", c.GetFlagString())
			},
		},
		{
			name:   "RLCA clears zero",
			code:   []uint8{0x07},
			setup:  func(c *CPU) { c.a = 0x80; c.f = uint8(zeroFlag) },
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x01), c.a)
				assert.Equal(t, "---C", c.GetFlagString())
			},
		},
		{
			name:   "RLC B sets zero",
			code:   []uint8{0xCB, 0x00},
			setup:  func(c *CPU) { c.b = 0x00 },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, "Z---", c.GetFlagString())
				assert.Equal(t, uint16(0xC002), c.pc)
			},
		},
		{
			name:   "SWAP A",
			code:   []uint8{0xCB, 0x37},
			setup:  func(c *CPU) { c.a = 0xAB },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0xBA), c.a)
			},
		},
		{
			name:   "SRA keeps sign",
			code:   []uint8{0xCB, 0x2F},
			setup:  func(c *CPU) { c.a = 0x81 },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0xC0), c.a)
				assert.Equal(t, "---C", c.GetFlagString())
			},
		},
		{
			name:   "BIT 7, (HL)",
			code:   []uint8{0xCB, 0x7E},
			setup:  func(c *CPU) { c.setHL(0xD000); c.f = uint8(carryFlag) },
			cycles: 12,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, "Z-HC", c.GetFlagString())
			},
		},
		{
			name:   "RES 0, (HL)",
			code:   []uint8{0xCB, 0x86},
			setup:  func(c *CPU) { c.setHL(0xD000); c.bus.Write(0xD000, 0xFF) },
			cycles: 16,
			check: func(t *testing.T, _ *CPU, b *testBus) {
				assert.Equal(t, uint8(0xFE), b.mem[0xD000])
			},
		},
		{
			name:   "SET 3, C",
			code:   []uint8{0xCB, 0xD9},
			cycles: 8,
			setup:  func(c *CPU) { c.c = 0 },
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint8(0x08), c.c)
			},
		},
		{
			name:   "JR backwards",
			code:   []uint8{0x18, 0xFE},
			cycles: 12,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0xC000), c.pc)
			},
		},
		{
			name:   "JR NZ not taken",
			code:   []uint8{0x20, 0x10},
			setup:  func(c *CPU) { c.f = uint8(zeroFlag) },
			cycles: 8,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0xC002), c.pc)
			},
		},
		{
			name:   "JP C taken",
			code:   []uint8{0xDA, 0x00, 0xD0},
			setup:  func(c *CPU) { c.f = uint8(carryFlag) },
			cycles: 16,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0xD000), c.pc)
			},
		},
		{
			name:   "CALL nn",
			code:   []uint8{0xCD, 0x00, 0xD0},
			cycles: 24,
			check: func(t *testing.T, c *CPU, b *testBus) {
				assert.Equal(t, uint16(0xD000), c.pc)
				assert.Equal(t, uint16(0xFFFC), c.sp)
				assert.Equal(t, uint8(0xC0), b.mem[0xFFFD])
				assert.Equal(t, uint8(0x03), b.mem[0xFFFC])
			},
		},
		{
			name:   "CALL NC not taken",
			code:   []uint8{0xD4, 0x00, 0xD0},
			setup:  func(c *CPU) { c.f = uint8(carryFlag) },
			cycles: 12,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0xC003), c.pc)
				assert.Equal(t, uint16(0xFFFE), c.sp)
			},
		},
		{
			name:   "RST 0x28",
			code:   []uint8{0xEF},
			cycles: 16,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.Equal(t, uint16(0x0028), c.pc)
			},
		},
		{
			name:   "PUSH BC, POP AF masks low flags",
			code:   []uint8{0xC5, 0xF1},
			setup:  func(c *CPU) { c.setBC(0x12FF) },
			cycles: 16,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				step(t, c)
				assert.Equal(t, uint16(0x12F0), c.getAF())
			},
		},
		{
			name:   "LDH (n), A",
			code:   []uint8{0xE0, 0x80},
			setup:  func(c *CPU) { c.a = 0x11 },
			cycles: 12,
			check: func(t *testing.T, _ *CPU, b *testBus) {
				assert.Equal(t, uint8(0x11), b.mem[0xFF80])
			},
		},
		{
			name:   "LD (HL-), A",
			code:   []uint8{0x32},
			setup:  func(c *CPU) { c.a = 0x22; c.setHL(0xD000) },
			cycles: 8,
			check: func(t *testing.T, c *CPU, b *testBus) {
				assert.Equal(t, uint8(0x22), b.mem[0xD000])
				assert.Equal(t, uint16(0xCFFF), c.getHL())
			},
		},
		{
			name:   "LD (nn), SP",
			code:   []uint8{0x08, 0x00, 0xD0},
			setup:  func(c *CPU) { c.sp = 0xBEEF },
			cycles: 20,
			check: func(t *testing.T, _ *CPU, b *testBus) {
				assert.Equal(t, uint8(0xEF), b.mem[0xD000])
				assert.Equal(t, uint8(0xBE), b.mem[0xD001])
			},
		},
		{
			name:   "CCF and SCF",
			code:   []uint8{0x37, 0x3F},
			cycles: 4,
			check: func(t *testing.T, c *CPU, _ *testBus) {
				assert.True(t, c.isSetFlag(carryFlag))
				step(t, c)
				assert.False(t, c.isSetFlag(carryFlag))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestCPU(tt.code...)
			cpu.f = 0
			if tt.setup != nil {
				tt.setup(cpu)
			}
			assert.Equal(t, tt.cycles, step(t, cpu))
			tt.check(t, cpu, bus)
		})
	}
}

func TestIllegalOpcodes(t *testing.T) {
	for _, op := range illegalOpcodes {
		cpu, _ := newTestCPU(op)
		_, err := cpu.Exec()

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "opcode 0x%02X", op)
		assert.Equal(t, op, decodeErr.Opcode)
		assert.Equal(t, uint16(0xC000), decodeErr.PC)
		assert.True(t, IsIllegal(op))

		// the CPU stays locked
		_, again := cpu.Exec()
		assert.Equal(t, err, again)
		assert.Equal(t, uint16(0xC000), cpu.pc)
	}
	assert.False(t, IsIllegal(0x00))
}

func TestInterruptHandling(t *testing.T) {
	t.Run("interrupts disabled by default", func(t *testing.T) {
		cpu, bus := newTestCPU(0x00)
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01

		step(t, cpu)
		assert.Equal(t, uint16(0xC001), cpu.pc)
		assert.Equal(t, uint8(0x01), bus.mem[addr.IF])
	})

	t.Run("dispatch pushes PC and jumps to the vector", func(t *testing.T) {
		cpu, bus := newTestCPU(0x00)
		cpu.interruptsEnabled = true
		bus.mem[addr.IF] = uint8(addr.TimerInterrupt)
		bus.mem[addr.IE] = 0x1F

		assert.Equal(t, interruptCycles, step(t, cpu))
		assert.Equal(t, uint16(0x50), cpu.pc)
		assert.False(t, cpu.interruptsEnabled)
		assert.Equal(t, uint8(0), bus.mem[addr.IF])
		assert.Equal(t, uint16(0xFFFC), cpu.sp)
		assert.Equal(t, uint8(0x00), bus.mem[0xFFFC])
		assert.Equal(t, uint8(0xC0), bus.mem[0xFFFD])
	})

	t.Run("interrupt priority order", func(t *testing.T) {
		cpu, bus := newTestCPU(0x00)
		bus.mem[addr.IF] = 0x1F
		bus.mem[addr.IE] = 0x1F

		for _, want := range []uint16{0x40, 0x48, 0x50, 0x58, 0x60} {
			cpu.interruptsEnabled = true
			step(t, cpu)
			assert.Equal(t, want, cpu.pc)
		}
		assert.Equal(t, uint8(0), bus.mem[addr.IF])
	})

	t.Run("EI enables interrupts after the next instruction", func(t *testing.T) {
		cpu, bus := newTestCPU(0xFB, 0x00, 0x00)
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01

		step(t, cpu) // EI
		assert.False(t, cpu.interruptsEnabled)
		step(t, cpu) // NOP still runs
		assert.Equal(t, uint16(0xC002), cpu.pc)
		assert.True(t, cpu.interruptsEnabled)

		step(t, cpu)
		assert.Equal(t, uint16(0x40), cpu.pc)
	})

	t.Run("DI cancels a pending EI", func(t *testing.T) {
		cpu, _ := newTestCPU(0xFB, 0xF3, 0x00)
		step(t, cpu)
		step(t, cpu)
		step(t, cpu)
		assert.False(t, cpu.interruptsEnabled)
	})

	t.Run("RETI enables immediately", func(t *testing.T) {
		cpu, bus := newTestCPU(0xD9)
		cpu.sp = 0xFFFC
		bus.mem[0xFFFC] = 0x00
		bus.mem[0xFFFD] = 0xD0
		step(t, cpu)
		assert.True(t, cpu.interruptsEnabled)
		assert.Equal(t, uint16(0xD000), cpu.pc)
	})
}

func TestHalt(t *testing.T) {
	t.Run("halt idles until an interrupt is pending", func(t *testing.T) {
		cpu, bus := newTestCPU(0x76, 0x04)
		bus.mem[addr.IE] = 0x01
		step(t, cpu)
		assert.True(t, cpu.IsHalted())

		assert.Equal(t, 4, step(t, cpu))
		assert.Equal(t, uint16(0xC001), cpu.pc)

		// wake with IME=0: execution continues after HALT
		bus.mem[addr.IF] = 0x01
		step(t, cpu)
		assert.False(t, cpu.IsHalted())
		assert.Equal(t, uint8(0x01), cpu.b)
	})

	t.Run("halt wakes into the handler with IME=1", func(t *testing.T) {
		cpu, bus := newTestCPU(0x76, 0x00)
		cpu.interruptsEnabled = true
		bus.mem[addr.IE] = 0x04
		step(t, cpu)
		bus.mem[addr.IF] = 0x04
		step(t, cpu)
		assert.Equal(t, uint16(0x50), cpu.pc)
		assert.Equal(t, uint8(0xC0), bus.mem[0xFFFD])
		assert.Equal(t, uint8(0x01), bus.mem[0xFFFC])
	})

	t.Run("halt bug repeats the next byte", func(t *testing.T) {
		// HALT; INC B with IME=0 and a pending interrupt runs INC B twice
		cpu, bus := newTestCPU(0x76, 0x04, 0x00)
		bus.mem[addr.IE] = 0x01
		bus.mem[addr.IF] = 0x01
		cpu.b = 0

		step(t, cpu)
		assert.False(t, cpu.IsHalted())
		step(t, cpu)
		step(t, cpu)
		assert.Equal(t, uint8(2), cpu.b)
		assert.Equal(t, uint16(0xC002), cpu.pc)
	})
}

func TestStop(t *testing.T) {
	t.Run("speed switch when armed", func(t *testing.T) {
		cpu, bus := newTestCPU(0x10, 0x00, 0x04)
		bus.speedArmed = true
		step(t, cpu)
		assert.Equal(t, 1, bus.switched)
		assert.Equal(t, uint16(0xC002), cpu.pc)

		step(t, cpu)
		assert.Equal(t, uint8(0x01), cpu.b)
	})

	t.Run("sleeps until an interrupt otherwise", func(t *testing.T) {
		cpu, bus := newTestCPU(0x10, 0x00, 0x04)
		step(t, cpu)
		step(t, cpu)
		assert.Equal(t, uint16(0xC002), cpu.pc)

		bus.mem[addr.IE] = 0x10
		bus.mem[addr.IF] = 0x10
		step(t, cpu)
		assert.Equal(t, uint8(0x01), cpu.b)
	})
}

func TestCPUSaveLoad(t *testing.T) {
	cpu, bus := newTestCPU(0x00)
	cpu.setBC(0x1234)
	cpu.sp = 0xDFF0
	cpu.interruptsEnabled = true
	cpu.halted = true

	e := savestate.NewEncoder()
	cpu.Save(e)

	restored := New(bus, false)
	d := savestate.NewDecoder(e.Data())
	restored.Load(d)
	require.NoError(t, d.Err())

	assert.Equal(t, uint16(0x1234), restored.getBC())
	assert.Equal(t, uint16(0xDFF0), restored.sp)
	assert.Equal(t, uint16(0xC000), restored.pc)
	assert.True(t, restored.GetIME())
	assert.True(t, restored.IsHalted())
	assert.NoError(t, restored.Err())
}
