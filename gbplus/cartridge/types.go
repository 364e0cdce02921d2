package cartridge

// Kind identifies the memory bank controller family of a cartridge.
type Kind uint8

const (
	KindROM Kind = iota
	KindMBC1
	KindMBC2
	KindMBC3
	KindMBC5
)

func (k Kind) String() string {
	switch k {
	case KindROM:
		return "ROM"
	case KindMBC1:
		return "MBC1"
	case KindMBC2:
		return "MBC2"
	case KindMBC3:
		return "MBC3"
	case KindMBC5:
		return "MBC5"
	}
	return "unknown"
}

type features struct {
	kind    Kind
	ram     bool
	battery bool
	timer   bool
	rumble  bool
}

// supportedTypes maps the header byte at 0x0147 to the emulated hardware.
var supportedTypes = map[uint8]features{
	0x00: {kind: KindROM},
	0x08: {kind: KindROM, ram: true},
	0x09: {kind: KindROM, ram: true, battery: true},
	0x01: {kind: KindMBC1},
	0x02: {kind: KindMBC1, ram: true},
	0x03: {kind: KindMBC1, ram: true, battery: true},
	0x05: {kind: KindMBC2, ram: true},
	0x06: {kind: KindMBC2, ram: true, battery: true},
	0x0F: {kind: KindMBC3, battery: true, timer: true},
	0x10: {kind: KindMBC3, ram: true, battery: true, timer: true},
	0x11: {kind: KindMBC3},
	0x12: {kind: KindMBC3, ram: true},
	0x13: {kind: KindMBC3, ram: true, battery: true},
	0x19: {kind: KindMBC5},
	0x1A: {kind: KindMBC5, ram: true},
	0x1B: {kind: KindMBC5, ram: true, battery: true},
	0x1C: {kind: KindMBC5, rumble: true},
	0x1D: {kind: KindMBC5, ram: true, rumble: true},
	0x1E: {kind: KindMBC5, ram: true, battery: true, rumble: true},
}

var typeNames = map[uint8]string{
	0x00: "ROM ONLY",
	0x01: "MBC1",
	0x02: "MBC1+RAM",
	0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2",
	0x06: "MBC2+BATTERY",
	0x08: "ROM+RAM",
	0x09: "ROM+RAM+BATTERY",
	0x0B: "MMM01",
	0x0C: "MMM01+RAM",
	0x0D: "MMM01+RAM+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY",
	0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3",
	0x12: "MBC3+RAM",
	0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5",
	0x1A: "MBC5+RAM",
	0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE",
	0x1D: "MBC5+RUMBLE+RAM",
	0x1E: "MBC5+RUMBLE+RAM+BATTERY",
	0x20: "MBC6",
	0x22: "MBC7+SENSOR+RUMBLE+RAM+BATTERY",
	0xFC: "POCKET CAMERA",
	0xFD: "BANDAI TAMA5",
	0xFE: "HuC3",
	0xFF: "HuC1+RAM+BATTERY",
}

// TypeName returns the conventional name of a cartridge type byte.
func TypeName(t uint8) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}
