package audio

// Timing constants
// Reference: https://gbdev.io/pandocs/Audio_details.html
const (
	// cpuFrequency is the single speed clock the APU is ticked with, also in
	// CGB double speed mode.
	cpuFrequency = 4194304

	// cyclesPerStep is the number of CPU cycles per frame sequencer tick.
	// The frame sequencer runs at 512 Hz: 4194304 Hz / 512 Hz = 8192 t-cycles
	cyclesPerStep = 8192

	// DefaultSampleRate is the output rate of the mixer.
	DefaultSampleRate = 44100

	// Channels is the number of interleaved output channels (L, R).
	Channels = 2
)

// Channel constants
const (
	// waveRAMSize is the size of wave pattern RAM in bytes (16 bytes = 32 nibbles)
	waveRAMSize = 16

	squareLength = 64
	waveLength   = 256
	noiseLength  = 64

	maxPeriod = 2047
)

// dutyTable holds the 8 step waveforms: 12.5%, 25%, 50%, 75%.
var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}

// noiseDivisors maps NR43 bits 0-2 to the LFSR clock divider in CPU cycles.
var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// waveVolume maps the NR32 output level to a right shift of the 4-bit sample.
var waveVolume = [4]uint8{4, 0, 1, 2}

// readMasks are ORed into register reads, write-only and unused bits read 1.
// Indexed from NR10 (0xFF10) to 0xFF2F.
var readMasks = [0x20]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}
