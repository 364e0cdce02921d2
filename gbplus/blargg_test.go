package gbplus_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbplus/gbplus"
)

// romDir holds blargg's test ROMs. Set GBPLUS_TEST_ROMS to run the suite
// against a local copy; tests skip when the files are missing.
func romDir() string {
	if dir := os.Getenv("GBPLUS_TEST_ROMS"); dir != "" {
		return dir
	}
	return filepath.Join("..", "test-roms")
}

type blarggTestCase struct {
	Name      string
	ROMPath   string
	MaxFrames int
}

func blarggTests() []blarggTestCase {
	names := []string{
		"01-special",
		"02-interrupts",
		"03-op sp,hl",
		"04-op r,imm",
		"05-op rp",
		"06-ld r,r",
		"07-jr,jp,call,ret,rst",
		"08-misc instrs",
		"09-op r,r",
		"10-bit ops",
		"11-op a,(hl)",
	}
	tests := make([]blarggTestCase, 0, len(names)+1)
	for _, name := range names {
		tests = append(tests, blarggTestCase{
			Name:      name,
			ROMPath:   filepath.Join(romDir(), "cpu_instrs", "individual", name+".gb"),
			MaxFrames: 3000,
		})
	}
	return append(tests, blarggTestCase{
		Name:      "instr_timing",
		ROMPath:   filepath.Join(romDir(), "instr_timing", "instr_timing.gb"),
		MaxFrames: 1000,
	})
}

// runBlarggTest steps the ROM until its serial output reports a result.
func runBlarggTest(t *testing.T, tc blarggTestCase) string {
	rom, err := os.ReadFile(tc.ROMPath)
	if os.IsNotExist(err) {
		t.Skipf("ROM file not found: %s", tc.ROMPath)
	}
	require.NoError(t, err)

	var serial bytes.Buffer
	e := gbplus.New(gbplus.WithSerialSink(&serial), gbplus.WithModel(gbplus.ModelDMG))
	require.NoError(t, e.LoadROM(rom))

	for range tc.MaxFrames {
		require.NoError(t, e.StepFrame())
		out := serial.String()
		if strings.Contains(out, "Passed") || strings.Contains(out, "Failed") {
			return out
		}
	}
	return serial.String()
}

func TestBlargg(t *testing.T) {
	for _, tc := range blarggTests() {
		t.Run(tc.Name, func(t *testing.T) {
			out := runBlarggTest(t, tc)
			assert.Contains(t, out, "Passed", "serial output:\n%s", out)
		})
	}
}
