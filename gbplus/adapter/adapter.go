// Package adapter exposes the engine as an eblitui core, so the eblitui
// standalone, libretro and iOS hosts can run it.
package adapter

import (
	"log/slog"

	emucore "github.com/user-none/eblitui/api"
	"github.com/valerio/gbplus/gbplus"
	"github.com/valerio/gbplus/gbplus/audio"
	"github.com/valerio/gbplus/gbplus/video"
)

// Compile-time interface check.
var _ emucore.CoreFactory = (*Factory)(nil)

// Factory implements emucore.CoreFactory for the Game Boy engine.
type Factory struct {
	// Options are passed to every engine the factory creates.
	Options []gbplus.Option
}

// Button bit positions above the standard d-pad bits.
const (
	buttonA = 4 + iota
	buttonB
	buttonSelect
	buttonStart
)

const paletteOption = "palette"

func paletteNames() []string {
	names := make([]string, len(video.Palettes))
	for i, p := range video.Palettes {
		names[i] = p.Name
	}
	return names
}

// SystemInfo returns system metadata for UI configuration.
func (f *Factory) SystemInfo() emucore.SystemInfo {
	return emucore.SystemInfo{
		Name:            gbplus.Name,
		ConsoleName:     "Nintendo Game Boy",
		Extensions:      []string{".gb", ".gbc", ".cgb"},
		ScreenWidth:     video.Width,
		MaxScreenHeight: video.Height,
		AspectRatio:     float64(video.Width) / float64(video.Height),
		SampleRate:      audio.DefaultSampleRate,
		Buttons: []emucore.Button{
			{Name: "A", ID: buttonA, DefaultKey: "J", DefaultPad: "A"},
			{Name: "B", ID: buttonB, DefaultKey: "K", DefaultPad: "B"},
			{Name: "Select", ID: buttonSelect, DefaultKey: "RShift", DefaultPad: "Back"},
			{Name: "Start", ID: buttonStart, DefaultKey: "Enter", DefaultPad: "Start"},
		},
		Players: 1,
		CoreOptions: []emucore.CoreOption{
			{
				Key:         paletteOption,
				Label:       "Monochrome Palette",
				Description: "Colors used for original Game Boy games",
				Type:        emucore.CoreOptionSelect,
				Default:     video.Palettes[video.DefaultPalette].Name,
				Values:      paletteNames(),
				Category:    emucore.CoreOptionCategoryVideo,
				PerGame:     true,
			},
		},
		RDBName:       "Nintendo - Game Boy",
		ThumbnailRepo: "Nintendo_-_Game_Boy",
		DataDirName:   gbplus.Name,
		ConsoleID:     4,
		CoreName:      gbplus.Name,
		CoreVersion:   gbplus.Version,
	}
}

// CreateEmulator creates a new emulator instance with the given ROM. The
// Game Boy has no video regions, so region is ignored.
func (f *Factory) CreateEmulator(rom []byte, region emucore.Region) (emucore.Emulator, error) {
	e := gbplus.New(f.Options...)
	if err := e.LoadROM(rom); err != nil {
		return nil, err
	}
	return newEmulator(e, rom), nil
}

// DetectRegion always reports NTSC timing. The bool is false since no ROM
// database is consulted.
func (f *Factory) DetectRegion(rom []byte) (emucore.Region, bool) {
	return emucore.RegionNTSC, false
}

func logger() *slog.Logger {
	return slog.Default().With("core", gbplus.Name)
}
