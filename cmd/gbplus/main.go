package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"
	"github.com/valerio/gbplus/gbplus"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = gbplus.Name
	app.Description = "A Game Boy and Game Boy Color emulator"
	app.Usage = "gbplus <command> [options] <ROM file>"
	app.Version = gbplus.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn or error",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "model",
			Usage: "Hardware to emulate: auto, dmg or cgb",
			Value: gbplus.ModelAuto.String(),
		},
		cli.StringFlag{
			Name:  "palette",
			Usage: "Palette for monochrome games: " + paletteList(),
		},
		cli.StringFlag{
			Name:  "save-dir",
			Usage: "Directory for battery saves, clocks and save states (default: user config dir)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Run a ROM headless for a number of frames",
			Action: runHeadless,
			Flags: []cli.Flag{
				romFlag,
				cli.IntFlag{
					Name:  "frames",
					Usage: "Number of frames to run (required)",
				},
				cli.IntFlag{
					Name:  "snapshot-interval",
					Usage: "Save PNG snapshots every N frames (0 = disabled)",
				},
				cli.StringFlag{
					Name:  "snapshot-dir",
					Usage: "Directory to save frame snapshots (default: temp directory)",
				},
				cli.StringFlag{
					Name:  "wav",
					Usage: "Write the audio output to this WAV file",
				},
				cli.StringFlag{
					Name:  "load-state",
					Usage: "Restore this save state slot before running",
				},
				cli.StringFlag{
					Name:  "save-state",
					Usage: "Write a save state to this slot after running",
				},
			},
		},
		{
			Name:   "play",
			Usage:  "Play a ROM in the terminal",
			Action: playTerminal,
			Flags: []cli.Flag{
				romFlag,
				cli.StringFlag{
					Name:  "state-slot",
					Usage: "Slot used by quick save (F5) and quick load (F9)",
				},
				cli.IntFlag{
					Name:  "scale",
					Usage: "Terminal cells per pixel",
					Value: 1,
				},
				cli.StringFlag{
					Name:  "snapshot-dir",
					Usage: "Directory for F12 snapshots (default: working directory)",
				},
			},
		},
		{
			Name:   "info",
			Usage:  "Print the cartridge header of a ROM",
			Action: printInfo,
			Flags:  []cli.Flag{romFlag},
		},
		{
			Name:   "state",
			Usage:  "List or delete the save states of a ROM",
			Action: manageStates,
			Flags: []cli.Flag{
				romFlag,
				cli.StringFlag{
					Name:  "delete",
					Usage: "Delete this slot",
				},
			},
		},
	}
	return app
}

var romFlag = cli.StringFlag{
	Name:  "rom",
	Usage: "Path to the ROM file (raw, zip, 7z, gzip or rar)",
}
