package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli"
	"github.com/user-none/eblitui/romloader"
	"github.com/valerio/gbplus/gbplus"
	"github.com/valerio/gbplus/gbplus/adapter"
	"github.com/valerio/gbplus/gbplus/audio"
	"github.com/valerio/gbplus/gbplus/backend"
	"github.com/valerio/gbplus/gbplus/backend/headless"
	"github.com/valerio/gbplus/gbplus/backend/terminal"
	"github.com/valerio/gbplus/gbplus/store"
	"github.com/valerio/gbplus/gbplus/timing"
	"github.com/valerio/gbplus/gbplus/video"
)

func paletteList() string {
	names := make([]string, len(video.Palettes))
	for i, p := range video.Palettes {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func newLogger(c *cli.Context) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.GlobalString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.GlobalString("log-level"))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// game is a loaded ROM and the name its files are stored under.
type game struct {
	path string
	rom  []byte
	name string
}

func loadGame(c *cli.Context) (game, error) {
	path := c.String("rom")
	if path == "" {
		path = c.Args().First()
	}
	if path == "" {
		cli.ShowCommandHelp(c, c.Command.Name)
		return game{}, errors.New("no ROM path provided")
	}

	exts := (&adapter.Factory{}).SystemInfo().Extensions
	rom, _, err := romloader.Load(path, exts)
	if err != nil {
		return game{}, err
	}
	return game{path: path, rom: rom, name: store.GameNameFromPath(path)}, nil
}

// newEngine builds an engine from the global flags and loads g into it.
func newEngine(c *cli.Context, g game, logger *slog.Logger) (*gbplus.Engine, error) {
	model, ok := gbplus.ParseModel(c.GlobalString("model"))
	if !ok {
		return nil, fmt.Errorf("unknown model %q", c.GlobalString("model"))
	}

	e := gbplus.New(gbplus.WithLogger(logger), gbplus.WithModel(model))
	if name := c.GlobalString("palette"); name != "" {
		i, ok := video.PaletteByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown palette %q, choose one of %s", name, paletteList())
		}
		if err := e.ChangePalette(i); err != nil {
			return nil, err
		}
	}

	if err := e.LoadROM(g.rom); err != nil {
		return nil, fmt.Errorf("load %s: %w", g.path, err)
	}
	return e, nil
}

func openStore(c *cli.Context) (*store.Store, error) {
	dir := c.GlobalString("save-dir")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("no save directory: %w", err)
		}
		dir = filepath.Join(base, gbplus.Name)
	}
	return store.New(dir), nil
}

func runHeadless(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("run requires --frames option with a positive value")
	}

	g, err := loadGame(c)
	if err != nil {
		return err
	}
	e, err := newEngine(c, g, logger)
	if err != nil {
		return err
	}
	st, err := openStore(c)
	if err != nil {
		return err
	}

	snapshots, err := headless.CreateSnapshotConfig(c.Int("snapshot-interval"), c.String("snapshot-dir"), g.path)
	if err != nil {
		return err
	}
	h := headless.New(frames, snapshots)
	if err := h.Init(backend.Config{Title: g.name, Logger: logger}); err != nil {
		return err
	}
	defer h.Cleanup()

	s := &backend.Session{
		Engine:  e,
		Backend: h,
		Store:   st,
		Game:    g.name,
		ROM:     g.rom,
		Logger:  logger,
	}
	if err := s.Resume(); err != nil {
		return err
	}
	if slot := c.String("load-state"); slot != "" {
		s.Slot = slot
		if err := s.QuickLoad(); err != nil {
			return fmt.Errorf("load state %s: %w", slot, err)
		}
	}

	if path := c.String("wav"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		wav := audio.NewWAVWriter(f, e.SampleRate())
		defer func() {
			if err := wav.Close(); err != nil {
				logger.Error("Failed to finish WAV file", "path", path, "error", err)
				return
			}
			logger.Info("Audio written", "path", path, "frames", wav.Frames())
		}()
		s.Audio = wav
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := s.Run(ctx)

	if slot := c.String("save-state"); slot != "" && runErr == nil {
		s.Slot = slot
		if err := s.QuickSave(); err != nil {
			return fmt.Errorf("save state %s: %w", slot, err)
		}
	}
	if err := s.Persist(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func playTerminal(c *cli.Context) error {
	term := terminal.New(terminal.WithSnapshotDir(c.String("snapshot-dir")))
	logger := term.Logger()
	slog.SetDefault(logger)

	g, err := loadGame(c)
	if err != nil {
		return err
	}
	e, err := newEngine(c, g, logger)
	if err != nil {
		return err
	}
	st, err := openStore(c)
	if err != nil {
		return err
	}

	if err := term.Init(backend.Config{Title: g.name, Scale: c.Int("scale"), Logger: logger}); err != nil {
		return err
	}
	defer term.Cleanup()

	s := &backend.Session{
		Engine:  e,
		Backend: term,
		Limiter: timing.NewAdaptiveLimiter(nil, logger),
		Store:   st,
		Game:    g.name,
		Slot:    c.String("state-slot"),
		ROM:     g.rom,
		Logger:  logger,
	}
	if err := s.Resume(); err != nil {
		logger.Warn("Save data not restored", "error", err)
	}
	runErr := s.Run(context.Background())
	if err := s.Persist(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printInfo(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	g, err := loadGame(c)
	if err != nil {
		return err
	}
	e, err := newEngine(c, g, logger)
	if err != nil {
		return err
	}
	info, err := e.Info()
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Title:     %s\n", info.Title)
	fmt.Fprintf(w, "Type:      %s (%s)\n", info.Type, info.Mapper)
	fmt.Fprintf(w, "CGB flag:  0x%02X (running as %s)\n", info.CGBFlag, modelName(info.CGB))
	fmt.Fprintf(w, "ROM size:  %d KiB\n", info.ROMSize/1024)
	fmt.Fprintf(w, "RAM size:  %d bytes\n", info.RAMSize)
	fmt.Fprintf(w, "Battery:   %t\n", info.Battery)
	fmt.Fprintf(w, "Timer:     %t\n", info.Timer)
	fmt.Fprintf(w, "Checksum:  0x%04X\n", info.Checksum)
	return nil
}

func modelName(cgb bool) string {
	if cgb {
		return gbplus.ModelCGB.String()
	}
	return gbplus.ModelDMG.String()
}

func manageStates(c *cli.Context) error {
	path := c.String("rom")
	if path == "" {
		path = c.Args().First()
	}
	if path == "" {
		return errors.New("no ROM path provided")
	}
	name := store.GameNameFromPath(path)
	st, err := openStore(c)
	if err != nil {
		return err
	}

	if slot := c.String("delete"); slot != "" {
		if err := st.DeleteState(name, slot); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %s/%s\n", name, slot)
		return nil
	}

	slots, err := st.ListStates(name)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintf(c.App.Writer, "no save states for %s\n", name)
		return nil
	}
	for _, slot := range slots {
		fmt.Fprintln(c.App.Writer, slot)
	}
	return nil
}
