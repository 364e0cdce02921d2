package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/valerio/gbplus/gbplus"
	"github.com/valerio/gbplus/gbplus/input"
	"github.com/valerio/gbplus/gbplus/store"
	"github.com/valerio/gbplus/gbplus/timing"
	"github.com/valerio/gbplus/gbplus/video"
)

// persistInterval is how often, in frames, battery RAM and the clock are
// flushed to the store while running.
const persistInterval = 300

// SampleSink receives the audio produced by each frame.
type SampleSink interface {
	Write(samples []float32) error
}

// Session drives an engine with a backend: it steps one frame at a time,
// hands the screen to the backend and applies the events it returns.
type Session struct {
	Engine  *gbplus.Engine
	Backend Backend
	// Limiter paces frames. Nil runs unthrottled.
	Limiter timing.Limiter
	// Store persists battery RAM, the clock and quick save slots. Nil
	// disables persistence.
	Store *store.Store
	Game  string
	// Slot is the quick save slot. Empty means store.DefaultSlot.
	Slot string
	// ROM is attached to states restored by QuickLoad.
	ROM    []byte
	Audio  SampleSink
	Logger *slog.Logger

	frame  *image.RGBA
	frames int
	quit   bool
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Session) slot() string {
	if s.Slot == "" {
		return store.DefaultSlot
	}
	return s.Slot
}

func (s *Session) limiter() timing.Limiter {
	if s.Limiter == nil {
		s.Limiter = timing.NewNoOpLimiter()
	}
	return s.Limiter
}

// Frames returns the number of frames run so far.
func (s *Session) Frames() int { return s.frames }

// Resume loads battery RAM and the clock from the store. Missing files
// are not an error.
func (s *Session) Resume() error {
	if s.Store == nil {
		return nil
	}
	if info, err := s.Engine.Info(); err == nil && info.Battery {
		data, err := s.Store.LoadBattery(s.Game)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := s.Engine.LoadSave(data); err != nil {
				return fmt.Errorf("load battery: %w", err)
			}
			s.logger().Info("Battery RAM loaded", "game", s.Game, "bytes", len(data))
		}
	}
	if s.Engine.HasTimer() {
		snap, err := s.Store.LoadRTC(s.Game)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := s.Engine.LoadRTC(snap); err != nil {
				return fmt.Errorf("load rtc: %w", err)
			}
		}
	}
	return nil
}

// Persist writes battery RAM and the clock to the store when either
// changed since the last call.
func (s *Session) Persist() error {
	if s.Store == nil {
		return nil
	}
	if s.Engine.HasSaved() {
		if err := s.Store.SaveBattery(s.Game, s.Engine.SaveGame().Copy()); err != nil {
			return err
		}
		s.logger().Debug("Battery RAM written", "game", s.Game)
	}
	if s.Engine.HasTimer() && s.Engine.IsRTCDirty() {
		snap, err := s.Engine.FetchRTC()
		if err != nil {
			return err
		}
		if err := s.Store.SaveRTC(s.Game, snap); err != nil {
			return err
		}
		s.Engine.ClearRTCDirty()
	}
	return nil
}

// Run steps frames until the backend asks to quit or ctx is done. The
// backend's Cleanup is left to the caller.
func (s *Session) Run(ctx context.Context) error {
	s.limiter().Reset()
	for !s.quit {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := s.Step(); err != nil {
			return err
		}
		s.limiter().WaitForNextFrame()
	}
	return nil
}

// Step runs one frame and processes the backend's events.
func (s *Session) Step() error {
	if err := s.Engine.StepFrame(); err != nil {
		return err
	}
	paused := s.Engine.Paused()
	if !paused {
		s.frames++
	}

	if s.Audio != nil {
		if err := s.Audio.Write(s.Engine.ReadRingBuffer().Samples()); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
	}

	if !paused && s.frames%persistInterval == 0 {
		if err := s.Persist(); err != nil {
			s.logger().Error("Failed to persist save data", "error", err)
		}
	}

	if r, ok := s.Backend.(StatusSetter); ok {
		status := ""
		if paused {
			status = "PAUSED"
		}
		r.SetStatus(status)
	}

	events, err := s.Backend.Update(s.screen())
	if err != nil {
		return err
	}
	for _, ev := range events {
		s.handle(ev)
	}
	return nil
}

// Quit makes Run return after the current frame.
func (s *Session) Quit() { s.quit = true }

func (s *Session) screen() *image.RGBA {
	if s.frame == nil {
		s.frame = image.NewRGBA(image.Rect(0, 0, video.Width, video.Height))
	}
	copy(s.frame.Pix, s.Engine.Screen().Bytes())
	return s.frame
}

func (s *Session) handle(ev input.Event) {
	if b, ok := input.Button(ev.Action); ok {
		switch ev.Type {
		case input.Press:
			s.Engine.UpdateInput(b, true)
		case input.Release:
			s.Engine.UpdateInput(b, false)
		}
		return
	}
	if ev.Type != input.Press {
		return
	}

	switch ev.Action {
	case input.EmulatorQuit:
		s.quit = true
	case input.EmulatorPauseToggle:
		paused := !s.Engine.Paused()
		s.Engine.SetPause(paused)
		if !paused {
			s.limiter().Reset()
		}
		s.logger().Info("Pause toggled", "paused", paused)
	case input.EmulatorQuickSave:
		if err := s.QuickSave(); err != nil {
			s.logger().Error("Quick save failed", "error", err)
		}
	case input.EmulatorQuickLoad:
		if err := s.QuickLoad(); err != nil {
			s.logger().Error("Quick load failed", "error", err)
		}
	case input.EmulatorPaletteCycle:
		next := (s.Engine.Palette() + 1) % len(video.Palettes)
		if err := s.Engine.ChangePalette(next); err == nil {
			s.logger().Info("Palette changed", "palette", video.Palettes[next].Name)
		}
	case input.AudioToggleChannel1, input.AudioToggleChannel2,
		input.AudioToggleChannel3, input.AudioToggleChannel4:
		if mixer := s.Engine.Mixer(); mixer != nil {
			ch := int(ev.Action-input.AudioToggleChannel1) + 1
			mixer.ToggleChannel(ch)
			s.logger().Info("Audio channel toggled", "channel", ch)
		}
	case input.AudioUnmuteAll:
		if mixer := s.Engine.Mixer(); mixer != nil {
			mixer.UnmuteAll()
		}
	default:
		if h, ok := s.Backend.(ActionHandler); ok {
			h.HandleAction(ev.Action)
		}
	}
}

// QuickSave writes a save state and its thumbnail to the quick slot.
func (s *Session) QuickSave() error {
	if s.Store == nil {
		return errors.New("no save directory")
	}
	view, err := s.Engine.CreateSaveState()
	if err != nil {
		return err
	}
	if err := s.Store.SaveState(s.Game, s.slot(), view.Bytes()); err != nil {
		return err
	}
	if err := s.Store.SaveThumbnail(s.Game, s.slot(), s.screen()); err != nil {
		s.logger().Warn("Thumbnail not saved", "error", err)
	}
	s.logger().Info("State saved", "game", s.Game, "slot", s.slot())
	return nil
}

// QuickLoad restores the quick slot and reattaches the ROM.
func (s *Session) QuickLoad() error {
	if s.Store == nil {
		return errors.New("no save directory")
	}
	data, err := s.Store.LoadState(s.Game, s.slot())
	if err != nil {
		return err
	}
	if err := s.Engine.RestoreState(data, s.ROM); err != nil {
		return err
	}
	s.logger().Info("State loaded", "game", s.Game, "slot", s.slot())
	return nil
}
