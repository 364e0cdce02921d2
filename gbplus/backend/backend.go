// Package backend connects an engine to a platform front end.
package backend

import (
	"image"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/input"
)

// Backend represents a complete emulator platform (rendering + input + audio)
// Backends are responsible for:
// - Rendering frames to their specific output (terminal, files, etc.)
// - Translating platform-specific input events to Actions
// - Handling backend-specific features (snapshots, log filtering)
type Backend interface {
	// Init configures the backend. This is a required step before calling Update.
	Init(config Config) error

	// Update renders the frame and returns the input events collected
	// since the previous call. The frame is only valid during the call.
	Update(frame *image.RGBA) ([]input.Event, error)

	// Cleanup resources when shutting down
	Cleanup() error
}

// ActionHandler is implemented by backends that handle some actions
// themselves. The session forwards every action it does not handle.
type ActionHandler interface {
	HandleAction(act input.Action)
}

// StatusSetter is implemented by backends that can show a short status
// line, such as "PAUSED".
type StatusSetter interface {
	SetStatus(status string)
}

// Config holds configuration for backends
type Config struct {
	Title  string
	Scale  int
	Logger *slog.Logger
}

// Log returns the configured logger, or slog.Default.
func (c Config) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
