package render

import (
	"image"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferWraps(t *testing.T) {
	lb := NewLogBuffer(3)
	for i := range 5 {
		lb.Add(LogEntry{Message: string(rune('a' + i)), Level: slog.LevelInfo})
	}
	assert.Equal(t, 3, lb.Len())

	var got []string
	for _, e := range lb.Recent(0, slog.LevelDebug) {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"e", "d", "c"}, got)

	lb.Clear()
	assert.Empty(t, lb.Recent(0, slog.LevelDebug))
}

func TestLogBufferFiltersLevel(t *testing.T) {
	lb := NewLogBuffer(10)
	lb.Add(LogEntry{Message: "debug", Level: slog.LevelDebug})
	lb.Add(LogEntry{Message: "warn", Level: slog.LevelWarn})
	lb.Add(LogEntry{Message: "info", Level: slog.LevelInfo})

	got := lb.Recent(1, slog.LevelWarn)
	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0].Message)
	assert.Len(t, lb.Recent(5, slog.LevelInfo), 2)
}

func TestHandlerFormatsAttrs(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := slog.New(NewHandler(lb, slog.LevelInfo)).With("core", "gbplus").WithGroup("rom")

	logger.Debug("dropped")
	logger.Info("loaded", "title", "TETRIS", slog.Group("size", "rom", 32))

	entries := lb.Recent(0, slog.LevelDebug)
	require.Len(t, entries, 1)
	assert.Equal(t, "loaded core=gbplus rom.title=TETRIS rom.size.rom=32", entries[0].Message)
}

func TestFormatLogEntry(t *testing.T) {
	tests := []struct {
		level slog.Level
		tag   string
	}{
		{slog.LevelDebug, "[DBG]"},
		{slog.LevelInfo, "[INF]"},
		{slog.LevelWarn, "[WRN]"},
		{slog.LevelError, "[ERR]"},
		{slog.LevelError + 4, "[ERR]"},
	}
	at := time.Date(2024, 1, 1, 13, 4, 5, 0, time.UTC)
	for _, tt := range tests {
		s := FormatLogEntry(LogEntry{Time: at, Level: tt.level, Message: "hi"})
		assert.True(t, strings.HasPrefix(s, "13:04:05 "+tt.tag), s)
	}
}

func TestCell(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	img.SetRGBA(0, 0, color.RGBA{R: 0xFF, A: 0xFF})
	img.SetRGBA(0, 1, color.RGBA{B: 0xFF, A: 0xFF})
	img.SetRGBA(1, 2, color.RGBA{G: 0x80, A: 0xFF})

	fg, bg, _ := Cell(img, 0, 0).Decompose()
	assert.Equal(t, tcell.NewRGBColor(0xFF, 0, 0), fg)
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0xFF), bg)

	fg, bg, _ = Cell(img, 1, 2).Decompose()
	assert.Equal(t, tcell.NewRGBColor(0, 0x80, 0), fg)
	assert.Equal(t, tcell.ColorBlack, bg)
}
