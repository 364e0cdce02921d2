package headless_test

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbplus/gbplus/backend"
	"github.com/valerio/gbplus/gbplus/backend/headless"
	"github.com/valerio/gbplus/gbplus/input"
	"github.com/valerio/gbplus/gbplus/video"
)

func newFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, video.Width, video.Height))
}

func TestHeadlessBackend(t *testing.T) {
	t.Run("normal operation", func(t *testing.T) {
		h := headless.New(3, headless.SnapshotConfig{})
		require.NoError(t, h.Init(backend.Config{Title: "Test"}))

		frame := newFrame()
		for i := 0; i < 3; i++ {
			events, err := h.Update(frame)
			assert.NoError(t, err)

			if i < 2 {
				assert.Empty(t, events)
			} else {
				assert.Len(t, events, 1)
				assert.Equal(t, input.EmulatorQuit, events[0].Action)
				assert.Equal(t, input.Press, events[0].Type)
			}
		}

		assert.NoError(t, h.Cleanup())
	})

	t.Run("zero frames", func(t *testing.T) {
		h := headless.New(0, headless.SnapshotConfig{})
		assert.Error(t, h.Init(backend.Config{}))
	})
}

func TestSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	config, err := headless.CreateSnapshotConfig(2, dir, "/roms/Tetris (World).gb")
	require.NoError(t, err)
	assert.Equal(t, "Tetris (World)", config.ROMName)

	h := headless.New(5, config)
	require.NoError(t, h.Init(backend.Config{}))

	frame := newFrame()
	frame.Pix[0] = 0xAB
	frame.Pix[3] = 0xFF
	for range 5 {
		_, err := h.Update(frame)
		require.NoError(t, err)
	}

	// Frames 2 and 4 by interval, 5 because it is the last one.
	require.Len(t, h.Snapshots(), 3)
	assert.Equal(t, filepath.Join(dir, "Tetris (World)_frame_5.png"), h.Snapshots()[2])

	f, err := os.Open(h.Snapshots()[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, video.Width, video.Height), img.Bounds())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xAB), r>>8)
}

func TestCreateSnapshotConfigDisabled(t *testing.T) {
	config, err := headless.CreateSnapshotConfig(0, "", "game.gb")
	require.NoError(t, err)
	assert.False(t, config.Enabled)
	assert.Empty(t, config.Directory)
}

func TestHeadlessImplementsBackend(t *testing.T) {
	var _ backend.Backend = (*headless.Backend)(nil)
}
