// Package store persists per-game files: battery RAM (.sav), clock
// snapshots (.rtc) and compressed save state slots.
//
// Layout under Dir:
//
//	<game>.sav
//	<game>.rtc
//	<game>/<slot>.state
//	<game>/<slot>.png
package store

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// DefaultSlot is the slot used by quick save and quick load.
const DefaultSlot = "quick_save"

// compressionLevel trades ratio for speed; states are written from the
// frame loop.
const compressionLevel = 2

const (
	batteryExt   = ".sav"
	rtcExt       = ".rtc"
	stateExt     = ".state"
	thumbnailExt = ".png"
)

// maxStateSize bounds a decompressed state. Real states stay well under 1 MiB.
var maxStateSize int64 = 4 << 20

// ErrNotFound is returned when the requested file does not exist.
var ErrNotFound = fmt.Errorf("store: %w", fs.ErrNotExist)

// ErrStateTooLarge is returned for slots that decompress past maxStateSize.
var ErrStateTooLarge = errors.New("store: state exceeds the maximum size")

// Store reads and writes files under Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

// GameNameFromPath derives a game key from a ROM file name, without its
// directory and extension.
func GameNameFromPath(path string) string {
	base := filepath.Base(path)
	return GameName(strings.TrimSuffix(base, filepath.Ext(base)))
}

// GameName turns a ROM title into a file-safe key. Characters outside
// [A-Za-z0-9 _-.()] become underscores.
func GameName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_', r == '.', r == '(', r == ')':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if out := b.String(); out != "" && strings.Trim(out, ".") != "" {
		return out
	}
	return "untitled"
}

func (s *Store) path(game, ext string) string {
	return filepath.Join(s.Dir, GameName(game)+ext)
}

func (s *Store) slotPath(game, slot, ext string) (string, error) {
	if slot == "" {
		slot = DefaultSlot
	}
	if slot != GameName(slot) {
		return "", fmt.Errorf("store: invalid slot name %q", slot)
	}
	return filepath.Join(s.Dir, GameName(game), slot+ext), nil
}

// writeFile writes to a temporary file first and renames it over the
// target, so the target is never partially written.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// SaveBattery writes cartridge RAM.
func (s *Store) SaveBattery(game string, data []byte) error {
	return writeFile(s.path(game, batteryExt), data)
}

func (s *Store) LoadBattery(game string) ([]byte, error) {
	return readFile(s.path(game, batteryExt))
}

// SaveRTC writes a clock snapshot as produced by the engine.
func (s *Store) SaveRTC(game, snapshot string) error {
	return writeFile(s.path(game, rtcExt), []byte(snapshot))
}

func (s *Store) LoadRTC(game string) (string, error) {
	data, err := readFile(s.path(game, rtcExt))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveState compresses a save state into a slot. An empty slot name
// means DefaultSlot.
func (s *Store) SaveState(game, slot string, state []byte) error {
	path, err := s.slotPath(game, slot, stateExt)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return err
	}
	if _, err := w.Write(state); err != nil {
		return fmt.Errorf("failed to compress state: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to compress state: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// LoadState returns the decompressed state stored in a slot.
func (s *Store) LoadState(game, slot string) ([]byte, error) {
	path, err := s.slotPath(game, slot, stateExt)
	if err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state %s: %w", path, err)
	}
	defer r.Close()
	state, err := io.ReadAll(io.LimitReader(r, maxStateSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state %s: %w", path, err)
	}
	if int64(len(state)) > maxStateSize {
		return nil, fmt.Errorf("%w: %s", ErrStateTooLarge, path)
	}
	return state, nil
}

// SaveThumbnail stores a PNG preview next to a state slot.
func (s *Store) SaveThumbnail(game, slot string, img image.Image) error {
	path, err := s.slotPath(game, slot, thumbnailExt)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

func (s *Store) LoadThumbnail(game, slot string) (image.Image, error) {
	path, err := s.slotPath(game, slot, thumbnailExt)
	if err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(data))
}

// ListStates returns the slot names stored for a game, sorted.
func (s *Store) ListStates(game string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, GameName(game)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var slots []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != stateExt {
			continue
		}
		slots = append(slots, strings.TrimSuffix(name, stateExt))
	}
	slices.Sort(slots)
	return slots, nil
}

// DeleteState removes a slot and its thumbnail.
func (s *Store) DeleteState(game, slot string) error {
	path, err := s.slotPath(game, slot, stateExt)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	thumb, _ := s.slotPath(game, slot, thumbnailExt)
	if err := os.Remove(thumb); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
