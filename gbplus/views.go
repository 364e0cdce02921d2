package gbplus

import (
	"slices"
	"sync/atomic"
)

// Views borrow engine memory. A view stays valid until the next mutating
// call on the engine (StepFrame, LoadROM, ReloadROM, LoadSave, LoadRTC,
// LoadSaveState); sample views expire on the next ReadRingBuffer instead.
// Reading a view after it expired returns whatever the engine has since
// written there. Copy the data to keep it.
type view struct {
	gen     uint64
	counter *atomic.Uint64
}

func issue(counter *atomic.Uint64) view {
	return view{gen: counter.Load(), counter: counter}
}

// Valid reports whether the borrowed memory still holds what it held when
// the view was returned.
func (v view) Valid() bool {
	return v.counter != nil && v.counter.Load() == v.gen
}

// ScreenView is the last completed frame as RGBA bytes, row major.
type ScreenView struct {
	view
	data []byte
}

func (v ScreenView) Bytes() []byte { return v.data }
func (v ScreenView) Len() int      { return len(v.data) }
func (v ScreenView) Copy() []byte  { return slices.Clone(v.data) }

// SampleView holds interleaved stereo samples in [-1, 1].
type SampleView struct {
	view
	data []float32
}

func (v SampleView) Samples() []float32 { return v.data }
func (v SampleView) Len() int           { return len(v.data) }
func (v SampleView) Copy() []float32    { return slices.Clone(v.data) }

// SaveView is the cartridge's external RAM.
type SaveView struct {
	view
	data []byte
}

func (v SaveView) Bytes() []byte { return v.data }
func (v SaveView) Len() int      { return len(v.data) }
func (v SaveView) Copy() []byte  { return slices.Clone(v.data) }

// StateView is a complete save state buffer.
type StateView struct {
	view
	data []byte
}

func (v StateView) Bytes() []byte { return v.data }
func (v StateView) Len() int      { return len(v.data) }
func (v StateView) Copy() []byte  { return slices.Clone(v.data) }
