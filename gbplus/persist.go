package gbplus

import (
	"github.com/valerio/gbplus/gbplus/rtc"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// LoadSave replaces the cartridge's external RAM with battery data.
func (e *Engine) LoadSave(data []byte) error {
	if e.m == nil {
		return ErrNoROM
	}
	if err := e.m.cart.LoadRAM(data); err != nil {
		return err
	}
	e.mutated()
	return nil
}

// SaveGame returns the cartridge's external RAM, empty when it has none.
func (e *Engine) SaveGame() SaveView {
	var data []byte
	if e.m != nil {
		data = e.m.cart.RAM()
	}
	return SaveView{view: issue(&e.generation), data: data}
}

func (e *Engine) SaveLength() int {
	if e.m == nil {
		return 0
	}
	return len(e.m.cart.RAM())
}

// HasSaved reports whether the game wrote to battery backed RAM since the
// previous call, and clears the flag.
func (e *Engine) HasSaved() bool {
	if e.m == nil || !e.m.cart.HasBattery() {
		return false
	}
	dirty := e.m.cart.RAMDirty()
	e.m.cart.ClearRAMDirty()
	return dirty
}

// HasTimer reports whether the cartridge has a real-time clock worth
// persisting.
func (e *Engine) HasTimer() bool {
	return e.m != nil && e.m.cart.HasTimer()
}

func (e *Engine) clock() (*rtc.Clock, error) {
	if e.m == nil {
		return nil, ErrNoROM
	}
	c := e.m.cart.RTC()
	if c == nil {
		return nil, ErrNoTimer
	}
	return c, nil
}

// FetchRTC serializes the clock together with the current wall time, as
// JSON.
func (e *Engine) FetchRTC() (string, error) {
	c, err := e.clock()
	if err != nil {
		return "", err
	}
	data, err := c.Fetch()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadRTC restores a clock written by FetchRTC and fast-forwards it by the
// wall time that passed since.
func (e *Engine) LoadRTC(snapshot string) error {
	c, err := e.clock()
	if err != nil {
		return err
	}
	if err := c.Restore([]byte(snapshot)); err != nil {
		return err
	}
	e.mutated()
	return nil
}

// IsRTCDirty reports whether the clock changed since ClearRTCDirty.
func (e *Engine) IsRTCDirty() bool {
	c, err := e.clock()
	return err == nil && c.Dirty()
}

func (e *Engine) ClearRTCDirty() {
	if c, err := e.clock(); err == nil {
		c.ClearDirty()
	}
}

func (e *Engine) encodeState() ([]byte, error) {
	if e.m == nil {
		return nil, ErrNoROM
	}
	enc := savestate.NewEncoder()
	e.m.save(enc)

	var flags uint16
	if e.m.cgb {
		flags |= savestate.FlagCGB
	}
	return savestate.Wrap(flags, e.m.cart.Header().GlobalChecksum, enc.Data()), nil
}

// CreateSaveState snapshots the whole machine. ROM banks are not included:
// restoring takes LoadSaveState followed by ReloadROM.
func (e *Engine) CreateSaveState() (StateView, error) {
	data, err := e.encodeState()
	if err != nil {
		return StateView{}, err
	}
	return StateView{view: issue(&e.generation), data: data}, nil
}

// SaveStateLength is the size CreateSaveState would return right now.
func (e *Engine) SaveStateLength() int {
	data, err := e.encodeState()
	if err != nil {
		return 0
	}
	return len(data)
}

// LoadSaveState replaces the machine with one restored from data. A
// rejected buffer returns a *StateFormatError and leaves the running
// machine untouched. On success StepFrame refuses to run until ReloadROM
// provides the ROM banks.
func (e *Engine) LoadSaveState(data []byte) error {
	m, err := e.decodeState(data)
	if err != nil {
		return err
	}
	e.applyHeld(m)
	e.install(m, stateAwaitingROM)
	e.logger.Info("save state restored", "title", m.cart.Header().Title, "bytes", len(data))
	return nil
}

// RestoreState is LoadSaveState followed by ReloadROM in one step. The ROM
// is attached before the running machine is replaced, so a state captured
// from another game is rejected with a *StateFormatError and the current
// game keeps running.
func (e *Engine) RestoreState(data, rom []byte) error {
	m, err := e.decodeState(data)
	if err != nil {
		return err
	}
	if err := m.cart.AttachROM(rom); err != nil {
		e.logger.Warn("save state rejected", "error", err)
		return &StateFormatError{Reason: savestate.ErrOtherCartridge, Detail: err.Error()}
	}
	e.applyHeld(m)
	e.install(m, stateRunning)
	e.logger.Info("save state restored", "title", m.cart.Header().Title, "bytes", len(data))
	return nil
}

func (e *Engine) decodeState(data []byte) (*machine, error) {
	h, payload, err := savestate.Verify(data)
	if err != nil {
		return nil, err
	}

	m, err := restoreMachine(payload, h.Flags&savestate.FlagCGB != 0, e.machineConfig(), e.cartridgeOptions()...)
	if err != nil {
		e.logger.Warn("save state rejected", "error", err)
		return nil, err
	}
	if sum := m.cart.Header().GlobalChecksum; sum != h.ROMChecksum {
		return nil, &StateFormatError{
			Reason: savestate.ErrCorrupt,
			Detail: "stored cartridge does not match the container checksum",
		}
	}
	return m, nil
}
