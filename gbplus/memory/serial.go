package memory

import (
	"io"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

const (
	serialCyclesPerByte     = 4096 // 8 bits at 8192 Hz
	serialFastCyclesPerByte = 128  // CGB high speed clock
)

// Serial is the link port with nothing plugged in: transfers driven by the
// internal clock shift in 0xFF. Bytes sent out are written to an optional
// sink and logged a line at a time, which is how test ROMs report results.
type Serial struct {
	sb, sc    uint8
	active    bool
	countdown int
	cgb       bool

	sink   io.Writer
	logger *slog.Logger
	line   []byte

	requestInterrupt func()
}

func NewSerial(irq func(), sink io.Writer, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{requestInterrupt: irq, sink: sink, logger: logger, sc: 0x7E}
}

func (s *Serial) Read(address uint16) uint8 {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		if s.cgb {
			return s.sc | 0x7C
		}
		return s.sc | 0x7E
	}
	return 0xFF
}

func (s *Serial) Write(address uint16, value uint8) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		s.maybeStart()
	}
}

func (s *Serial) maybeStart() {
	if s.active || !bit.IsSet(7, s.sc) || !bit.IsSet(0, s.sc) {
		return
	}
	s.emit(s.sb)

	s.active = true
	s.countdown = serialCyclesPerByte
	if s.cgb && bit.IsSet(1, s.sc) {
		s.countdown = serialFastCyclesPerByte
	}
}

func (s *Serial) emit(b uint8) {
	if s.sink != nil {
		_, _ = s.sink.Write([]byte{b})
	}
	if b == '\n' || b == 0 {
		if len(s.line) > 0 {
			s.logger.Debug("serial", "line", string(s.line))
			s.line = s.line[:0]
		}
		return
	}
	s.line = append(s.line, b)
}

func (s *Serial) Tick(cycles int) {
	if !s.active {
		return
	}
	s.countdown -= cycles
	if s.countdown > 0 {
		return
	}
	s.sb = 0xFF
	s.sc = bit.Clear(7, s.sc)
	s.active = false
	s.countdown = 0
	if s.requestInterrupt != nil {
		s.requestInterrupt()
	}
}

func (s *Serial) Save(e *savestate.Encoder) {
	e.Section("SERL")
	e.U8(s.sb)
	e.U8(s.sc)
	e.Bool(s.active)
	e.Int(s.countdown)
}

func (s *Serial) Load(d *savestate.Decoder) {
	d.Section("SERL")
	s.sb = d.U8()
	s.sc = d.U8()
	s.active = d.Bool()
	s.countdown = d.Int()
}
