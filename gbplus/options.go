package gbplus

import (
	"io"
	"log/slog"

	"github.com/valerio/gbplus/gbplus/audio"
	"github.com/valerio/gbplus/gbplus/rtc"
)

// Model selects the emulated hardware.
type Model int

const (
	// ModelAuto runs CGB capable cartridges in color mode and everything
	// else on the monochrome hardware.
	ModelAuto Model = iota
	ModelDMG
	ModelCGB
)

func (m Model) String() string {
	switch m {
	case ModelDMG:
		return "dmg"
	case ModelCGB:
		return "cgb"
	}
	return "auto"
}

// ParseModel accepts the names printed by Model.String.
func ParseModel(name string) (Model, bool) {
	switch name {
	case "", "auto":
		return ModelAuto, true
	case "dmg":
		return ModelDMG, true
	case "cgb":
		return ModelCGB, true
	}
	return ModelAuto, false
}

// DefaultRingCapacity holds a little over a quarter second of stereo audio.
const DefaultRingCapacity = 1 << 15

type options struct {
	logger       *slog.Logger
	timeSource   rtc.TimeSource
	sampleRate   int
	ringCapacity int
	serial       io.Writer
	model        Model
}

// Option configures an Engine.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeSource sets the wall clock read by cartridge RTCs.
func WithTimeSource(ts rtc.TimeSource) Option {
	return func(o *options) { o.timeSource = ts }
}

// WithSampleRate sets the audio output rate in Hz.
func WithSampleRate(rate int) Option {
	return func(o *options) { o.sampleRate = rate }
}

// WithRingCapacity sets the size of the audio ring buffer in samples
// (left and right count separately).
func WithRingCapacity(samples int) Option {
	return func(o *options) { o.ringCapacity = samples }
}

// WithSerialSink receives every byte shifted out of the link port.
func WithSerialSink(w io.Writer) Option {
	return func(o *options) { o.serial = w }
}

func WithModel(m Model) Option {
	return func(o *options) { o.model = m }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:       slog.Default(),
		timeSource:   rtc.SystemTime,
		sampleRate:   audio.DefaultSampleRate,
		ringCapacity: DefaultRingCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.timeSource == nil {
		o.timeSource = rtc.SystemTime
	}
	if o.sampleRate <= 0 {
		o.sampleRate = audio.DefaultSampleRate
	}
	if o.ringCapacity <= 0 {
		o.ringCapacity = DefaultRingCapacity
	}
	return o
}
