package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// ErrWriterClosed is returned when samples are written after Close.
var ErrWriterClosed = errors.New("wav writer is closed")

// WAVWriter encodes interleaved stereo float32 samples as 16-bit PCM.
// The header is finalised on Close, so the destination must be seekable.
type WAVWriter struct {
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
	closed bool
}

// NewWAVWriter starts a WAV stream on w.
func NewWAVWriter(w io.WriteSeeker, sampleRate int) *WAVWriter {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &WAVWriter{
		enc: wav.NewEncoder(w, sampleRate, wavBitDepth, Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: Channels, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}
}

// Write appends interleaved L,R samples. A trailing odd sample is dropped
// so channels stay aligned.
func (w *WAVWriter) Write(samples []float32) error {
	if w.closed {
		return ErrWriterClosed
	}
	samples = samples[:len(samples)-len(samples)%Channels]
	if len(samples) == 0 {
		return nil
	}

	w.buf.Data = w.buf.Data[:0]
	for _, s := range samples {
		w.buf.Data = append(w.buf.Data, int(toPCM16(s)))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	w.frames += len(samples) / Channels
	return nil
}

// Frames returns the number of stereo frames written so far.
func (w *WAVWriter) Frames() int {
	return w.frames
}

// Close writes the final chunk sizes. It does not close the destination.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.frames == 0 {
		// an empty stream still needs its header and data chunk
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(w.buf); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finalising wav: %w", err)
	}
	return nil
}

func toPCM16(s float32) int16 {
	s = max(-1, min(1, s))
	return int16(math.Round(float64(s) * math.MaxInt16))
}
