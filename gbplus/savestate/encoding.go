package savestate

import (
	"encoding/binary"
	"math"
)

// Encoder appends little endian values to a growing buffer. Components write
// their fields in a fixed order and read them back in the same order with a
// Decoder.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64*1024)}
}

// Section writes a four character tag that Decoder.Section checks on restore.
func (e *Encoder) Section(tag string) {
	var t [4]byte
	copy(t[:], tag)
	e.buf = append(e.buf, t[:]...)
}

func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
		return
	}
	e.U8(0)
}

func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) Int(v int) {
	e.U64(uint64(int64(v)))
}

func (e *Encoder) F64(v float64) {
	e.U64(math.Float64bits(v))
}

// Bytes writes a length prefixed byte slice.
func (e *Encoder) Bytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Data returns the encoded payload.
func (e *Encoder) Data() []byte {
	return e.buf
}

// Decoder reads values written by an Encoder. The first failure is kept and
// every later read returns zero values, so callers check Err once at the end.
type Decoder struct {
	data []byte
	off  int
	err  error
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = formatError(ErrTruncated, "need %d bytes at offset %d, have %d", n, d.off, len(d.data)-d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

// Section checks the tag written by Encoder.Section.
func (d *Decoder) Section(tag string) {
	var want [4]byte
	copy(want[:], tag)
	got := d.take(4)
	if got == nil {
		return
	}
	if string(got) != string(want[:]) {
		d.err = formatError(ErrCorrupt, "expected section %q at offset %d, found %q", tag, d.off-4, got)
	}
}

func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	return d.U8() != 0
}

func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) Int() int {
	return int(int64(d.U64()))
}

func (d *Decoder) F64() float64 {
	return math.Float64frombits(d.U64())
}

// Bytes reads a length prefixed slice into a new buffer.
func (d *Decoder) Bytes() []byte {
	n := d.U32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// BytesInto reads a length prefixed slice into dst, which must have exactly
// the stored length.
func (d *Decoder) BytesInto(dst []byte) {
	n := d.U32()
	if d.err == nil && int(n) != len(dst) {
		d.err = formatError(ErrCorrupt, "block of %d bytes does not fit %d", n, len(dst))
		return
	}
	copy(dst, d.take(int(n)))
}

// Fail records a validation failure found by a component.
func (d *Decoder) Fail(format string, args ...any) {
	if d.err == nil {
		d.err = formatError(ErrCorrupt, format, args...)
	}
}

// Remaining reports how many bytes have not been consumed.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) Err() error {
	return d.err
}
