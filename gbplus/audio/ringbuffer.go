package audio

import (
	"math"
	"sync/atomic"
)

// RingBuffer is a fixed capacity single producer, single consumer queue of
// float32 samples.
//
// The write cursor only moves in Push and the read cursor only moves in
// Read/Pop, except on overflow: the producer then drops the oldest unread
// sample by advancing the read cursor with a compare-and-swap. A consumer
// that loses that race retries its read, so no sample is ever returned twice
// and the producer never blocks.
//
// Cursors grow monotonically, the slot of a cursor is cursor % capacity.
type RingBuffer struct {
	slots   []atomic.Uint32
	read    atomic.Uint64
	write   atomic.Uint64
	dropped atomic.Uint64
}

// NewRingBuffer creates a buffer holding up to capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{slots: make([]atomic.Uint32, capacity)}
}

// Cap returns the capacity in samples.
func (r *RingBuffer) Cap() int {
	return len(r.slots)
}

// Len returns the number of unread samples.
func (r *RingBuffer) Len() int {
	w := r.write.Load()
	rd := r.read.Load()
	if rd >= w {
		return 0
	}
	return int(min(w-rd, uint64(len(r.slots))))
}

// Dropped returns how many samples were discarded on overflow.
func (r *RingBuffer) Dropped() uint64 {
	return r.dropped.Load()
}

// Push appends samples, dropping the oldest unread ones when full.
// Only the producer may call Push.
func (r *RingBuffer) Push(samples ...float32) {
	capacity := uint64(len(r.slots))
	for _, s := range samples {
		w := r.write.Load()
		if rd := r.read.Load(); w-rd >= capacity {
			// a failed swap means the consumer freed the slot meanwhile
			if r.read.CompareAndSwap(rd, rd+1) {
				r.dropped.Add(1)
			}
		}
		r.slots[w%capacity].Store(math.Float32bits(s))
		r.write.Store(w + 1)
	}
}

// Read copies up to len(dst) of the oldest samples into dst and returns the
// count. Only the consumer may call Read.
func (r *RingBuffer) Read(dst []float32) int {
	capacity := uint64(len(r.slots))
	for {
		rd := r.read.Load()
		w := r.write.Load()
		n := min(w-rd, uint64(len(dst)))
		if n == 0 {
			return 0
		}
		for i := uint64(0); i < n; i++ {
			dst[i] = math.Float32frombits(r.slots[(rd+i)%capacity].Load())
		}
		if r.read.CompareAndSwap(rd, rd+n) {
			return int(n)
		}
	}
}

// Pop removes the oldest sample. ok is false when the buffer is empty.
func (r *RingBuffer) Pop() (sample float32, ok bool) {
	var one [1]float32
	if r.Read(one[:]) == 0 {
		return 0, false
	}
	return one[0], true
}

// Reset discards every unread sample. The producer or the consumer may call
// it; a Read racing with Reset returns each sample at most once.
func (r *RingBuffer) Reset() {
	for {
		rd := r.read.Load()
		if r.read.CompareAndSwap(rd, r.write.Load()) {
			return
		}
	}
}
