// uartk/ring.go

package uartk

import (
	"errors"
	"sync/atomic"
)

// Symbol is one transmitted or received unit. Bit 8 carries the ninth
// data bit when the port is configured for 9-bit frames.
type Symbol uint16

// maxRingSize keeps cursor arithmetic comfortably inside a uint32.
const maxRingSize = 1 << 30

var errStorageTooLarge = errors.New("uartk: extension storage too large")

// RingBuffer is a single-producer single-consumer symbol queue. Exactly
// one execution context advances head and exactly one advances tail; the
// opposite cursor is only ever loaded, as a whole-word atomic snapshot.
// That single-writer-per-cursor rule is the entire synchronisation story:
// there is no lock to take, so the structure is safe to touch from an
// interrupt handler.
//
// One slot is always kept empty so that head == tail means empty and
// never full. A cursor is bumped first and the slot at its new value
// accessed second; logical indices below len(static) address the
// internal array, the rest address the attached extension storage.
type RingBuffer struct {
	static []Symbol
	ext    []Symbol // caller-owned, may be nil
	size   uint32   // len(static) + len(ext)

	head atomic.Uint32 // producer cursor
	tail atomic.Uint32 // consumer cursor
}

// NewRingBuffer returns an empty ring with the given static capacity in
// symbols. Usable space is one symbol less than the capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	if size > maxRingSize {
		size = maxRingSize
	}
	return &RingBuffer{static: make([]Symbol, size), size: uint32(size)}
}

func (r *RingBuffer) at(i uint32) *Symbol {
	if i < uint32(len(r.static)) {
		return &r.static[i]
	}
	return &r.ext[i-uint32(len(r.static))]
}

// Capacity returns the logical capacity including any extension storage.
func (r *RingBuffer) Capacity() int { return int(r.size) }

// Occupancy returns the number of queued symbols.
func (r *RingBuffer) Occupancy() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		return int(head - tail)
	}
	return int(r.size + head - tail)
}

// FreeSpace returns how many more symbols the ring will accept.
func (r *RingBuffer) FreeSpace() int {
	return int(r.size) - 1 - r.Occupancy()
}

// PushIfRoom appends sym and reports whether there was room. Producer
// side only. A full ring leaves the queued contents untouched.
func (r *RingBuffer) PushIfRoom(sym Symbol) bool {
	head := r.head.Load() + 1
	if head >= r.size {
		head = 0
	}
	if head == r.tail.Load() {
		return false
	}
	*r.at(head) = sym  // write data first
	r.head.Store(head) // then publish
	return true
}

// PopIfAvailable removes and returns the oldest symbol. Consumer side
// only. It never blocks; an empty ring reports ok == false.
func (r *RingBuffer) PopIfAvailable() (Symbol, bool) {
	tail := r.tail.Load()
	if r.head.Load() == tail {
		return 0, false
	}
	tail++
	if tail >= r.size {
		tail = 0
	}
	sym := *r.at(tail) // read the element first
	r.tail.Store(tail) // then publish consumption
	return sym, true
}

// Peek returns the oldest symbol without consuming it.
func (r *RingBuffer) Peek() (Symbol, bool) {
	tail := r.tail.Load()
	if r.head.Load() == tail {
		return 0, false
	}
	tail++
	if tail >= r.size {
		tail = 0
	}
	return *r.at(tail), true
}

// Clear drops all queued symbols. It advances the consumer cursor to the
// producer's, so it belongs to the consumer side.
func (r *RingBuffer) Clear() {
	r.tail.Store(r.head.Load())
}

// SetStorage splices caller-owned extension storage onto the ring (nil
// reverts to the static array alone) and resets both cursors. The caller
// must guarantee the ring is empty and no producer or consumer is active;
// the driver enforces this at its public surface.
func (r *RingBuffer) SetStorage(ext []Symbol) error {
	if len(r.static)+len(ext) > maxRingSize {
		return errStorageTooLarge
	}
	r.ext = ext
	r.size = uint32(len(r.static) + len(ext))
	r.head.Store(0)
	r.tail.Store(0)
	return nil
}
