// uartk/uartk.go

// Package uartk provides an interrupt-driven UART driver for
// Kinetis-class serial ports, with buffered transmit and receive rings,
// RTS/CTS flow control, RS-485 direction control, 9-bit symbols and
// attachable buffer storage. The core never touches a register directly;
// it drives a small Peripheral capability interface implemented per
// target chip (the sim package provides a software implementation).
//
// Write blocks only while the transmit ring is full, and then by either
// draining the ring itself (when the caller's priority forbids the
// interrupt from running) or by yielding. Read never blocks; blocking
// variants with context support live in blocking.go.
package uartk

import (
	"errors"
	"runtime"
	"sync/atomic"
)

var (
	// ErrBufferEmpty is returned by byte reads when no data is queued.
	ErrBufferEmpty = errors.New("uartk: buffer empty")
	// ErrPortBusy rejects reconfiguration attempted mid-traffic.
	ErrPortBusy = errors.New("uartk: port busy")
	// ErrPortClosed is returned for I/O on a port that is not enabled.
	ErrPortClosed = errors.New("uartk: port not enabled")
	// ErrInvalidPin rejects a Begin whose selected pins cannot serve the port.
	ErrInvalidPin = errors.New("uartk: pin cannot serve this port")
)

// DefaultIRQPriority is the mid-range slot the port's status interrupt
// is configured at unless Config says otherwise. 0 is the highest
// priority, 255 the lowest.
const DefaultIRQPriority = 64

const defaultRingSize = 64

// Config carries driver construction options. The zero value works.
type Config struct {
	RxSize      int    // receive ring capacity in symbols (default 64)
	TxSize      int    // transmit ring capacity in symbols (default 64)
	IRQPriority int    // status interrupt priority (default 64)
	Yield       func() // cooperative yield hook (default runtime.Gosched)
}

// UART is one buffered serial port. Construct with New; the interrupt
// controller must dispatch the port's status interrupt to
// HandleInterrupt.
type UART struct {
	// Buffer and TxBuffer are the receive and transmit rings. The
	// interrupt handler is the only writer of Buffer's head and the only
	// reader of TxBuffer's tail; mainline code owns the other two
	// cursors. See RingBuffer for why that makes locks unnecessary.
	Buffer   *RingBuffer
	TxBuffer *RingBuffer

	periph Peripheral
	irq    IRQController
	yield  func()

	irqPriority int

	// transmitting is set by mainline on enqueue and cleared by the
	// interrupt handler on transmit-complete.
	transmitting atomic.Bool

	// Read by the handler for symbol-width and direction decisions only;
	// written by mainline configuration calls under a masked interrupt.
	use9Bits   bool
	halfDuplex bool

	rts      Line // deasserted once rx occupancy reaches the high watermark
	txEnable Line // asserted around each transmission (RS-485 driver enable)

	lowWater  uint32
	highWater uint32

	txPin       Pin
	rxPin       Pin
	txOpenDrain bool

	notify   chan struct{} // coalesced rx readiness
	txNotify chan struct{} // coalesced tx progress

	stats stats
}

// New builds a driver over the given peripheral and interrupt
// controller. The controller must be wired to call HandleInterrupt; the
// driver arms and disarms it but does not own the binding.
func New(p Peripheral, ic IRQController, cfg Config) *UART {
	if cfg.RxSize <= 0 {
		cfg.RxSize = defaultRingSize
	}
	if cfg.TxSize <= 0 {
		cfg.TxSize = defaultRingSize
	}
	if cfg.IRQPriority <= 0 {
		cfg.IRQPriority = DefaultIRQPriority
	}
	if cfg.Yield == nil {
		cfg.Yield = runtime.Gosched
	}
	u := &UART{
		Buffer:      NewRingBuffer(cfg.RxSize),
		TxBuffer:    NewRingBuffer(cfg.TxSize),
		periph:      p,
		irq:         ic,
		yield:       cfg.Yield,
		irqPriority: cfg.IRQPriority,
		txPin:       1,
		rxPin:       0,
		notify:      make(chan struct{}, 1),
		txNotify:    make(chan struct{}, 1),
	}
	u.resetWatermarks()
	return u
}

// Begin clocks the port with the given baud divisor, muxes the selected
// pins and arms the steady receive interrupt set. Register detail is the
// peripheral's business. If either selected pin cannot serve the port,
// Begin disables it again and returns ErrInvalidPin; pick other pins
// with SetTx/SetRx and retry.
func (u *UART) Begin(divisor uint32) error {
	u.Buffer.Clear()
	u.TxBuffer.Clear()
	u.transmitting.Store(false)
	u.periph.Enable(divisor)
	if !u.periph.WireRx(u.rxPin) || !u.periph.WireTx(u.txPin, u.txOpenDrain) {
		u.periph.Disable()
		return ErrInvalidPin
	}
	u.periph.SetIRQMode(IRQActive)
	u.irq.SetPriority(u.irqPriority)
	u.irq.Enable()
	return nil
}

// SetFormat applies framing flags. The driver keeps only the
// symbol-width and half-duplex decisions for itself; the rest goes to
// the peripheral untouched.
func (u *UART) SetFormat(f Format) error {
	u.periph.SetFormat(f)
	mask := u.irq.Mask()
	u.use9Bits = f&Format9Bit != 0
	u.halfDuplex = f&FormatHalfDuplex != 0
	u.irq.Restore(mask)
	return nil
}

// End waits out any in-flight transmission, then disables the interrupt
// and the port. Receive cursors are reset so a later Begin starts clean.
func (u *UART) End() {
	if !u.periph.Enabled() {
		return
	}
	for u.transmitting.Load() {
		u.yield()
	}
	u.irq.Disable()
	u.periph.Disable()
	u.Buffer.Clear()
	if u.rts != nil {
		u.rts.Deassert()
	}
}

// ReadSymbol returns the oldest received symbol. It never blocks; ok is
// false when nothing is queued.
func (u *UART) ReadSymbol() (Symbol, bool) {
	sym, ok := u.Buffer.PopIfAvailable()
	if !ok {
		return 0, false
	}
	u.rtsOnRead()
	return sym, true
}

// ReadByte reads a single byte from the receive ring. With no data
// available it returns ErrBufferEmpty immediately.
func (u *UART) ReadByte() (byte, error) {
	sym, ok := u.ReadSymbol()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return byte(sym), nil
}

// Read implements io.Reader in the non-blocking driver sense: it returns
// immediately with whatever is buffered, possibly n == 0, nil.
func (u *UART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := u.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}

// PeekSymbol returns the oldest received symbol without consuming it.
func (u *UART) PeekSymbol() (Symbol, bool) {
	return u.Buffer.Peek()
}

// Peek returns the next byte without consuming it.
func (u *UART) Peek() (byte, error) {
	sym, ok := u.Buffer.Peek()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return byte(sym), nil
}

// Buffered returns the number of symbols waiting in the receive ring.
func (u *UART) Buffered() int { return u.Buffer.Occupancy() }

// WriteRoom returns the free transmit ring slots.
func (u *UART) WriteRoom() int { return u.TxBuffer.FreeSpace() }

// Clear drops all buffered receive data, flushes the hardware FIFO and
// reopens flow control.
func (u *UART) Clear() {
	if u.periph.Enabled() {
		mask := u.irq.Mask()
		u.periph.FlushRx()
		u.irq.Restore(mask)
	}
	u.Buffer.Clear()
	if u.rts != nil {
		u.rts.Assert()
	}
}

// AttachRxStorage splices caller-owned storage onto the receive ring,
// growing logical capacity by len(ext); nil reverts to static capacity.
// Watermarks shift with the capacity so the hysteresis gap is preserved.
// The port must be quiet: a non-empty ring or an in-flight transmission
// rejects the call with ErrPortBusy and changes nothing.
func (u *UART) AttachRxStorage(ext []Symbol) error {
	if u.Buffer.Occupancy() != 0 || u.transmitting.Load() {
		return ErrPortBusy
	}
	if err := u.Buffer.SetStorage(ext); err != nil {
		return err
	}
	u.resetWatermarks()
	return nil
}

// AttachTxStorage is AttachRxStorage for the transmit ring.
func (u *UART) AttachTxStorage(ext []Symbol) error {
	if u.TxBuffer.Occupancy() != 0 || u.transmitting.Load() {
		return ErrPortBusy
	}
	return u.TxBuffer.SetStorage(ext)
}

// SetTransmitEnableLine wires an RS-485 style driver-enable signal that
// the driver asserts around each transmission, or nil to remove it. Any
// in-flight transmission is waited out first.
func (u *UART) SetTransmitEnableLine(l Line) {
	for u.transmitting.Load() {
		u.yield()
	}
	if l != nil {
		l.Deassert()
	}
	mask := u.irq.Mask()
	u.txEnable = l
	u.irq.Restore(mask)
}

// SetRTS wires the request-to-send output and asserts it (ready to
// receive). It reports false, leaving prior wiring unchanged, if the pin
// cannot serve this port.
func (u *UART) SetRTS(pin Pin) bool {
	if !u.periph.Enabled() {
		return false
	}
	line, ok := u.periph.WireRTS(pin)
	if !ok {
		return false
	}
	line.Assert()
	mask := u.irq.Mask()
	u.rts = line
	u.irq.Restore(mask)
	return true
}

// SetCTS routes the clear-to-send input to the port; the peripheral
// gates its own transmitter on it. Reports false for an unwireable pin.
func (u *UART) SetCTS(pin Pin) bool {
	if !u.periph.Enabled() {
		return false
	}
	return u.periph.WireCTS(pin)
}

// SetTx selects the transmit pin. On an enabled port the pin is remuxed
// immediately; an unwireable pin reports false and changes nothing.
func (u *UART) SetTx(pin Pin, opendrain bool) bool {
	if pin == u.txPin && opendrain == u.txOpenDrain {
		return true
	}
	if u.periph.Enabled() && !u.periph.WireTx(pin, opendrain) {
		return false
	}
	u.txPin, u.txOpenDrain = pin, opendrain
	return true
}

// SetRx selects the receive pin, with the same rules as SetTx.
func (u *UART) SetRx(pin Pin) bool {
	if pin == u.rxPin {
		return true
	}
	if u.periph.Enabled() && !u.periph.WireRx(pin) {
		return false
	}
	u.rxPin = pin
	return true
}

// Transmitting reports whether a transmission is in flight: true from
// the first enqueued symbol until the hardware reports the last one has
// physically left the line.
func (u *UART) Transmitting() bool { return u.transmitting.Load() }
