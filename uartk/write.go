// uartk/write.go

package uartk

// WriteSymbol queues one symbol for transmission. It blocks only while
// the transmit ring is full; see enqueueTx for the rules that make that
// wait safe at any execution priority.
func (u *UART) WriteSymbol(sym Symbol) error {
	if !u.periph.Enabled() {
		return ErrPortClosed
	}
	u.startTransmission()
	u.enqueueTx(sym)
	u.transmitting.Store(true)
	u.periph.SetIRQMode(IRQTxActive)
	return nil
}

// WriteByte queues a single byte, blocking until the transmit ring
// accepts it. It does not wait for the wire; use Flush for that.
func (u *UART) WriteByte(b byte) error {
	return u.WriteSymbol(Symbol(b))
}

// Write implements io.Writer with the same blocking behaviour as
// WriteSymbol, batching the ring refill per call where the hardware FIFO
// allows. It returns only once every byte of p is queued.
func (u *UART) Write(p []byte) (int, error) {
	if !u.periph.Enabled() {
		return 0, ErrPortClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	u.startTransmission()
	for _, b := range p {
		u.enqueueTx(Symbol(b))
		u.transmitting.Store(true)
	}
	u.periph.SetIRQMode(IRQTxActive)
	return len(p), nil
}

// Writev writes the provided buffers in sequence with the same blocking
// behaviour as Write. It stops on the first error and returns the total
// number of bytes accepted up to that point.
func (u *UART) Writev(bufs ...[]byte) (int, error) {
	sent := 0
	for _, p := range bufs {
		n, err := u.Write(p)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// WriteString queues s, expanding bare LF to CRLF as terminals expect.
func (u *UART) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			if err := u.WriteByte('\r'); err != nil {
				return i, err
			}
		}
		if err := u.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(s), nil
}

// TryWrite queues as many bytes of p as the transmit ring will take
// without blocking and reports how many were accepted. A return value of
// 0 means "no space now".
func (u *UART) TryWrite(p []byte) int {
	if !u.periph.Enabled() || len(p) == 0 {
		return 0
	}
	if u.TxBuffer.FreeSpace() == 0 {
		return 0
	}
	u.startTransmission()
	n := 0
	for _, b := range p {
		if !u.TxBuffer.PushIfRoom(Symbol(b)) {
			break
		}
		n++
	}
	u.transmitting.Store(true)
	u.periph.SetIRQMode(IRQTxActive)
	return n
}

// Flush blocks until every queued symbol has physically left the
// shifter, yielding while it waits.
func (u *UART) Flush() {
	for u.transmitting.Load() {
		u.yield()
	}
}

// startTransmission claims the line: driver-enable up and, in
// half-duplex mode, the direction bit flipped to transmit. The direction
// flip is a read-modify-write on a register the interrupt handler also
// writes on transmit-complete, so it runs under a masked interrupt.
func (u *UART) startTransmission() {
	if u.txEnable != nil {
		u.txEnable.Assert()
	}
	if u.halfDuplex {
		mask := u.irq.Mask()
		u.periph.SetTxDirection(true)
		u.irq.Restore(mask)
	}
}

// enqueueTx stores one symbol at the transmit head, waiting for room
// first if it must. This is the only place the driver blocks.
//
// The wait is priority-aware. When the caller already runs at or above
// the interrupt's priority, the handler can never preempt it to drain
// the ring, so waiting would deadlock: instead the caller does the
// handler's transmit work itself, one symbol per pass, temporarily
// taking over the tail cursor the handler cannot be touching. At
// ordinary priority it yields so other ready work, the handler included,
// can run. Priorities in between re-check without yielding, matching the
// hardware's own behaviour of spinning out a short interrupt window.
func (u *UART) enqueueTx(sym Symbol) {
	if u.TxBuffer.PushIfRoom(sym) {
		return
	}
	// Ring full: make sure the transmit interrupt is armed so the
	// handler can drain it at all, then wait for a slot.
	u.periph.SetIRQMode(IRQTxActive)
	for {
		priority := u.irq.ExecutionPriority()
		if priority <= u.irqPriority {
			if u.periph.Status()&StatusTxEmpty != 0 {
				if s, ok := u.TxBuffer.PopIfAvailable(); ok {
					u.writeData(s)
				}
			}
		} else if priority >= PriorityMainline {
			u.yield()
		}
		if u.TxBuffer.PushIfRoom(sym) {
			return
		}
	}
}

// writeData hands one symbol to the peripheral, narrowing it first when
// the port runs 8-bit frames.
func (u *UART) writeData(sym Symbol) {
	if !u.use9Bits {
		sym &= 0xFF
	}
	u.periph.WriteData(sym)
}
