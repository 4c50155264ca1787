// uartk/isr.go

package uartk

// HandleInterrupt services the port. It is the entry point the interrupt
// controller (or the sim package's fake one) invokes whenever the
// peripheral reports receive data, an idle line, transmit-register-empty
// or transmit-complete.
//
// Ownership: this is the only code that advances the receive ring's head
// and the transmit ring's tail. It must never block; a receive ring with
// no room loses the symbol instead.
func (u *UART) HandleInterrupt() {
	u.statISREnter()
	status := u.periph.Status()
	mode := u.periph.IRQMode()

	if status&(StatusRxFull|StatusIdle) != 0 {
		u.serviceReceive()
	}
	if mode == IRQTxActive && status&StatusTxEmpty != 0 {
		u.serviceTransmit()
	}
	if mode == IRQTxCompleting && status&StatusTxComplete != 0 {
		u.finishTransmit()
	}
}

// serviceReceive drains everything the hardware holds into the receive
// ring, then runs the high-watermark flow-control check.
func (u *UART) serviceReceive() {
	// The FIFO count read and the underrun recovery below race against
	// new arrivals; mask interrupts so a higher-priority handler cannot
	// widen the window.
	mask := u.irq.Mask()
	avail := u.periph.RxCount()
	if avail == 0 {
		// Idle line with an empty FIFO. The only way to clear the idle
		// flag is a data-register read, and that read underruns the
		// FIFO, leaving it returning corrupt data. Read, then flush to
		// recover. A symbol arriving between the count and the flush is
		// lost; the mask above keeps that window as small as it gets.
		_ = u.periph.ReadData()
		u.periph.FlushRx()
		u.irq.Restore(mask)
		return
	}
	u.irq.Restore(mask)

	for ; avail > 0; avail-- {
		sym := u.periph.ReadData()
		if !u.use9Bits {
			sym &= 0xFF
		}
		if u.Buffer.PushIfRoom(sym) {
			u.statRxQueued()
		} else {
			// Overflow policy: drop silently, never block here.
			u.statRxDropped()
		}
	}
	u.rtsOnFill()
	u.notifyRx()
}

// serviceTransmit refills the hardware from the transmit ring. Once the
// ring drains it switches the port to completion interrupts, so the
// final interrupt fires when the wire is actually quiet rather than when
// the data register merely empties.
func (u *UART) serviceTransmit() {
	moved := false
	for u.periph.TxRoom() > 0 {
		sym, ok := u.TxBuffer.PopIfAvailable()
		if !ok {
			break
		}
		u.writeData(sym)
		moved = true
	}
	if u.TxBuffer.Occupancy() == 0 && u.periph.Status()&StatusTxEmpty != 0 {
		u.periph.SetIRQMode(IRQTxCompleting)
	}
	if moved {
		u.notifyTx()
	}
}

// finishTransmit runs when the last symbol has left the shifter: the
// transmit session ends, the line direction reverts to receive and the
// interrupt set returns to steady state. This is the only point where
// the direction and driver-enable lines may drop.
func (u *UART) finishTransmit() {
	u.transmitting.Store(false)
	if u.txEnable != nil {
		u.txEnable.Deassert()
	}
	if u.halfDuplex {
		mask := u.irq.Mask()
		u.periph.SetTxDirection(false)
		u.irq.Restore(mask)
	}
	u.periph.SetIRQMode(IRQActive)
	u.notifyTx()
}

// notifyRx wakes blocked readers. The channel is level-coalesced: a full
// slot already promises a wake-up, so the send is dropped.
func (u *UART) notifyRx() {
	select {
	case u.notify <- struct{}{}:
		u.statNotifySent()
	default:
		u.statNotifyDropped()
	}
}

func (u *UART) notifyTx() {
	select {
	case u.txNotify <- struct{}{}:
		u.statNotifySent()
	default:
		u.statNotifyDropped()
	}
}
