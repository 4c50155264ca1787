// uartk/periph.go

package uartk

// Status reports peripheral conditions, as returned by Peripheral.Status.
// The flags mirror the status-interrupt sources of a Kinetis-class UART.
type Status uint8

const (
	// StatusRxFull: the receive data register (or FIFO watermark) holds data.
	StatusRxFull Status = 1 << iota
	// StatusIdle: the line has gone idle after traffic.
	StatusIdle
	// StatusTxEmpty: the transmit data register (or FIFO watermark) can
	// accept another symbol.
	StatusTxEmpty
	// StatusTxComplete: the last queued symbol has physically left the
	// shifter. Distinct from StatusTxEmpty, which only means the data
	// register has been handed to the shifter.
	StatusTxComplete
)

// IRQMode selects which interrupt sources the peripheral has armed.
type IRQMode uint8

const (
	// IRQActive is the steady receive set: interrupt on received data and
	// on an idle line.
	IRQActive IRQMode = iota
	// IRQTxActive adds the transmit-data-register-empty source while the
	// transmit ring holds work.
	IRQTxActive
	// IRQTxCompleting swaps tx-empty for transmission-complete, so the
	// final interrupt fires only once the last symbol is on the wire.
	IRQTxCompleting
)

// Format selects framing options. Flags combine with bitwise or. Framing
// itself (parity generation, stop bits, inversion) is the peripheral's
// business; the driver reads only the symbol-width and half-duplex bits.
type Format uint16

const (
	FormatParityEven Format = 1 << iota
	FormatParityOdd
	Format9Bit
	FormatRxInvert
	FormatTxInvert
	FormatTwoStopBits
	FormatHalfDuplex
)

// Pin identifies a package pin by board number. Whether a pin can be
// wired to a given port function is the peripheral's call.
type Pin uint8

// Line is a board-level control signal, such as request-to-send or an
// RS-485 driver-enable. Assert means "ready"/"enabled" regardless of the
// signal's electrical polarity.
type Line interface {
	Assert()
	Deassert()
}

// Peripheral is the capability surface the driver needs from a UART. The
// driver core never sees a register layout; a per-chip implementation
// maps these operations onto its own registers.
type Peripheral interface {
	// Enable clocks the port and applies the baud-rate divisor.
	Enable(divisor uint32)
	// Disable stops the port. Queued hardware state is abandoned.
	Disable()
	Enabled() bool

	// SetFormat applies framing flags to the port.
	SetFormat(f Format)

	Status() Status
	// ReadData pops one symbol from the receive register. In 9-bit mode
	// bit 8 carries the ninth data bit.
	ReadData() Symbol
	// WriteData pushes one symbol to the transmit register. In 9-bit
	// mode the implementation latches bit 8 into its auxiliary control
	// bit before the data write.
	WriteData(Symbol)

	// RxCount reports symbols held by the receive hardware FIFO; ports
	// without a FIFO report 0 or 1.
	RxCount() int
	// TxRoom reports free transmit FIFO slots; ports without a FIFO
	// report 0 or 1.
	TxRoom() int
	// FlushRx discards the receive FIFO contents. The driver uses it to
	// recover from an idle-line FIFO underrun.
	FlushRx()

	IRQMode() IRQMode
	SetIRQMode(IRQMode)

	// SetTxDirection drives the half-duplex direction bit: true places
	// the shared line in transmit mode with loopback receive suppressed.
	SetTxDirection(tx bool)

	// WireTx muxes pin as the transmit output, optionally open-drain,
	// reporting whether the pin can serve this port instance.
	WireTx(pin Pin, opendrain bool) bool
	// WireRx muxes pin as the receive input.
	WireRx(pin Pin) bool
	// WireRTS configures pin as a request-to-send output and hands the
	// driver the line to govern.
	WireRTS(pin Pin) (Line, bool)
	// WireCTS routes pin to the port's clear-to-send input; the
	// peripheral gates its own transmitter on it from then on.
	WireCTS(pin Pin) bool
}

// PriorityMainline is the execution priority reported outside interrupt
// context. Interrupt priorities are numerically lower; 0 is the highest.
const PriorityMainline = 256

// IRQController abstracts the interrupt controller that dispatches the
// port's status interrupt. The driver queries it to decide whether the
// handler can preempt the current caller, and masks it for the few
// read-modify-write sections it shares with the handler.
type IRQController interface {
	Enable()
	Disable()
	SetPriority(priority int)

	// ExecutionPriority reports the priority of the calling context:
	// the active interrupt's priority, or PriorityMainline outside
	// interrupt context.
	ExecutionPriority() int

	// Mask suppresses interrupt delivery and returns the previous state
	// for Restore. Keep the window between the two minimal.
	Mask() uint32
	Restore(state uint32)
}
