// sim/port.go

// Package sim provides a software model of a Kinetis-style UART port,
// its interrupt controller and its board lines, with enough fidelity to
// exercise the whole uartk driver surface without hardware: status and
// interrupt-mode registers, rx/tx FIFOs, a one-symbol shifter advanced
// by Tick, wire coupling between ports, CTS gating, the 9-bit auxiliary
// bit and the idle-line FIFO underrun.
//
// The driver core stays lock-free; only this fake silicon locks, to keep
// its own registers coherent across the goroutines standing in for the
// CPU and the wire.
package sim

import (
	"sync"

	"github.com/jangala-dev/tinygo-uartk/uartk"
)

// Config describes the modelled port. The zero value is a Teensy-3.2
// style UART0: 8-deep FIFOs, TX on pins 1/5, RX on 0/21, CTS on 18/20.
type Config struct {
	FIFODepth  int         // hardware FIFO depth; 0 means 8
	TxPins     []uartk.Pin // pins wireable as TX
	RxPins     []uartk.Pin // pins wireable as RX
	CTSPins    []uartk.Pin // pins routable to the CTS input
	NumDigital int         // GPIO pin count usable for RTS (default 34)
}

// Port implements uartk.Peripheral in software.
type Port struct {
	ctl *Controller

	mu  sync.Mutex
	cfg Config

	enabled bool
	divisor uint32
	format  uartk.Format
	irqMode uartk.IRQMode

	rxFIFO []uartk.Symbol
	txFIFO []uartk.Symbol

	shifter  uartk.Symbol
	shifting bool
	txAux    bool // latched auxiliary (ninth) bit

	txDir      bool // half-duplex direction, true = transmit
	forcedIdle bool
	underrun   bool

	ctsWired    bool
	ctsAsserted bool

	rts *RecordingLine

	peer *Port

	sent    []uartk.Symbol // everything that has left the shifter
	flushes int
}

// NewPort models a port dispatching through ctl.
func NewPort(ctl *Controller, cfg Config) *Port {
	if cfg.FIFODepth <= 0 {
		cfg.FIFODepth = 8
	}
	if len(cfg.TxPins) == 0 {
		cfg.TxPins = []uartk.Pin{1, 5}
	}
	if len(cfg.RxPins) == 0 {
		cfg.RxPins = []uartk.Pin{0, 21}
	}
	if len(cfg.CTSPins) == 0 {
		cfg.CTSPins = []uartk.Pin{18, 20}
	}
	if cfg.NumDigital <= 0 {
		cfg.NumDigital = 34
	}
	return &Port{ctl: ctl, cfg: cfg}
}

// ---------------------------- uartk.Peripheral ----------------------------

func (p *Port) Enable(divisor uint32) {
	p.mu.Lock()
	if divisor < 32 {
		divisor = 32
	}
	p.divisor = divisor
	p.enabled = true
	p.irqMode = uartk.IRQActive
	p.rxFIFO = nil
	p.txFIFO = nil
	p.shifting = false
	p.forcedIdle = false
	p.underrun = false
	p.mu.Unlock()
}

func (p *Port) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.rxFIFO = nil
	p.txFIFO = nil
	p.shifting = false
	p.mu.Unlock()
}

func (p *Port) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *Port) SetFormat(f uartk.Format) {
	p.mu.Lock()
	p.format = f
	p.mu.Unlock()
}

func (p *Port) Status() uartk.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Port) statusLocked() uartk.Status {
	if !p.enabled {
		return 0
	}
	var s uartk.Status
	if p.forcedIdle {
		s |= uartk.StatusIdle
	}
	if !p.underrun && len(p.rxFIFO) > 0 {
		s |= uartk.StatusRxFull
	}
	if len(p.txFIFO) < p.cfg.FIFODepth {
		s |= uartk.StatusTxEmpty
	}
	if !p.shifting && len(p.txFIFO) == 0 {
		s |= uartk.StatusTxComplete
	}
	return s
}

func (p *Port) ReadData() uartk.Symbol {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Reading the data register is what clears the idle flag, even with
	// nothing to read; an empty read underruns the FIFO.
	p.forcedIdle = false
	if len(p.rxFIFO) == 0 {
		p.underrun = true
		return 0xFF
	}
	sym := p.rxFIFO[0]
	p.rxFIFO = p.rxFIFO[1:]
	return sym & 0x1FF
}

func (p *Port) WriteData(sym uartk.Symbol) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	// The data register carries eight bits; the ninth rides the
	// auxiliary latch and joins the frame as it enters the FIFO.
	p.txAux = sym&0x100 != 0
	if len(p.txFIFO) < p.cfg.FIFODepth {
		entry := sym & 0xFF
		if p.txAux {
			entry |= 0x100
		}
		p.txFIFO = append(p.txFIFO, entry)
	}
	p.mu.Unlock()
	p.evaluate()
}

func (p *Port) RxCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.underrun {
		return 0
	}
	return len(p.rxFIFO)
}

func (p *Port) TxRoom() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.FIFODepth - len(p.txFIFO)
}

func (p *Port) FlushRx() {
	p.mu.Lock()
	p.rxFIFO = nil
	p.underrun = false
	p.flushes++
	p.mu.Unlock()
}

func (p *Port) IRQMode() uartk.IRQMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.irqMode
}

func (p *Port) SetIRQMode(m uartk.IRQMode) {
	p.mu.Lock()
	p.irqMode = m
	p.mu.Unlock()
	p.evaluate()
}

func (p *Port) SetTxDirection(tx bool) {
	p.mu.Lock()
	p.txDir = tx
	p.mu.Unlock()
}

func (p *Port) WireTx(pin uartk.Pin, opendrain bool) bool {
	return pinIn(pin, p.cfg.TxPins)
}

func (p *Port) WireRx(pin uartk.Pin) bool {
	return pinIn(pin, p.cfg.RxPins)
}

func (p *Port) WireRTS(pin uartk.Pin) (uartk.Line, bool) {
	if int(pin) >= p.cfg.NumDigital {
		return nil, false
	}
	p.mu.Lock()
	if p.rts == nil {
		p.rts = &RecordingLine{}
	}
	l := p.rts
	p.mu.Unlock()
	return l, true
}

func (p *Port) WireCTS(pin uartk.Pin) bool {
	if !pinIn(pin, p.cfg.CTSPins) {
		return false
	}
	p.mu.Lock()
	p.ctsWired = true
	p.mu.Unlock()
	return true
}

func pinIn(pin uartk.Pin, set []uartk.Pin) bool {
	for _, c := range set {
		if c == pin {
			return true
		}
	}
	return false
}

// ------------------------------- wire model -------------------------------

// Tick advances one symbol time: the shifter's symbol reaches the wire
// and the next one is loaded, CTS permitting. Interrupt conditions are
// re-evaluated afterwards, so a Tick can dispatch the driver's handler
// on the calling goroutine.
func (p *Port) Tick() {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	var (
		delivered uartk.Symbol
		deliver   bool
		target    *Port
	)
	if p.shifting {
		delivered, deliver = p.shifter, true
		p.shifting = false
		p.sent = append(p.sent, p.shifter)
		target = p.peer
	}
	if len(p.txFIFO) > 0 && (!p.ctsWired || p.ctsAsserted) {
		p.shifter = p.txFIFO[0]
		p.txFIFO = p.txFIFO[1:]
		p.shifting = true
	}
	p.mu.Unlock()

	if deliver && target != nil {
		target.receive(delivered)
	}
	p.evaluate()
}

// receive models a symbol arriving off the wire. A half-duplex port held
// in transmit direction has its receiver disconnected, so the symbol
// (its own echo, on a shared line) is lost.
func (p *Port) receive(sym uartk.Symbol) {
	p.mu.Lock()
	if !p.enabled || (p.format&uartk.FormatHalfDuplex != 0 && p.txDir) {
		p.mu.Unlock()
		return
	}
	if len(p.rxFIFO) < p.cfg.FIFODepth {
		p.rxFIFO = append(p.rxFIFO, sym)
	}
	// else: hardware overrun, symbol lost before the driver ever saw it
	p.mu.Unlock()
	p.evaluate()
}

// evaluate raises the status interrupt if an armed condition is present.
// Conditions are level-triggered, like the real status interrupt.
func (p *Port) evaluate() {
	p.mu.Lock()
	s := p.statusLocked()
	mode := p.irqMode
	p.mu.Unlock()

	fire := s&(uartk.StatusRxFull|uartk.StatusIdle) != 0 ||
		(mode == uartk.IRQTxActive && s&uartk.StatusTxEmpty != 0) ||
		(mode == uartk.IRQTxCompleting && s&uartk.StatusTxComplete != 0)
	if fire {
		p.ctl.raise()
	}
}

// ------------------------------- test hooks -------------------------------

// Inject places symbols straight into the receive FIFO, bypassing the
// wire and the FIFO depth limit, and raises the receive interrupt.
func (p *Port) Inject(syms ...uartk.Symbol) {
	p.mu.Lock()
	p.rxFIFO = append(p.rxFIFO, syms...)
	p.mu.Unlock()
	p.evaluate()
}

// ForceIdle raises the idle-line flag with whatever the FIFO holds,
// reproducing the hardware race where the flag outlives the data.
func (p *Port) ForceIdle() {
	p.mu.Lock()
	p.forcedIdle = true
	p.mu.Unlock()
	p.evaluate()
}

// SetCTSInput drives the port's clear-to-send input. With CTS wired and
// the input deasserted the transmitter holds off.
func (p *Port) SetCTSInput(asserted bool) {
	p.mu.Lock()
	p.ctsAsserted = asserted
	p.mu.Unlock()
}

// Quiet reports whether the transmit side has nothing left to do.
func (p *Port) Quiet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.shifting && len(p.txFIFO) == 0
}

// TxDirection reports the half-duplex direction bit.
func (p *Port) TxDirection() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txDir
}

// RTS returns the request-to-send line wired via WireRTS, or nil.
func (p *Port) RTS() *RecordingLine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rts
}

// Sent returns a copy of every symbol that has left the shifter.
func (p *Port) Sent() []uartk.Symbol {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uartk.Symbol, len(p.sent))
	copy(out, p.sent)
	return out
}

// Flushes reports how many times the receive FIFO has been flushed.
func (p *Port) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// Divisor reports the baud divisor the port was enabled with.
func (p *Port) Divisor() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.divisor
}
