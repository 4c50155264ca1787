package sim

import (
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-uartk/uartk"
)

func TestControllerMaskDefersDelivery(t *testing.T) {
	c := NewController()
	runs := 0
	c.Attach(func() { runs++ })
	c.Enable()

	state := c.Mask()
	c.raise()
	if runs != 0 {
		t.Fatalf("handler ran %d times while masked", runs)
	}
	c.Restore(state)
	if runs != 1 {
		t.Fatalf("handler ran %d times after restore, want 1", runs)
	}
}

func TestControllerNestedMask(t *testing.T) {
	c := NewController()
	runs := 0
	c.Attach(func() { runs++ })
	c.Enable()

	outer := c.Mask()
	inner := c.Mask()
	c.raise()
	c.Restore(inner)
	if runs != 0 {
		t.Fatalf("inner restore delivered with the outer mask still held")
	}
	c.Restore(outer)
	if runs != 1 {
		t.Fatalf("handler ran %d times after outer restore, want 1", runs)
	}
}

func TestControllerPriorityGate(t *testing.T) {
	c := NewController()
	runs := 0
	c.Attach(func() { runs++ })
	c.Enable()

	c.SetExecutionPriority(uartk.DefaultIRQPriority)
	c.raise()
	if runs != 0 {
		t.Fatalf("handler preempted an equal-priority context %d times", runs)
	}
	c.SetExecutionPriority(uartk.PriorityMainline)
	if runs != 1 {
		t.Fatalf("latched interrupt did not deliver on priority drop: runs = %d", runs)
	}
	if got := c.Deliveries(); got != 1 {
		t.Fatalf("Deliveries = %d, want 1", got)
	}
}

// Only the goroutine running the handler executes at the interrupt's
// priority; everyone else stays at ordinary execution priority even
// while a handler is in flight.
func TestExecutionPriorityPerGoroutine(t *testing.T) {
	c := NewController()
	entered := make(chan struct{})
	release := make(chan struct{})
	c.Attach(func() {
		if got := c.ExecutionPriority(); got != uartk.DefaultIRQPriority {
			t.Errorf("priority inside handler = %d, want %d", got, uartk.DefaultIRQPriority)
		}
		close(entered)
		<-release
	})
	c.Enable()

	raised := make(chan struct{})
	go func() { c.raise(); close(raised) }()
	<-entered
	if got := c.ExecutionPriority(); got != uartk.PriorityMainline {
		t.Errorf("priority outside handler = %d, want %d", got, uartk.PriorityMainline)
	}
	close(release)
	<-raised
}

// Mask must not return while a handler runs on another goroutine:
// masked sections are exclusive against the handler, as on hardware
// where disabling interrupts cannot catch an ISR halfway.
func TestMaskWaitsForHandler(t *testing.T) {
	c := NewController()
	entered := make(chan struct{})
	release := make(chan struct{})
	c.Attach(func() { close(entered); <-release })
	c.Enable()

	raised := make(chan struct{})
	go func() { c.raise(); close(raised) }()
	<-entered

	masked := make(chan uint32, 1)
	go func() { masked <- c.Mask() }()
	select {
	case <-masked:
		t.Fatal("Mask returned with the handler still in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case state := <-masked:
		c.Restore(state)
	case <-time.After(2 * time.Second):
		t.Fatal("Mask never returned after the handler finished")
	}
	<-raised
}

func TestMaskInsideHandler(t *testing.T) {
	c := NewController()
	runs := 0
	c.Attach(func() {
		state := c.Mask()
		c.Restore(state)
		runs++
	})
	c.Enable()

	c.raise()
	if runs != 1 {
		t.Fatalf("handler ran %d times, want 1", runs)
	}
}

func TestControllerDisabledStaysLatched(t *testing.T) {
	c := NewController()
	runs := 0
	c.Attach(func() { runs++ })

	c.raise()
	if runs != 0 {
		t.Fatalf("handler ran while disabled")
	}
	c.Enable()
	if runs != 1 {
		t.Fatalf("latched interrupt did not deliver on enable: runs = %d", runs)
	}
}

func TestPortPinWiring(t *testing.T) {
	p := NewPort(NewController(), Config{})

	if !p.WireTx(1, false) || !p.WireTx(5, false) {
		t.Fatal("stock TX pins rejected")
	}
	if p.WireTx(2, false) {
		t.Fatal("WireTx accepted a non-TX pin")
	}
	if !p.WireRx(0) || !p.WireRx(21) {
		t.Fatal("stock RX pins rejected")
	}
	if p.WireRx(3) {
		t.Fatal("WireRx accepted a non-RX pin")
	}
	if _, ok := p.WireRTS(40); ok {
		t.Fatal("WireRTS accepted a pin beyond the GPIO range")
	}
	if line, ok := p.WireRTS(6); !ok || line == nil {
		t.Fatal("WireRTS rejected a plain GPIO pin")
	}
}

func TestPortShifterTiming(t *testing.T) {
	p := NewPort(NewController(), Config{})
	p.Enable(64)

	p.WriteData('a')
	p.WriteData('b')
	if len(p.Sent()) != 0 {
		t.Fatal("symbol left the shifter with no tick")
	}
	p.Tick() // load 'a'
	if len(p.Sent()) != 0 {
		t.Fatal("symbol delivered on the loading tick")
	}
	p.Tick() // deliver 'a', load 'b'
	if got := p.Sent(); len(got) != 1 || got[0] != 'a' {
		t.Fatalf("Sent after two ticks = %v", got)
	}
	p.Tick()
	if got := p.Sent(); len(got) != 2 || got[1] != 'b' {
		t.Fatalf("Sent after three ticks = %v", got)
	}
	if !p.Quiet() {
		t.Fatal("port not quiet with everything delivered")
	}
}

func TestPortAuxiliaryBitLatch(t *testing.T) {
	p := NewPort(NewController(), Config{})
	p.Enable(64)

	// Bit 8 travels via the auxiliary latch, not the data register; a
	// following 8-bit write must clear it again.
	p.WriteData(0x1A5)
	p.WriteData(0x041)
	for i := 0; i < 3; i++ {
		p.Tick()
	}
	got := p.Sent()
	if len(got) != 2 || got[0] != 0x1A5 || got[1] != 0x041 {
		t.Fatalf("wire carried %#x, want [0x1A5 0x41]", got)
	}
}

func TestPortIdleUnderrunModel(t *testing.T) {
	p := NewPort(NewController(), Config{})
	p.Enable(64)

	p.ForceIdle()
	if p.Status()&uartk.StatusIdle == 0 {
		t.Fatal("idle flag not raised")
	}
	// Reading the empty data register clears idle but underruns the FIFO.
	_ = p.ReadData()
	if p.Status()&uartk.StatusIdle != 0 {
		t.Fatal("data-register read did not clear idle")
	}
	if p.RxCount() != 0 {
		t.Fatal("underrun FIFO reports data")
	}
	p.FlushRx()
	if p.Flushes() != 1 {
		t.Fatalf("Flushes = %d", p.Flushes())
	}

	p.Inject('z')
	if got := p.ReadData(); got != 'z' {
		t.Fatalf("ReadData after recovery = %#x", got)
	}
}
