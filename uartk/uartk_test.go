package uartk_test

import (
	"bytes"
	"testing"

	"github.com/jangala-dev/tinygo-uartk/sim"
	"github.com/jangala-dev/tinygo-uartk/uartk"
)

const testDivisor = 64

// newTestPort wires a driver over fresh fake silicon and starts it.
func newTestPort(t *testing.T, cfg uartk.Config, pcfg sim.Config) (*uartk.UART, *sim.Port, *sim.Controller) {
	t.Helper()
	ctl := sim.NewController()
	port := sim.NewPort(ctl, pcfg)
	u := uartk.New(port, ctl, cfg)
	ctl.Attach(u.HandleInterrupt)
	if err := u.Begin(testDivisor); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return u, port, ctl
}

// newTestPair builds two started ports coupled full duplex.
func newTestPair(t *testing.T, cfg uartk.Config) (ua, ub *uartk.UART, pa, pb *sim.Port) {
	t.Helper()
	ua, pa, _ = newTestPort(t, cfg, sim.Config{})
	ub, pb, _ = newTestPort(t, cfg, sim.Config{})
	sim.Connect(pa, pb)
	return ua, ub, pa, pb
}

func TestReadNonBlocking(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})

	buf := make([]byte, 8)
	n, err := u.Read(buf)
	if n != 0 || err != nil {
		t.Fatalf("Read on empty port = %d, %v; want 0, nil", n, err)
	}
	if _, err := u.ReadByte(); err != uartk.ErrBufferEmpty {
		t.Fatalf("ReadByte on empty port = %v, want ErrBufferEmpty", err)
	}

	port.Inject('A', 'B', 'C')
	if got := u.Buffered(); got != 3 {
		t.Fatalf("Buffered = %d, want 3", got)
	}
	n, err = u.Read(buf)
	if err != nil || n != 3 || string(buf[:3]) != "ABC" {
		t.Fatalf("Read = %d %q, %v; want 3 %q", n, buf[:n], err, "ABC")
	}
	if n, _ := u.Read(buf); n != 0 {
		t.Fatalf("second Read drained %d extra bytes", n)
	}
}

func TestLoopbackRoundTrip(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	sim.Loopback(port)

	msg := []byte("uartk loopback check")
	n, err := u.Write(msg)
	if err != nil || n != len(msg) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	sim.Settle(port)

	if got := u.Buffered(); got != len(msg) {
		t.Fatalf("Buffered = %d, want %d", got, len(msg))
	}
	got := make([]byte, len(msg))
	if n, _ := u.Read(got); n != len(msg) || !bytes.Equal(got, msg) {
		t.Fatalf("read back %q, want %q", got[:n], msg)
	}
	if u.Transmitting() {
		t.Fatal("Transmitting still true after the wire went quiet")
	}
}

func TestPairRoundTrip(t *testing.T) {
	ua, ub, pa, pb := newTestPair(t, uartk.Config{})

	msg := make([]byte, 48)
	for i := range msg {
		msg[i] = byte(i*7 + 1)
	}
	if _, err := ua.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sim.Settle(pa, pb)

	got := make([]byte, len(msg))
	if n, _ := ub.Read(got); n != len(msg) || !bytes.Equal(got, msg) {
		t.Fatalf("peer read %d bytes %v, want %v", n, got[:n], msg)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	port.Inject('q')

	for i := 0; i < 3; i++ {
		b, err := u.Peek()
		if err != nil || b != 'q' {
			t.Fatalf("Peek #%d = %q, %v", i, b, err)
		}
	}
	if got := u.Buffered(); got != 1 {
		t.Fatalf("Peek consumed data: Buffered = %d", got)
	}
	if b, _ := u.ReadByte(); b != 'q' {
		t.Fatalf("ReadByte after Peek = %q", b)
	}
}

func TestClearDropsBufferedData(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	port.Inject(1, 2, 3, 4)

	u.Clear()
	if got := u.Buffered(); got != 0 {
		t.Fatalf("Buffered after Clear = %d", got)
	}
	if _, err := u.ReadByte(); err != uartk.ErrBufferEmpty {
		t.Fatalf("ReadByte after Clear = %v, want ErrBufferEmpty", err)
	}
}

func TestWriteRoomAccounting(t *testing.T) {
	u, _, _ := newTestPort(t, uartk.Config{}, sim.Config{})

	if got := u.WriteRoom(); got != 63 {
		t.Fatalf("WriteRoom on idle port = %d, want 63", got)
	}
	// 12 bytes: the 8-deep FIFO takes what it can, the rest stays queued.
	if _, err := u.Write(make([]byte, 12)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := u.WriteRoom(); got != 59 {
		t.Fatalf("WriteRoom with 4 symbols queued = %d, want 59", got)
	}
}

func TestEndWaitsForDrain(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	clock := sim.StartClock(0, port)
	defer clock.Stop()

	msg := []byte("shutdown test")
	if _, err := u.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	u.End()

	if port.Enabled() {
		t.Fatal("port still enabled after End")
	}
	if got := len(port.Sent()); got != len(msg) {
		t.Fatalf("End dropped queued data: %d of %d bytes sent", got, len(msg))
	}
	if err := u.WriteByte('x'); err != uartk.ErrPortClosed {
		t.Fatalf("WriteByte after End = %v, want ErrPortClosed", err)
	}
}

func TestAttachStorageGrowsCapacity(t *testing.T) {
	u, _, _ := newTestPort(t, uartk.Config{}, sim.Config{})

	ext := make([]uartk.Symbol, 64)
	if err := u.AttachRxStorage(ext); err != nil {
		t.Fatalf("AttachRxStorage: %v", err)
	}
	if got := u.Buffer.Capacity(); got != 128 {
		t.Fatalf("rx capacity with extension = %d, want 128", got)
	}
	low, high := u.Watermarks()
	if low != 90 || high != 104 {
		t.Fatalf("watermarks with extension = %d/%d, want 90/104", low, high)
	}

	if err := u.AttachRxStorage(nil); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if got := u.Buffer.Capacity(); got != 64 {
		t.Fatalf("rx capacity after detach = %d, want 64", got)
	}
	low, high = u.Watermarks()
	if low != 26 || high != 40 {
		t.Fatalf("watermarks after detach = %d/%d, want 26/40", low, high)
	}
}

func TestAttachStorageWhileBusy(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})

	// No ticks yet, so the symbol sits in the hardware and the
	// transmission stays in flight.
	if err := u.WriteByte('A'); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if !u.Transmitting() {
		t.Fatal("Transmitting = false with a symbol still in the FIFO")
	}
	ext := make([]uartk.Symbol, 32)
	if err := u.AttachRxStorage(ext); err != uartk.ErrPortBusy {
		t.Fatalf("AttachRxStorage mid-transmission = %v, want ErrPortBusy", err)
	}
	if err := u.AttachTxStorage(ext); err != uartk.ErrPortBusy {
		t.Fatalf("AttachTxStorage mid-transmission = %v, want ErrPortBusy", err)
	}

	sim.Settle(port)
	if err := u.AttachTxStorage(ext); err != nil {
		t.Fatalf("AttachTxStorage on quiet port: %v", err)
	}
	if got := u.TxBuffer.Capacity(); got != 96 {
		t.Fatalf("tx capacity with extension = %d, want 96", got)
	}
}

func TestPinSelection(t *testing.T) {
	u, _, _ := newTestPort(t, uartk.Config{}, sim.Config{})

	if !u.SetTx(5, false) {
		t.Fatal("SetTx(5) rejected a valid alternate pin")
	}
	if u.SetTx(7, false) {
		t.Fatal("SetTx(7) accepted a pin the port cannot drive")
	}
	if !u.SetRx(21) {
		t.Fatal("SetRx(21) rejected a valid alternate pin")
	}
	if u.SetRx(3) {
		t.Fatal("SetRx(3) accepted a pin the port cannot listen on")
	}
	if !u.SetCTS(18) {
		t.Fatal("SetCTS(18) rejected a routable pin")
	}
	if u.SetCTS(19) {
		t.Fatal("SetCTS(19) accepted an unroutable pin")
	}
	if u.SetRTS(99) {
		t.Fatal("SetRTS(99) accepted a pin beyond the GPIO range")
	}
	if !u.SetRTS(6) {
		t.Fatal("SetRTS(6) rejected a plain GPIO pin")
	}
}

func TestBeginRejectsUnwireablePins(t *testing.T) {
	ctl := sim.NewController()
	port := sim.NewPort(ctl, sim.Config{
		TxPins: []uartk.Pin{4},
		RxPins: []uartk.Pin{5},
	})
	u := uartk.New(port, ctl, uartk.Config{})
	ctl.Attach(u.HandleInterrupt)

	// The stock default pins cannot serve this port.
	if err := u.Begin(testDivisor); err != uartk.ErrInvalidPin {
		t.Fatalf("Begin with unwireable pins = %v, want ErrInvalidPin", err)
	}
	if port.Enabled() {
		t.Fatal("port left enabled after a failed Begin")
	}

	if !u.SetTx(4, false) || !u.SetRx(5) {
		t.Fatal("pin selection rejected on a disabled port")
	}
	if err := u.Begin(testDivisor); err != nil {
		t.Fatalf("Begin after pin selection: %v", err)
	}
	if !port.Enabled() {
		t.Fatal("port not enabled after successful Begin")
	}
}

func TestClosedPortRejectsWrites(t *testing.T) {
	ctl := sim.NewController()
	port := sim.NewPort(ctl, sim.Config{})
	u := uartk.New(port, ctl, uartk.Config{})
	ctl.Attach(u.HandleInterrupt)
	// No Begin.

	if err := u.WriteByte('x'); err != uartk.ErrPortClosed {
		t.Fatalf("WriteByte = %v, want ErrPortClosed", err)
	}
	if _, err := u.Write([]byte("abc")); err != uartk.ErrPortClosed {
		t.Fatalf("Write = %v, want ErrPortClosed", err)
	}
	if n := u.TryWrite([]byte("abc")); n != 0 {
		t.Fatalf("TryWrite = %d, want 0", n)
	}
}
