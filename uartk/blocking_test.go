package uartk_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-uartk/sim"
	"github.com/jangala-dev/tinygo-uartk/uartk"
)

func TestRecvByteUnblocksOnReceive(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		b   byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := u.RecvByte(ctx)
		done <- result{b, err}
	}()

	time.Sleep(10 * time.Millisecond)
	port.Inject('Z')

	select {
	case r := <-done:
		if r.err != nil || r.b != 'Z' {
			t.Fatalf("RecvByte = %q, %v", r.b, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RecvByte never woke up")
	}
}

func TestWaitReadableTimesOut(t *testing.T) {
	u, _, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := u.WaitReadable(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitReadable = %v, want deadline exceeded", err)
	}
}

func TestWaitReadableImmediateWithData(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	port.Inject('x')

	// An already-expired context must not matter when data is waiting.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := u.WaitReadable(ctx); err != nil {
		t.Fatalf("WaitReadable with buffered data = %v", err)
	}
}

func TestRecvSomeReturnsWhatIsBuffered(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{}, sim.Config{})
	port.Inject('x', 'y', 'z')

	buf := make([]byte, 8)
	n, err := u.RecvSome(context.Background(), buf)
	if err != nil || n != 3 || string(buf[:3]) != "xyz" {
		t.Fatalf("RecvSome = %d %q, %v", n, buf[:n], err)
	}
}

func TestSendSomeUnblocksOnDrain(t *testing.T) {
	u, port, _ := newTestPort(t, uartk.Config{TxSize: 16}, sim.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Pack the ring and the FIFO with no clock running.
	filler := make([]byte, 32)
	for u.TryWrite(filler) > 0 {
	}
	if u.WriteRoom() != 0 {
		t.Fatalf("WriteRoom = %d after packing, want 0", u.WriteRoom())
	}

	done := make(chan int, 1)
	go func() {
		n, err := u.SendSome(ctx, []byte("more"))
		if err != nil {
			t.Errorf("SendSome: %v", err)
		}
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	clock := sim.StartClock(0, port)
	defer clock.Stop()

	select {
	case n := <-done:
		if n < 1 {
			t.Fatalf("SendSome accepted %d bytes", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendSome never woke up")
	}
}
