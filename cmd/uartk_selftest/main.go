// cmd/uartk_selftest/main.go
// Cross-port self-test for uartk over the sim package's fake silicon.
// Two ports are cross-wired and driven by a background clock; the tests
// run short messages, streamed one-way integrity and full-duplex
// integrity in both directions.

package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/jangala-dev/tinygo-uartk/sim"
	"github.com/jangala-dev/tinygo-uartk/uartk"
)

/*** Tunables ***/
const (
	divisor        = 64        // baud divisor handed to the fake silicon
	totalBytes     = 64 * 1024 // bytes per direction for integrity runs
	sendChunk      = 192       // bytes per SendSome burst
	recvChunk      = 256       // bytes per RecvSome read
	timeoutPerTest = 10 * time.Second
)

/*** Patterns (deterministic) ***/
func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

func main() {
	println("uartk cross-port self-test (sim)")
	println("bytes/dir =", totalBytes)

	u0, p0 := newPort()
	u1, p1 := newPort()
	sim.Connect(p0, p1)

	clock := sim.StartClock(0, p0, p1)
	defer clock.Stop()

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	// Short messages each way
	run("P0 -> P1 short", func() string {
		drain(u0)
		drain(u1)
		msg := []byte("hello from P0\r\n")
		ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
		defer cancel()

		done := make(chan struct{}, 1)
		go func() { _, _ = sendAll(ctx, u0, msg); done <- struct{}{} }()

		got, err := recvExact(ctx, u1, len(msg))
		if err != nil || string(got) != string(msg) {
			return "mismatch/timeout"
		}
		<-done
		return ""
	})

	run("P1 -> P0 short", func() string {
		drain(u0)
		drain(u1)
		msg := []byte("hi from P1\r\n")
		ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
		defer cancel()

		done := make(chan struct{}, 1)
		go func() { _, _ = sendAll(ctx, u1, msg); done <- struct{}{} }()

		got, err := recvExact(ctx, u0, len(msg))
		if err != nil || string(got) != string(msg) {
			return "mismatch/timeout"
		}
		<-done
		return ""
	})

	// One-way streamed integrity
	run("P0 -> P1 integrity (streamed)", func() string {
		drain(u0)
		drain(u1)
		return runOneWay(u0, u1, patternA, totalBytes)
	})

	run("P1 -> P0 integrity (streamed)", func() string {
		drain(u0)
		drain(u1)
		return runOneWay(u1, u0, patternB, totalBytes)
	})

	// Full duplex both ways at once
	run("Full-duplex integrity", func() string {
		drain(u0)
		drain(u1)
		ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
		defer cancel()

		errCh := make(chan string, 2)
		go func() { errCh <- recvAndCheck(ctx, u1, patternA, totalBytes) }()
		go func() { errCh <- recvAndCheck(ctx, u0, patternB, totalBytes) }()
		go func() { _ = sendPattern(ctx, u0, patternA, totalBytes) }()
		go func() { _ = sendPattern(ctx, u1, patternB, totalBytes) }()

		e1, e2 := <-errCh, <-errCh
		if e1 != "" {
			return e1
		}
		return e2
	})

	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail != 0 {
		os.Exit(1)
	}
}

func newPort() (*uartk.UART, *sim.Port) {
	ctl := sim.NewController()
	port := sim.NewPort(ctl, sim.Config{})
	u := uartk.New(port, ctl, uartk.Config{})
	ctl.Attach(u.HandleInterrupt)
	if err := u.Begin(divisor); err != nil {
		println("begin failed:", err.Error())
		os.Exit(1)
	}
	return u, port
}

/*** Test runners ***/

func runOneWay(tx, rx *uartk.UART, gen func(int) byte, n int) string {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
	defer cancel()

	errCh := make(chan string, 1)
	go func() { errCh <- recvAndCheck(ctx, rx, gen, n) }()
	if err := sendPattern(ctx, tx, gen, n); err != nil {
		<-errCh
		return "send timeout"
	}
	return <-errCh
}

/*** I/O helpers ***/

func sendAll(ctx context.Context, u *uartk.UART, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := u.SendSome(ctx, p[sent:])
		if err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

func sendPattern(ctx context.Context, u *uartk.UART, gen func(int) byte, n int) error {
	buf := make([]byte, sendChunk)
	for off := 0; off < n; {
		m := len(buf)
		if n-off < m {
			m = n - off
		}
		for i := 0; i < m; i++ {
			buf[i] = gen(off + i)
		}
		if _, err := sendAll(ctx, u, buf[:m]); err != nil {
			return err
		}
		off += m
	}
	return nil
}

func recvExact(ctx context.Context, u *uartk.UART, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, recvChunk)
	for len(out) < n {
		want := n - len(out)
		if want > len(buf) {
			want = len(buf)
		}
		m, err := u.RecvSome(ctx, buf[:want])
		if err != nil {
			return out, err
		}
		out = append(out, buf[:m]...)
	}
	return out, nil
}

func recvAndCheck(ctx context.Context, u *uartk.UART, gen func(int) byte, n int) string {
	buf := make([]byte, recvChunk)
	for off := 0; off < n; {
		want := n - off
		if want > len(buf) {
			want = len(buf)
		}
		m, err := u.RecvSome(ctx, buf[:want])
		if err != nil {
			return "timeout/short read"
		}
		for i := 0; i < m; i++ {
			if buf[i] != gen(off+i) {
				return "mismatch at offset " + strconv.Itoa(off+i)
			}
		}
		off += m
	}
	return ""
}

func drain(u *uartk.UART) {
	buf := make([]byte, 64)
	for {
		n, _ := u.Read(buf)
		if n == 0 {
			return
		}
	}
}
