// cmd/integrity/main.go
// Framed integrity test for uartk over the sim wire: the sender streams
// deterministic payload frames, each closed by a CRC-8 checksum byte,
// and the receiver verifies every frame as it arrives. Exercises the
// blocking send/receive path and flow control under sustained load.

package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sigurn/crc8"

	"github.com/jangala-dev/tinygo-uartk/sim"
	"github.com/jangala-dev/tinygo-uartk/uartk"
)

/*** Tunables ***/
const (
	divisor        = 64
	frameSize      = 240       // payload bytes per frame, checksum excluded
	totalBytes     = 64 * 1024 // payload bytes per direction
	fullDuplex     = true      // false: run each direction separately
	timeoutPerTest = 20 * time.Second
	recvChunk      = 256
)

var frameCRC = crc8.MakeTable(crc8.CRC8_MAXIM)

/*** Patterns (deterministic) ***/
func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

func main() {
	println("uartk framed integrity test (sim)")
	println("frame =", frameSize, "  bytes/dir =", totalBytes, "  duplex =", boolToStr(fullDuplex))

	u0, p0 := newPort()
	u1, p1 := newPort()
	sim.Connect(p0, p1)

	clock := sim.StartClock(0, p0, p1)
	defer clock.Stop()

	pass, fail := 0, 0
	report := func(name, err string) {
		if err == "" {
			println("[PASS]", name)
			pass++
		} else {
			println("[FAIL]", name, ":", err)
			fail++
		}
	}

	if fullDuplex {
		report("Full-duplex framed integrity", runFullDuplex(u0, u1))
	} else {
		report("P0 -> P1 framed integrity", runOneWay(u0, u1, patternA))
		report("P1 -> P0 framed integrity", runOneWay(u1, u0, patternB))
	}

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

func runOneWay(tx, rx *uartk.UART, gen func(int) byte) string {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
	defer cancel()

	errCh := make(chan string, 1)
	go func() { errCh <- recvFrames(ctx, rx, gen, totalBytes) }()
	if err := sendFrames(ctx, tx, gen, totalBytes); err != "" {
		<-errCh
		return err
	}
	return <-errCh
}

func runFullDuplex(u0, u1 *uartk.UART) string {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
	defer cancel()

	errCh := make(chan string, 2)
	go func() { errCh <- recvFrames(ctx, u1, patternA, totalBytes) }()
	go func() { errCh <- recvFrames(ctx, u0, patternB, totalBytes) }()
	go func() { _ = sendFrames(ctx, u0, patternA, totalBytes) }()
	go func() { _ = sendFrames(ctx, u1, patternB, totalBytes) }()

	e1, e2 := <-errCh, <-errCh
	if e1 != "" {
		return e1
	}
	return e2
}

/*** Framing ***/

// sendFrames streams n payload bytes as frames of frameSize (the last
// one possibly short), each followed by its CRC-8 over the payload.
func sendFrames(ctx context.Context, u *uartk.UART, gen func(int) byte, n int) string {
	frame := make([]byte, frameSize+1)
	for off := 0; off < n; {
		m := frameSize
		if n-off < m {
			m = n - off
		}
		for i := 0; i < m; i++ {
			frame[i] = gen(off + i)
		}
		csum := crc8.Init(frameCRC)
		csum = crc8.Update(csum, frame[:m], frameCRC)
		frame[m] = crc8.Complete(csum, frameCRC)

		if err := sendAll(ctx, u, frame[:m+1]); err != nil {
			return "send timeout at offset " + strconv.Itoa(off)
		}
		off += m
	}
	return ""
}

// recvFrames consumes the stream sendFrames produces, verifying both
// the payload bytes and every checksum.
func recvFrames(ctx context.Context, u *uartk.UART, gen func(int) byte, n int) string {
	frame := make([]byte, frameSize+1)
	for off := 0; off < n; {
		m := frameSize
		if n-off < m {
			m = n - off
		}
		if err := recvExact(ctx, u, frame[:m+1]); err != nil {
			return "recv timeout at offset " + strconv.Itoa(off)
		}
		for i := 0; i < m; i++ {
			if frame[i] != gen(off+i) {
				return "payload mismatch at offset " + strconv.Itoa(off+i)
			}
		}
		csum := crc8.Init(frameCRC)
		csum = crc8.Update(csum, frame[:m], frameCRC)
		csum = crc8.Complete(csum, frameCRC)
		if csum != frame[m] {
			return "checksum mismatch for frame at offset " + strconv.Itoa(off)
		}
		off += m
	}
	return ""
}

/*** I/O helpers ***/

func sendAll(ctx context.Context, u *uartk.UART, p []byte) error {
	for sent := 0; sent < len(p); {
		n, err := u.SendSome(ctx, p[sent:])
		if err != nil {
			return err
		}
		sent += n
	}
	return nil
}

func recvExact(ctx context.Context, u *uartk.UART, p []byte) error {
	for got := 0; got < len(p); {
		want := len(p) - got
		if want > recvChunk {
			want = recvChunk
		}
		n, err := u.RecvSome(ctx, p[got:got+want])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
