// sim/wire.go

package sim

import (
	"runtime"
	"time"
)

// Connect couples two ports full duplex: symbols leaving a's shifter
// arrive at b, and vice versa.
func Connect(a, b *Port) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Loopback couples a port to itself, as on a shared half-duplex line or
// a jumpered TX/RX pair.
func Loopback(p *Port) {
	p.mu.Lock()
	p.peer = p
	p.mu.Unlock()
}

// Settle ticks the given ports until their transmit sides go quiet, with
// a safety cap so a wedged driver fails fast instead of hanging a test.
// Handlers run synchronously on the calling goroutine, which keeps
// single-goroutine tests fully deterministic.
func Settle(ports ...*Port) {
	for i := 0; i < 1<<16; i++ {
		quiet := true
		for _, p := range ports {
			p.Tick()
			if !p.Quiet() {
				quiet = false
			}
		}
		if quiet {
			return
		}
	}
}

// Clock drives ports from a background goroutine, for tests and tools
// that block on the driver while the wire keeps running.
type Clock struct {
	stop chan struct{}
	done chan struct{}
}

// StartClock ticks the ports every period until Stop. A zero period
// ticks as fast as the scheduler allows.
func StartClock(period time.Duration, ports ...*Port) *Clock {
	c := &Clock{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.stop:
				return
			default:
			}
			for _, p := range ports {
				p.Tick()
			}
			if period > 0 {
				time.Sleep(period)
			} else {
				runtime.Gosched()
			}
		}
	}()
	return c
}

// Stop halts the clock and waits for its goroutine to exit.
func (c *Clock) Stop() {
	close(c.stop)
	<-c.done
}
