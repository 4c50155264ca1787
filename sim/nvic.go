// sim/nvic.go

package sim

import (
	"runtime"
	"sync"

	"github.com/jangala-dev/tinygo-uartk/uartk"
)

// Controller implements uartk.IRQController as a one-slot NVIC: a single
// latched interrupt, priority-gated delivery and mask/restore. Delivery
// is synchronous on whichever goroutine makes it possible (a Tick, an
// unmask, a priority drop), standing in for the hardware preempting
// whatever is running.
//
// Two single-core guarantees are preserved across the goroutines that
// share a controller: only the goroutine actually executing the handler
// observes the interrupt's own execution priority, and Mask does not
// return while a handler is in flight elsewhere, exactly as disabling
// interrupts on the real part cannot observe a half-run ISR.
type Controller struct {
	mu           sync.Mutex
	idle         *sync.Cond // signalled when a handler run finishes
	handler      func()
	enabled      bool
	priority     int
	execPriority int
	masked       bool
	pending      bool
	inISR        bool
	isrGoroutine uint64
	deliveries   int
}

func NewController() *Controller {
	c := &Controller{
		priority:     uartk.DefaultIRQPriority,
		execPriority: uartk.PriorityMainline,
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Attach binds the handler the controller dispatches to, normally the
// driver's HandleInterrupt.
func (c *Controller) Attach(h func()) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Controller) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
	c.deliver()
}

func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
}

func (c *Controller) SetPriority(p int) {
	c.mu.Lock()
	c.priority = p
	c.mu.Unlock()
}

func (c *Controller) ExecutionPriority() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inISR && c.isrGoroutine == goid() {
		return c.priority
	}
	return c.execPriority
}

// SetExecutionPriority models the mainline caller running inside another
// interrupt of the given priority; uartk.PriorityMainline restores
// ordinary execution. A latched interrupt delivers as soon as the
// priority allows it again.
func (c *Controller) SetExecutionPriority(p int) {
	c.mu.Lock()
	c.execPriority = p
	c.mu.Unlock()
	c.deliver()
}

// Mask waits out any handler already in flight on another goroutine
// before suppressing delivery, so the caller's critical section really
// is exclusive against the handler. The handler masking from inside its
// own run passes straight through.
func (c *Controller) Mask() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inISR && c.isrGoroutine != goid() {
		c.idle.Wait()
	}
	var prev uint32
	if c.masked {
		prev = 1
	}
	c.masked = true
	return prev
}

func (c *Controller) Restore(state uint32) {
	c.mu.Lock()
	c.masked = state != 0
	c.mu.Unlock()
	c.deliver()
}

// Deliveries reports how many times the handler has run.
func (c *Controller) Deliveries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliveries
}

// raise latches the interrupt and attempts delivery.
func (c *Controller) raise() {
	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()
	c.deliver()
}

// deliver runs the handler while a latched interrupt is deliverable: the
// line enabled and unmasked, nobody already in the handler, and the
// current execution priority low enough to be preempted.
func (c *Controller) deliver() {
	for {
		c.mu.Lock()
		if !c.pending || !c.enabled || c.masked || c.inISR ||
			c.execPriority <= c.priority || c.handler == nil {
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.inISR = true
		c.isrGoroutine = goid()
		h := c.handler
		c.deliveries++
		c.mu.Unlock()
		h()
		c.mu.Lock()
		c.inISR = false
		c.idle.Broadcast()
		c.mu.Unlock()
	}
}

// goid parses the calling goroutine's id from its stack header. The
// runtime offers no public accessor; the controller needs it only to
// tell handler context apart from everyone else.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[len("goroutine "):n]
	var id uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
