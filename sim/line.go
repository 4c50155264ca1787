// sim/line.go

package sim

import "sync"

// RecordingLine is a uartk.Line that tracks its state and transition
// counts, so tests can assert on flow-control and direction behaviour.
// A fresh line starts deasserted.
type RecordingLine struct {
	mu        sync.Mutex
	asserted  bool
	asserts   int
	deasserts int
}

func (l *RecordingLine) Assert() {
	l.mu.Lock()
	if !l.asserted {
		l.asserted = true
		l.asserts++
	}
	l.mu.Unlock()
}

func (l *RecordingLine) Deassert() {
	l.mu.Lock()
	if l.asserted {
		l.asserted = false
		l.deasserts++
	}
	l.mu.Unlock()
}

// Asserted reports the line's current state.
func (l *RecordingLine) Asserted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.asserted
}

// Transitions reports how many times the line has gone up and down.
func (l *RecordingLine) Transitions() (asserts, deasserts int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.asserts, l.deasserts
}
