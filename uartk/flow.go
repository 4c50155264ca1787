// uartk/flow.go

package uartk

// Flow control: hysteresis on receive-ring occupancy drives the RTS
// line. The interrupt handler performs the high-watermark check after
// filling (rtsOnFill); the mainline read path performs the low-watermark
// check after draining (rtsOnRead). With low < high a single symbol's
// change of occupancy can never toggle the line twice.

// Default watermark margins, as free slots remaining below capacity:
// ask the sender to pause once fewer than rtsHighMargin slots remain,
// let it resume once at least rtsLowMargin are free. For the stock
// 64-symbol ring that is a pause at occupancy 40 and resume at 26.
const (
	rtsHighMargin = 24
	rtsLowMargin  = 38
)

// resetWatermarks derives the occupancy thresholds from the current
// logical capacity. Attaching extension storage moves both thresholds up
// by the extension length, preserving the hysteresis gap. Tiny rings get
// clamped into a 1 <= low < high ordering.
func (u *UART) resetWatermarks() {
	capacity := int64(u.Buffer.Capacity())
	low := capacity - rtsLowMargin
	high := capacity - rtsHighMargin
	if low < 1 {
		low = 1
	}
	if high <= low {
		high = low + 1
	}
	u.lowWater = uint32(low)
	u.highWater = uint32(high)
}

// Watermarks returns the current flow-control thresholds as occupancy
// counts: the line reasserts at or below low and deasserts at or above
// high.
func (u *UART) Watermarks() (low, high int) {
	return int(u.lowWater), int(u.highWater)
}

// rtsOnRead reasserts the request line once the reader has drained the
// ring to the low watermark.
func (u *UART) rtsOnRead() {
	if u.rts == nil {
		return
	}
	if u.Buffer.Occupancy() <= int(u.lowWater) {
		u.rts.Assert()
	}
}

// rtsOnFill is the interrupt-side complement: stop the sender once
// occupancy reaches the high watermark.
func (u *UART) rtsOnFill() {
	if u.rts == nil {
		return
	}
	if u.Buffer.Occupancy() >= int(u.highWater) {
		u.rts.Deassert()
	}
}
