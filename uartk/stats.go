// uartk/stats.go

//go:build uartkstats

package uartk

import "sync/atomic"

// Stats holds counters since the last reset. Built only with the
// uartkstats tag; without it the hooks compile to nothing. RxDropped is
// the observable face of the silent receive overflow policy.
type Stats struct {
	ISRCount  uint32 // handler entries
	RxQueued  uint32 // symbols moved into the receive ring
	RxDropped uint32 // symbols lost to a full receive ring

	NotifySent    uint32 // notify sends that succeeded
	NotifyDropped uint32 // notify sends coalesced away

	ReadWaits     uint32 // times a blocking read had to wait
	SpuriousWakes uint32 // notify received but no data available
}

type stats = Stats

// StatsSnapshot returns a copy of the counters.
func (u *UART) StatsSnapshot() Stats {
	return Stats{
		ISRCount:  atomic.LoadUint32(&u.stats.ISRCount),
		RxQueued:  atomic.LoadUint32(&u.stats.RxQueued),
		RxDropped: atomic.LoadUint32(&u.stats.RxDropped),

		NotifySent:    atomic.LoadUint32(&u.stats.NotifySent),
		NotifyDropped: atomic.LoadUint32(&u.stats.NotifyDropped),

		ReadWaits:     atomic.LoadUint32(&u.stats.ReadWaits),
		SpuriousWakes: atomic.LoadUint32(&u.stats.SpuriousWakes),
	}
}

// StatsReset zeroes the counters.
func (u *UART) StatsReset() {
	u.stats = Stats{}
}

func (u *UART) statISREnter()      { atomic.AddUint32(&u.stats.ISRCount, 1) }
func (u *UART) statRxQueued()      { atomic.AddUint32(&u.stats.RxQueued, 1) }
func (u *UART) statRxDropped()     { atomic.AddUint32(&u.stats.RxDropped, 1) }
func (u *UART) statNotifySent()    { atomic.AddUint32(&u.stats.NotifySent, 1) }
func (u *UART) statNotifyDropped() { atomic.AddUint32(&u.stats.NotifyDropped, 1) }
func (u *UART) statReadWait()      { atomic.AddUint32(&u.stats.ReadWaits, 1) }
func (u *UART) statSpuriousWake()  { atomic.AddUint32(&u.stats.SpuriousWakes, 1) }
