// uartk/stats_stubs.go

//go:build !uartkstats

package uartk

// No-op statistics hooks. Build with -tags uartkstats for counters.

type stats struct{}

func (u *UART) statISREnter()      {}
func (u *UART) statRxQueued()      {}
func (u *UART) statRxDropped()     {}
func (u *UART) statNotifySent()    {}
func (u *UART) statNotifyDropped() {}
func (u *UART) statReadWait()      {}
func (u *UART) statSpuriousWake()  {}
