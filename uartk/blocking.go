// uartk/blocking.go

package uartk

import "context"

// The core read and write-room queries never block; these helpers are
// the timeout-capable wrappers callers would otherwise write themselves,
// built on the handler's coalesced notifications.

// Readable returns a coalesced notification for RX readiness. An
// interrupt that enqueues one or more symbols sends on this channel.
// Callers must re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification for TX progress. The handler
// sends on it when it moves symbols from the ring to the hardware and on
// transmit-complete. Callers must re-check state after waking.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// WaitReadable blocks until data is available or ctx is done.
func (u *UART) WaitReadable(ctx context.Context) error {
	for {
		if u.Buffered() > 0 {
			return nil
		}
		u.statReadWait()
		select {
		case <-u.notify:
			// re-check; if empty, it was a spurious wake (coalesced notify)
			if u.Buffered() == 0 {
				u.statSpuriousWake()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RecvSome blocks until at least one byte is available, then reads up to
// len(p).
func (u *UART) RecvSome(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if n, _ := u.Read(p); n > 0 {
		return n, nil
	}
	for {
		u.statReadWait()
		select {
		case <-u.notify:
			if n, _ := u.Read(p); n > 0 {
				return n, nil
			}
			u.statSpuriousWake()
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// RecvByte blocks for a single byte or until ctx is done.
func (u *UART) RecvByte(ctx context.Context) (byte, error) {
	if b, err := u.ReadByte(); err == nil {
		return b, nil
	}
	for {
		u.statReadWait()
		select {
		case <-u.notify:
			if b, err := u.ReadByte(); err == nil {
				return b, nil
			}
			u.statSpuriousWake()
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// SendSome queues up to len(p) bytes, blocking until at least one byte
// is accepted or the context is cancelled. It returns the number of
// bytes queued (>= 1 on success, 0 with the ctx error).
func (u *UART) SendSome(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if n := u.TryWrite(p); n > 0 {
		return n, nil
	}
	for {
		select {
		case <-u.txNotify:
			if n := u.TryWrite(p); n > 0 {
				return n, nil
			}
			// spurious wake; loop
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
