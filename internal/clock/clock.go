// Package clock defines the time sources used by the scan scheduler.
package clock

import "time"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Ticker delivers ticks on C at a fixed interval until stopped.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// TickerFactory creates tickers so tests can drive the scheduler by hand.
type TickerFactory interface {
	NewTicker(d time.Duration) Ticker
}
