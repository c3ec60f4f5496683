// Package system provides the wall-clock implementations of the clock interfaces.
package system

import (
	"time"

	"github.com/JakeFAU/pipelinewatch/internal/clock"
)

// Clock implements clock.Clock using time.Now.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting local time in loc. A nil loc means time.Local.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Tickers builds real time.Ticker values.
type Tickers struct{}

// NewTicker implements clock.TickerFactory.
func (Tickers) NewTicker(d time.Duration) clock.Ticker {
	return &ticker{t: time.NewTicker(d)}
}

type ticker struct {
	t *time.Ticker
}

func (t *ticker) C() <-chan time.Time { return t.t.C }

func (t *ticker) Reset(d time.Duration) { t.t.Reset(d) }

func (t *ticker) Stop() { t.t.Stop() }
