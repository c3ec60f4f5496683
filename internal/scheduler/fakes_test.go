package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/pipelinewatch/internal/clock"
	"github.com/JakeFAU/pipelinewatch/internal/daterange"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	resets  int
	stopped bool
	onReset func()
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Reset(time.Duration) {
	t.mu.Lock()
	t.resets++
	hook := t.onReset
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeTickers struct {
	ticker *fakeTicker
}

func newFakeTickers() *fakeTickers {
	return &fakeTickers{ticker: &fakeTicker{ch: make(chan time.Time, 4)}}
}

func (f *fakeTickers) NewTicker(time.Duration) clock.Ticker { return f.ticker }

// dateCounter returns per-date values and fails on selected dates.
type dateCounter struct {
	values map[string]int64
	fail   map[string]error
}

func (c dateCounter) Count(_ context.Context, d daterange.Date) (int64, error) {
	if err, ok := c.fail[d.String()]; ok {
		return 0, err
	}
	return c.values[d.String()], nil
}
