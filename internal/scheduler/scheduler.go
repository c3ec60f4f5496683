package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pipelinewatch/internal/clock"
	"github.com/JakeFAU/pipelinewatch/internal/metrics"
)

// State is the scheduler's current activity.
type State string

// Scheduler states.
const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
)

// Job performs one full scan.
type Job interface {
	ScanAll(ctx context.Context) Report
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State      State
	Scans      int
	LastReport *Report
}

// Scheduler runs Job once at start and then on every tick, never
// overlapping two scans.
type Scheduler struct {
	job      Job
	tickers  clock.TickerFactory
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger

	mu    sync.RWMutex
	state State
	scans int
	last  *Report
}

// New creates a Scheduler that scans every interval.
func New(job Job, tickers clock.TickerFactory, clk clock.Clock, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scan job is required")
	}
	if tickers == nil || clk == nil {
		return nil, fmt.Errorf("ticker factory and clock are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("scan interval must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		job:      job,
		tickers:  tickers,
		clock:    clk,
		interval: interval,
		logger:   logger.Named("scheduler"),
		state:    StateIdle,
	}, nil
}

// Run blocks until ctx is cancelled. A scan in progress when ctx is cancelled
// is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.tickers.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.scan(ctx, ticker)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C():
			// Both cases may be ready at once; cancellation wins.
			if ctx.Err() != nil {
				s.logger.Info("scheduler stopped")
				return
			}
			s.scan(ctx, ticker)
		}
	}
}

// State reports whether a scan is running.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns the current state and the last completed scan.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{State: s.state, Scans: s.scans}
	if s.last != nil {
		r := *s.last
		st.LastReport = &r
	}
	return st
}

func (s *Scheduler) scan(ctx context.Context, ticker clock.Ticker) {
	s.setState(StateScanning)
	start := s.clock.Now()
	report := s.job.ScanAll(ctx)
	elapsed := s.clock.Now().Sub(start)

	s.mu.Lock()
	s.state = StateIdle
	s.scans++
	s.last = &report
	s.mu.Unlock()

	skipped := s.drain(ticker)
	if overrun := int(elapsed / s.interval); overrun > skipped {
		skipped = overrun
	}
	if skipped == 0 {
		return
	}
	for i := 0; i < skipped; i++ {
		metrics.ObserveSkippedTick()
	}
	ticker.Reset(s.interval)
	s.logger.Warn("scan overran interval; skipped ticks",
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", elapsed),
		zap.Duration("interval", s.interval),
	)
}

// drain discards ticks that were delivered while a scan was running.
func (s *Scheduler) drain(ticker clock.Ticker) int {
	n := 0
	for {
		select {
		case <-ticker.C():
			n++
		default:
			return n
		}
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
