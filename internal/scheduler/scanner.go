// Package scheduler runs periodic scans that refresh every pipeline's
// snapshot.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pipelinewatch/internal/aggregator"
	"github.com/JakeFAU/pipelinewatch/internal/clock"
	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/metrics"
	"github.com/JakeFAU/pipelinewatch/internal/notify"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
	"github.com/JakeFAU/pipelinewatch/internal/series"
)

// Scan results recorded in metrics and reports.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
)

// ScannerConfig wires a Scanner's collaborators.
type ScannerConfig struct {
	Store     *series.Store
	Pipelines *pipeline.Set
	Notifier  notify.Notifier
	Clock     clock.Clock
	Epoch     daterange.Date
	Logger    *zap.Logger
}

// Scanner recomputes snapshots for a fixed set of pipelines.
type Scanner struct {
	store     *series.Store
	pipelines *pipeline.Set
	notifier  notify.Notifier
	clock     clock.Clock
	epoch     daterange.Date
	logger    *zap.Logger
}

// NewScanner validates cfg and returns a Scanner.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("series store is required")
	}
	if cfg.Pipelines == nil {
		return nil, fmt.Errorf("pipeline set is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scanner{
		store:     cfg.Store,
		pipelines: cfg.Pipelines,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		epoch:     cfg.Epoch,
		logger:    cfg.Logger.Named("scanner"),
	}, nil
}

// PipelineReport summarizes one pipeline's part of a scan.
type PipelineReport struct {
	Pipeline    string
	Dates       int
	Rows        int
	StageErrors int
	Err         error
}

// Report summarizes a full scan.
type Report struct {
	ID        string
	Started   time.Time
	Duration  time.Duration
	Result    string
	Pipelines []PipelineReport
}

// Failed counts pipelines whose snapshot was not written.
func (r Report) Failed() int {
	n := 0
	for _, p := range r.Pipelines {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// ScanPipeline loads p's snapshot, recomputes every date in dates, and saves
// the table once. Stage failures keep the stored value for that date. A load
// or save failure is returned and leaves the persisted snapshot unchanged.
// Cancellation stops the date loop early; dates already computed are saved.
func (s *Scanner) ScanPipeline(ctx context.Context, p *pipeline.Pipeline, dates []daterange.Date) (PipelineReport, error) {
	report := PipelineReport{Pipeline: p.Name()}
	log := s.logger.With(zap.String("pipeline", p.Name()))

	table, err := s.store.Load(ctx, p)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", p.Name(), err)
	}

	var last aggregator.Result
	for _, date := range dates {
		if ctx.Err() != nil {
			log.Warn("scan interrupted", zap.String("date", date.String()))
			break
		}
		res := aggregator.Aggregate(ctx, p, date)
		for _, stageErr := range res.Errors {
			report.StageErrors++
			metrics.ObserveStageError(p.Name(), stageErr.Stage)
			log.Warn("stage count failed; keeping previous value",
				zap.String("date", date.String()),
				zap.String("stage", stageErr.Stage),
				zap.Error(stageErr.Err),
			)
		}
		table.Upsert(res.Row)
		report.Dates++
		last = res
	}

	if err := s.store.Save(context.WithoutCancel(ctx), table); err != nil {
		return report, fmt.Errorf("scan %s: %w", p.Name(), err)
	}
	report.Rows = table.Len()
	if report.Dates > 0 {
		s.publishGauges(p, last.Row)
	}
	return report, nil
}

func (s *Scanner) publishGauges(p *pipeline.Pipeline, row series.Row) {
	for stage, n := range row.Counts {
		metrics.SetStageCount(p.Name(), stage, n)
	}
	for stage, ratio := range row.Percents {
		metrics.SetStagePercent(p.Name(), stage, ratio)
	}
}

// ScanAll regenerates the date range from the epoch through today and scans
// every pipeline in configuration order. One pipeline failing does not stop
// the others.
func (s *Scanner) ScanAll(ctx context.Context) Report {
	report := Report{
		ID:      uuid.NewString(),
		Started: s.clock.Now(),
	}
	dates := daterange.Generate(s.epoch, report.Started)
	log := s.logger.With(zap.String("scan_id", report.ID))
	log.Info("scan started", zap.Int("dates", len(dates)), zap.Int("pipelines", len(s.pipelines.All())))

	for _, p := range s.pipelines.All() {
		pr, err := s.ScanPipeline(ctx, p, dates)
		if err != nil {
			pr.Err = err
			metrics.ObservePipelineScan(p.Name(), ResultError)
			log.Error("pipeline scan failed", zap.String("pipeline", p.Name()), zap.Error(err))
			report.Pipelines = append(report.Pipelines, pr)
			continue
		}
		metrics.ObservePipelineScan(p.Name(), ResultOK)
		report.Pipelines = append(report.Pipelines, pr)

		event := notify.Event{
			ScanID:      report.ID,
			Pipeline:    p.Name(),
			Snapshot:    series.SnapshotName(p.Name()),
			Rows:        pr.Rows,
			StageErrors: pr.StageErrors,
			CompletedAt: s.clock.Now(),
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.Warn("scan notification failed", zap.String("pipeline", p.Name()), zap.Error(err))
		}
	}

	report.Duration = s.clock.Now().Sub(report.Started)
	switch failed := report.Failed(); {
	case failed == 0:
		report.Result = ResultOK
	case failed < len(report.Pipelines):
		report.Result = ResultPartial
	default:
		report.Result = ResultError
	}
	metrics.ObserveScan(report.Result, report.Duration)
	log.Info("scan finished",
		zap.String("result", report.Result),
		zap.Duration("duration", report.Duration),
		zap.Int("failed_pipelines", report.Failed()),
	)
	return report
}
