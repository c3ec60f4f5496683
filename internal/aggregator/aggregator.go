// Package aggregator computes one pipeline's row for one date: every stage's
// count and, for stages with a parent, the child/parent completion ratio.
package aggregator

import (
	"context"
	"fmt"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
	"github.com/JakeFAU/pipelinewatch/internal/series"
)

// StageError records a stage whose count could not be computed.
type StageError struct {
	Stage string
	Err   error
}

func (e StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e StageError) Unwrap() error {
	return e.Err
}

// Result is the outcome of aggregating one date.
type Result struct {
	Row    series.Row
	Errors []StageError
}

// Failed reports whether stage could not be counted.
func (r Result) Failed(stage string) bool {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return true
		}
	}
	return false
}

// Ratio returns child/parent, or 0 when parent is 0.
func Ratio(child, parent int64) float64 {
	if parent <= 0 {
		return 0
	}
	return float64(child) / float64(parent)
}

// Aggregate counts every stage of p for date. Stages are visited in
// definition order; a parent that has not been counted yet is counted on
// first reference and reused for the rest of the date. Failed stages are
// reported in Result.Errors and left out of the row, as is the percentage of
// any stage whose own or parent count failed.
func Aggregate(ctx context.Context, p *pipeline.Pipeline, date daterange.Date) Result {
	pass := &datePass{
		ctx:      ctx,
		pipeline: p,
		date:     date,
		counts:   map[string]int64{},
		failed:   map[string]error{},
	}
	row := series.NewRow(date)
	for _, st := range p.Stages() {
		n, ok := pass.count(st)
		if ok {
			row.Counts[st.Name] = n
		}
		if !st.HasParent() || !ok {
			continue
		}
		parent, _ := p.Stage(st.Parent)
		pn, pok := pass.count(parent)
		if !pok {
			continue
		}
		row.Percents[st.Name] = Ratio(n, pn)
	}

	res := Result{Row: row}
	for _, st := range p.Stages() {
		if err, bad := pass.failed[st.Name]; bad {
			res.Errors = append(res.Errors, StageError{Stage: st.Name, Err: err})
		}
	}
	return res
}

// datePass memoizes counts for a single date. It is discarded afterwards.
type datePass struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	date     daterange.Date
	counts   map[string]int64
	failed   map[string]error
}

func (d *datePass) count(st pipeline.Stage) (int64, bool) {
	if n, ok := d.counts[st.Name]; ok {
		return n, true
	}
	if _, bad := d.failed[st.Name]; bad {
		return 0, false
	}
	n, err := st.Counter.Count(d.ctx, d.date)
	if err != nil {
		d.failed[st.Name] = err
		return 0, false
	}
	d.counts[st.Name] = n
	return n, true
}
