// Package series holds the per-pipeline time series: one row per date with a
// count per stage and a percentage per parented stage.
package series

import (
	"maps"
	"sort"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
)

// DateColumn is the name of the key column.
const DateColumn = "date"

// PercentSuffix is appended to a stage name to name its percentage column.
const PercentSuffix = "%"

// Column describes one value column of a table. Parent is set on
// percentage columns only.
type Column struct {
	Name    string
	Stage   string
	Parent  string
	Percent bool
}

// Columns derives the value columns for p: every stage in order, each
// parented stage immediately followed by its percentage column.
func Columns(p *pipeline.Pipeline) []Column {
	stages := p.Stages()
	cols := make([]Column, 0, len(stages)*2)
	for _, st := range stages {
		cols = append(cols, Column{Name: st.Name, Stage: st.Name})
		if st.HasParent() {
			cols = append(cols, Column{Name: st.Name + PercentSuffix, Stage: st.Name, Parent: st.Parent, Percent: true})
		}
	}
	return cols
}

// Row is one date's values. A stage missing from Counts or Percents has no
// value for that date, either because it was never computed or because
// computing it failed.
type Row struct {
	Date     daterange.Date
	Counts   map[string]int64
	Percents map[string]float64
}

// NewRow creates an empty row for date.
func NewRow(date daterange.Date) Row {
	return Row{
		Date:     date,
		Counts:   map[string]int64{},
		Percents: map[string]float64{},
	}
}

func (r Row) clone() Row {
	return Row{
		Date:     r.Date,
		Counts:   maps.Clone(r.Counts),
		Percents: maps.Clone(r.Percents),
	}
}

// Table is an ordered collection of rows keyed by unique date.
type Table struct {
	pipeline string
	columns  []Column
	rows     []Row
	index    map[daterange.Date]int
}

// NewTable creates an empty table with p's column schema.
func NewTable(p *pipeline.Pipeline) *Table {
	return &Table{
		pipeline: p.Name(),
		columns:  Columns(p),
		index:    map[daterange.Date]int{},
	}
}

// Pipeline returns the name of the pipeline the table belongs to.
func (t *Table) Pipeline() string {
	return t.pipeline
}

// Columns returns the value columns in persisted order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns copies of every row in insertion order.
func (t *Table) Rows() []Row {
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.clone())
	}
	return out
}

// Row returns a copy of the row for date.
func (t *Table) Row(date daterange.Date) (Row, bool) {
	i, ok := t.index[date]
	if !ok {
		return Row{}, false
	}
	return t.rows[i].clone(), true
}

// Upsert merges row into the table. When a row for row.Date exists, every
// value present in row overwrites the stored one and absent values are left
// as they were; the table length is unchanged. Percentages of the merged row
// are then recomputed from its merged counts. Otherwise row is appended.
// Values for stages outside the table's schema are ignored.
func (t *Table) Upsert(row Row) {
	incoming := t.project(row)
	i, ok := t.index[row.Date]
	if !ok {
		t.index[row.Date] = len(t.rows)
		t.rows = append(t.rows, incoming)
		return
	}
	existing := &t.rows[i]
	maps.Copy(existing.Counts, incoming.Counts)
	maps.Copy(existing.Percents, incoming.Percents)
	t.reconcile(existing)
}

// reconcile keeps every percentage equal to child/parent of the row's own
// counts. A child whose parent has no count loses its percentage.
func (t *Table) reconcile(r *Row) {
	for _, c := range t.columns {
		if !c.Percent {
			continue
		}
		child, ok := r.Counts[c.Stage]
		if !ok {
			continue
		}
		parent, ok := r.Counts[c.Parent]
		switch {
		case !ok:
			delete(r.Percents, c.Stage)
		case parent <= 0:
			r.Percents[c.Stage] = 0
		default:
			r.Percents[c.Stage] = float64(child) / float64(parent)
		}
	}
}

// Tail returns the last n rows in date order. n <= 0 returns every row.
func (t *Table) Tail(n int) []Row {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[len(rows)-n:]
}

func (t *Table) project(row Row) Row {
	out := NewRow(row.Date)
	for _, c := range t.columns {
		if c.Percent {
			if v, ok := row.Percents[c.Stage]; ok {
				out.Percents[c.Stage] = v
			}
			continue
		}
		if v, ok := row.Counts[c.Stage]; ok {
			out.Counts[c.Stage] = v
		}
	}
	return out
}
