package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
)

// ErrCorrupt marks a persisted snapshot that cannot be read back.
var ErrCorrupt = errors.New("corrupt snapshot")

// Encode writes t as CSV: a header row, then one row per date in table order.
// Absent values are written as empty fields.
func Encode(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(t.columns)+1)
	header = append(header, DateColumn)
	for _, c := range t.columns {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for _, r := range t.rows {
		record[0] = r.Date.String()
		for i, c := range t.columns {
			record[i+1] = formatCell(r, c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode into a table shaped for p.
// Columns of stages that no longer exist in p are dropped; columns p gained
// since the snapshot was written start out empty. Any structural problem is
// reported as ErrCorrupt.
func Decode(r io.Reader, p *pipeline.Pipeline) (*Table, error) {
	t := NewTable(p)
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrCorrupt, err)
	}
	if len(header) == 0 || header[0] != DateColumn {
		return nil, fmt.Errorf("%w: first column must be %q", ErrCorrupt, DateColumn)
	}
	known := make(map[string]Column, len(t.columns))
	for _, c := range t.columns {
		known[c.Name] = c
	}
	layout := make([]*Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrCorrupt, name)
		}
		seen[name] = true
		if i == 0 {
			continue
		}
		if c, ok := known[name]; ok {
			layout[i] = &c
		}
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrCorrupt, line, err)
		}
		date, err := daterange.Parse(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrCorrupt, line, err)
		}
		if _, dup := t.index[date]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate date %s", ErrCorrupt, line, date)
		}
		row := NewRow(date)
		for i := 1; i < len(record); i++ {
			col := layout[i]
			if col == nil || record[i] == "" {
				continue
			}
			if err := parseCell(&row, *col, record[i]); err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %w", ErrCorrupt, line, col.Name, err)
			}
		}
		t.Upsert(row)
	}
	return t, nil
}

func formatCell(r Row, c Column) string {
	if c.Percent {
		v, ok := r.Percents[c.Stage]
		if !ok {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	v, ok := r.Counts[c.Stage]
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func parseCell(row *Row, c Column, raw string) error {
	if c.Percent {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse percentage: %w", err)
		}
		if math.IsNaN(v) {
			return nil
		}
		row.Percents[c.Stage] = v
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		if n < 0 {
			return fmt.Errorf("negative count %d", n)
		}
		row.Counts[c.Stage] = n
		return nil
	}
	// Older snapshots store counts as floats ("4.0").
	f, ferr := strconv.ParseFloat(raw, 64)
	if ferr != nil || f != math.Trunc(f) || f < 0 {
		return fmt.Errorf("parse count %q: %w", raw, err)
	}
	row.Counts[c.Stage] = int64(f)
	return nil
}
