// Package daterange produces the calendar dates a scan covers.
package daterange

import (
	"fmt"
	"time"
)

// Layout is the on-disk and wire format of a Date.
const Layout = "2006-01-02"

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse reads a Date in Layout form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Of(t), nil
}

// Of returns the calendar date of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date using Layout.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.time().Before(other.time())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Of(d.time().AddDate(0, 0, n))
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Generate returns every date from epoch through the calendar date of now,
// inclusive. The result is empty when epoch is after today.
func Generate(epoch Date, now time.Time) []Date {
	today := Of(now)
	if today.Before(epoch) {
		return nil
	}
	days := int(today.time().Sub(epoch.time()).Hours()/24) + 1
	out := make([]Date, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, epoch.AddDays(i))
	}
	return out
}
