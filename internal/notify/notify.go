// Package notify announces completed pipeline scans to downstream consumers.
package notify

import (
	"context"
	"time"
)

// Event describes one pipeline snapshot that was written by a scan.
type Event struct {
	ScanID      string    `json:"scan_id"`
	Pipeline    string    `json:"pipeline"`
	Snapshot    string    `json:"snapshot"`
	Rows        int       `json:"rows"`
	StageErrors int       `json:"stage_errors"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier publishes scan events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) error { return nil }
