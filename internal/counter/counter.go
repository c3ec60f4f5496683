// Package counter implements the strategies that count a stage's artifacts
// for a single date.
//
// Three strategies exist and share the Counter contract:
//   - Directory counts the entries directly under {root}/{date}.
//   - Pattern counts files under every {root}/{date}/{timestamp} directory
//     whose name matches a regular expression.
//   - Query runs a scalar SQL query with the date bound as $1.
//
// A missing date directory is absence of activity, not an error, and counts
// as zero. Query failures are infrastructure faults and are returned.
package counter

import (
	"context"
	"errors"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
)

// Kind names a counting strategy in configuration.
type Kind string

const (
	// KindDirectory selects the Directory strategy.
	KindDirectory Kind = "directory"
	// KindPattern selects the Pattern strategy.
	KindPattern Kind = "pattern"
	// KindQuery selects the Query strategy.
	KindQuery Kind = "query"
)

// ErrQuery marks a failed external aggregate query.
var ErrQuery = errors.New("counter query failed")

// Counter returns the number of artifacts a stage produced on date.
type Counter interface {
	Count(ctx context.Context, date daterange.Date) (int64, error)
}
