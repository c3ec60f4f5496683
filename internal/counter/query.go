package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
)

// Querier is the subset of pgxpool.Pool used by Query. pgxmock pools satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Query counts by running a scalar query against Postgres.
type Query struct {
	db       Querier
	template string
}

// NewQuery creates a Query counter. The template must reference the date as $1.
func NewQuery(db Querier, template string) (*Query, error) {
	if db == nil {
		return nil, fmt.Errorf("query counter: database is required")
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("query counter: query is required")
	}
	if !strings.Contains(template, "$1") {
		return nil, fmt.Errorf("query counter: query must bind the date as $1")
	}
	return &Query{db: db, template: template}, nil
}

// Count implements Counter.
func (c *Query) Count(ctx context.Context, date daterange.Date) (int64, error) {
	var n pgtype.Int8
	err := c.db.QueryRow(ctx, c.template, date.String()).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrQuery, date, err)
	}
	// NULL aggregates (e.g. SUM over no rows) mean nothing was produced.
	if !n.Valid {
		return 0, nil
	}
	if n.Int64 < 0 {
		return 0, fmt.Errorf("%w: %s: negative count %d", ErrQuery, date, n.Int64)
	}
	return n.Int64, nil
}
