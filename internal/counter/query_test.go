package counter

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ruleQuery = `select count(distinct file_path) from extractor_ids ` +
	`where output like 'Full Field -- RGB GeoTIFFs - ' || $1 || '%'`

func TestQueryBindsDate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(ruleQuery)).
		WithArgs("2019-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	c, err := NewQuery(mock, ruleQuery)
	require.NoError(t, err)

	n, err := c.Count(context.Background(), date(t, "2019-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryReusesConnectionAcrossDates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c, err := NewQuery(mock, ruleQuery)
	require.NoError(t, err)

	for i, d := range []string{"2019-01-01", "2019-01-02", "2019-01-03"} {
		mock.ExpectQuery("select count").
			WithArgs(d).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(i)))
	}
	for i, d := range []string{"2019-01-01", "2019-01-02", "2019-01-03"} {
		n, err := c.Count(context.Background(), date(t, d))
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFailureIsHardError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset by peer")
	mock.ExpectQuery("select count").WithArgs("2019-01-01").WillReturnError(boom)

	c, err := NewQuery(mock, ruleQuery)
	require.NoError(t, err)

	n, err := c.Count(context.Background(), date(t, "2019-01-01"))
	require.ErrorIs(t, err, ErrQuery)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestQueryNoRowsIsZero(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("select count").
		WithArgs("2019-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"count"}))

	c, err := NewQuery(mock, ruleQuery)
	require.NoError(t, err)

	n, err := c.Count(context.Background(), date(t, "2019-01-01"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryNegativeResultIsError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("select count").
		WithArgs("2019-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(-3)))

	c, err := NewQuery(mock, ruleQuery)
	require.NoError(t, err)

	n, err := c.Count(context.Background(), date(t, "2019-01-01"))
	require.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), "negative count -3")
	assert.Zero(t, n)
}

func TestNewQueryValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewQuery(nil, ruleQuery)
	require.Error(t, err)
	_, err = NewQuery(mock, "  ")
	require.Error(t, err)
	_, err = NewQuery(mock, "select count(*) from extractor_ids")
	require.Error(t, err)
}
