package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
)

// stubCounter returns fixed values per date and records how often it ran.
type stubCounter struct {
	values map[string]int64
	err    error
	calls  int
}

func (s *stubCounter) Count(_ context.Context, d daterange.Date) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.values[d.String()], nil
}

func fixed(v int64) *stubCounter {
	return &stubCounter{values: map[string]int64{"2019-01-01": v}}
}

func jan1(t *testing.T) daterange.Date {
	t.Helper()
	d, err := daterange.Parse("2019-01-01")
	require.NoError(t, err)
	return d
}

func TestAggregateComputesPercentOfParent(t *testing.T) {
	t.Parallel()

	p, err := pipeline.New("stereoTop", []pipeline.Stage{
		{Name: "stereoTop", Counter: fixed(10)},
		{Name: "bin2tif", Parent: "stereoTop", Counter: fixed(4)},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	require.Empty(t, res.Errors)
	assert.Equal(t, int64(10), res.Row.Counts["stereoTop"])
	assert.Equal(t, int64(4), res.Row.Counts["bin2tif"])
	assert.InDelta(t, 0.4, res.Row.Percents["bin2tif"], 1e-12)
	_, hasRootPct := res.Row.Percents["stereoTop"]
	assert.False(t, hasRootPct)
}

func TestAggregateZeroParentYieldsZeroPercent(t *testing.T) {
	t.Parallel()

	p, err := pipeline.New("flirIrCamera", []pipeline.Stage{
		{Name: "flirIrCamera", Counter: fixed(0)},
		{Name: "flir2tif", Parent: "flirIrCamera", Counter: fixed(3)},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	pct, ok := res.Row.Percents["flir2tif"]
	require.True(t, ok)
	assert.Zero(t, pct)
}

func TestAggregatePercentMatchesRatioForEveryParentedStage(t *testing.T) {
	t.Parallel()

	counts := map[string]int64{"raw": 12, "l1": 9, "rule": 3, "ff": 0, "cover": 0}
	p, err := pipeline.New("p", []pipeline.Stage{
		{Name: "raw", Counter: fixed(counts["raw"])},
		{Name: "l1", Parent: "raw", Counter: fixed(counts["l1"])},
		{Name: "rule", Parent: "l1", Counter: fixed(counts["rule"])},
		{Name: "ff", Counter: fixed(counts["ff"])},
		{Name: "cover", Parent: "ff", Counter: fixed(counts["cover"])},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	for _, st := range p.Stages() {
		if !st.HasParent() {
			continue
		}
		assert.InDelta(t, Ratio(counts[st.Name], counts[st.Parent]), res.Row.Percents[st.Name], 1e-12, st.Name)
	}
}

func TestAggregateCountsSharedParentOnce(t *testing.T) {
	t.Parallel()

	parent := fixed(8)
	p, err := pipeline.New("p", []pipeline.Stage{
		{Name: "a", Parent: "root", Counter: fixed(2)},
		{Name: "b", Parent: "root", Counter: fixed(4)},
		{Name: "root", Counter: parent},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	assert.Equal(t, 1, parent.calls, "parent is memoized within the date")
	assert.InDelta(t, 0.25, res.Row.Percents["a"], 1e-12)
	assert.InDelta(t, 0.5, res.Row.Percents["b"], 1e-12)
	assert.Equal(t, int64(8), res.Row.Counts["root"])
}

func TestAggregateCacheDoesNotLeakAcrossDates(t *testing.T) {
	t.Parallel()

	root := &stubCounter{values: map[string]int64{"2019-01-01": 10, "2019-01-02": 5}}
	p, err := pipeline.New("p", []pipeline.Stage{
		{Name: "root", Counter: root},
		{Name: "child", Parent: "root", Counter: &stubCounter{values: map[string]int64{"2019-01-01": 5, "2019-01-02": 5}}},
	})
	require.NoError(t, err)

	d1 := jan1(t)
	first := Aggregate(context.Background(), p, d1)
	second := Aggregate(context.Background(), p, d1.AddDays(1))

	assert.InDelta(t, 0.5, first.Row.Percents["child"], 1e-12)
	assert.InDelta(t, 1.0, second.Row.Percents["child"], 1e-12)
	assert.Equal(t, 2, root.calls)
}

func TestAggregateIsolatesStageFailures(t *testing.T) {
	t.Parallel()

	dbDown := errors.New("connection refused")
	p, err := pipeline.New("stereoTop", []pipeline.Stage{
		{Name: "stereoTop", Counter: fixed(10)},
		{Name: "bin2tif", Parent: "stereoTop", Counter: fixed(4)},
		{Name: "rulechecker", Parent: "bin2tif", Counter: &stubCounter{err: dbDown}},
		{Name: "fullfield", Counter: fixed(2)},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "rulechecker", res.Errors[0].Stage)
	require.ErrorIs(t, res.Errors[0], dbDown)
	assert.True(t, res.Failed("rulechecker"))
	assert.False(t, res.Failed("bin2tif"))

	_, hasCount := res.Row.Counts["rulechecker"]
	_, hasPct := res.Row.Percents["rulechecker"]
	assert.False(t, hasCount)
	assert.False(t, hasPct)
	assert.Equal(t, int64(2), res.Row.Counts["fullfield"])
	assert.InDelta(t, 0.4, res.Row.Percents["bin2tif"], 1e-12)
}

func TestAggregateFailedParentDropsChildPercent(t *testing.T) {
	t.Parallel()

	parent := &stubCounter{err: errors.New("timeout")}
	p, err := pipeline.New("p", []pipeline.Stage{
		{Name: "child", Parent: "root", Counter: fixed(3)},
		{Name: "root", Counter: parent},
	})
	require.NoError(t, err)

	res := Aggregate(context.Background(), p, jan1(t))
	assert.Equal(t, int64(3), res.Row.Counts["child"])
	_, hasPct := res.Row.Percents["child"]
	assert.False(t, hasPct)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "root", res.Errors[0].Stage)
	assert.Equal(t, 1, parent.calls, "a failed parent is not retried within the date")
}

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Ratio(5, 0))
	assert.InDelta(t, 0.4, Ratio(4, 10), 1e-12)
	assert.InDelta(t, 1.5, Ratio(3, 2), 1e-12)
}
