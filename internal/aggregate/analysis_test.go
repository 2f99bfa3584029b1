package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

func analysisFixture() []complaint.Complaint {
	records := categoryFixture()
	records = append(records, synthetic(complaint.Queens, Coefficients{Intercept: 4, Trend: 0.05, Weekend: 2, Lockdown: -2, Reopening: 3})...)
	records = append(records, rec(2020, time.April, 4, complaint.Unknown, "Other"))
	return records
}

func TestAnalyze(t *testing.T) {
	records := analysisFixture()
	a, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, len(records), a.Total)
	total := 0
	for _, n := range a.PhaseCounts {
		total += n
	}
	assert.Equal(t, len(records), total)

	require.NotNil(t, a.PhaseChange[phase.PreCovid])
	assert.InDelta(t, 0.0, *a.PhaseChange[phase.PreCovid], 1e-9)

	months := Values(records, DimMonth)
	assert.Len(t, a.MonthBorough, len(months)*6, "month x borough is fully reindexed")

	assert.NoError(t, find(a.Regressions, complaint.Queens).Err)
	assert.Len(t, a.Milestones, 3)
	assert.NotEmpty(t, a.HeatFrames)
	assert.NotEmpty(t, a.YearOverYear)
}

func TestAnalyzeRejectsEvenWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.Window = 6
	_, err := Analyze(analysisFixture(), opts)
	assert.Error(t, err)
}

func TestAnalyzeDeterministic(t *testing.T) {
	records := analysisFixture()
	a, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)
	b, err := Analyze(records, DefaultOptions())
	require.NoError(t, err)

	ta, tb := a.Tables(), b.Tables()
	require.Len(t, tb, len(ta))
	for i := range ta {
		assert.Equal(t, ta[i].Frame.Records(), tb[i].Frame.Records(), "table %s", ta[i].Name)
	}
}

func TestTablesMarkUndefinedAsNA(t *testing.T) {
	a, err := Analyze(analysisFixture(), DefaultOptions())
	require.NoError(t, err)

	tables := a.Tables()
	names := make(map[string]bool)
	for _, tbl := range tables {
		require.NoError(t, tbl.Frame.Err, "table %s", tbl.Name)
		names[tbl.Name] = true
	}
	for _, n := range []string{"phase_summary", "daily_counts", "borough_impact", "regression", "month_borough"} {
		assert.True(t, names[n], "missing table %s", n)
	}

	daily := a.DailyTable()
	assert.Equal(t, []string{"date", "count", "rolling_mean"}, daily.Names())
	rolling := daily.Col("rolling_mean")
	assert.True(t, rolling.Elem(0).IsNA(), "series edge is undefined")
	assert.False(t, rolling.Elem(3).IsNA())

	impact := a.BoroughImpactTable()
	lockdown := impact.Col("lockdown_impact_pct")
	for i, name := range impact.Col("borough").Records() {
		if name == complaint.StatenIsland {
			assert.True(t, lockdown.Elem(i).IsNA(), "no baseline gives NA")
		}
	}

	reg := a.RegressionTable()
	for i, name := range reg.Col("borough").Records() {
		if name == complaint.Bronx {
			assert.True(t, reg.Col("intercept").Elem(i).IsNA())
			assert.NotEmpty(t, reg.Col("error").Elem(i).String())
		}
	}
}

func TestCountsTable(t *testing.T) {
	df := CountsTable([]GroupCount{
		{Key: []string{"2019", complaint.Bronx}, Count: 4},
		{Key: []string{"2020", complaint.Bronx}, Count: 2},
	}, []Dimension{DimYear, DimBorough})
	require.NoError(t, df.Err)
	assert.Equal(t, []string{"year", "borough", "count"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	counts, err := df.Col("count").Int()
	assert.Equal(t, []int{4, 2}, mustInts(t, counts, err))

	empty := CountsTable(nil, []Dimension{DimMonth})
	require.NoError(t, empty.Err)
	assert.Equal(t, 0, empty.Nrow())
}

func mustInts(t *testing.T, v []int, err error) []int {
	t.Helper()
	require.NoError(t, err)
	return v
}
