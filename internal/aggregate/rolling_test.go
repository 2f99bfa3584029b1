package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
)

func TestRollingMeanTenDays(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got, err := RollingMean(values, 7)
	require.NoError(t, err)
	require.Len(t, got, 10)

	for _, i := range []int{0, 1, 2, 7, 8, 9} {
		assert.Nil(t, got[i], "index %d should be undefined", i)
	}
	for i := 3; i <= 6; i++ {
		require.NotNil(t, got[i], "index %d should be defined", i)
		var sum float64
		for _, v := range values[i-3 : i+4] {
			sum += v
		}
		assert.InDelta(t, sum/7, *got[i], 1e-9, "index %d", i)
	}
}

func TestRollingMeanShortSeries(t *testing.T) {
	got, err := RollingMean([]float64{5, 5, 5}, 7)
	require.NoError(t, err)
	assert.Equal(t, []*float64{nil, nil, nil}, got)
}

func TestRollingMeanRejectsBadWindow(t *testing.T) {
	for _, w := range []int{0, -3, 4} {
		_, err := RollingMean([]float64{1, 2, 3, 4, 5}, w)
		assert.Error(t, err, "window %d", w)
	}
}

func TestRollingMeanWindowOne(t *testing.T) {
	got, err := RollingMean([]float64{3, 1, 4}, 1)
	require.NoError(t, err)
	for i, v := range []float64{3, 1, 4} {
		require.NotNil(t, got[i])
		assert.Equal(t, v, *got[i])
	}
}

func TestDailyUsesObservedDays(t *testing.T) {
	var records []complaint.Complaint
	records = append(records, repeat(2, rec(2019, time.January, 3, complaint.Queens, "Vehicle"))...)
	records = append(records, rec(2019, time.January, 1, complaint.Queens, "Vehicle"))
	records = append(records, repeat(4, rec(2019, time.January, 10, complaint.Bronx, "Vehicle"))...)

	got, err := Daily(records, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), got[0].Date)
	assert.Equal(t, []int{1, 2, 4}, []int{got[0].Count, got[1].Count, got[2].Count})
	assert.Nil(t, got[0].Rolling)
	require.NotNil(t, got[1].Rolling)
	assert.InDelta(t, 7.0/3, *got[1].Rolling, 1e-9)
	assert.Nil(t, got[2].Rolling)
}

func TestFilterYear(t *testing.T) {
	records := []complaint.Complaint{
		rec(2019, time.December, 31, complaint.Queens, "Vehicle"),
		rec(2020, time.January, 1, complaint.Queens, "Vehicle"),
	}
	got := FilterYear(records, 2020)
	require.Len(t, got, 1)
	assert.Equal(t, 2020, got[0].Year)
}
