package aggregate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// rec builds a tagged complaint at noon on the given day.
func rec(y int, m time.Month, d int, borough, category string) complaint.Complaint {
	ts := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	wd := ts.Weekday()
	return complaint.Complaint{
		CreatedAt: ts,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Year:      y,
		Month:     m,
		Day:       d,
		Hour:      12,
		Weekday:   wd.String(),
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
		Borough:   borough,
		Category:  category,
		Latitude:  40.7,
		Longitude: -73.9,
		Phase:     phase.Default().Classify(ts),
	}
}

func repeat(n int, c complaint.Complaint) []complaint.Complaint {
	out := make([]complaint.Complaint, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestPhaseCountsSynthetic(t *testing.T) {
	var records []complaint.Complaint
	records = append(records, repeat(10, rec(2019, time.June, 1, complaint.Queens, "Residential"))...)
	records = append(records, repeat(5, rec(2020, time.April, 1, complaint.Queens, "Residential"))...)
	records = append(records, repeat(20, rec(2020, time.August, 1, complaint.Queens, "Residential"))...)

	got := PhaseCounts(records)
	want := map[phase.Phase]int{phase.PreCovid: 10, phase.Lockdown: 5, phase.Reopening: 20}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("phase counts mismatch (-want +got):\n%s", diff)
	}

	total := 0
	for _, n := range got {
		total += n
	}
	assert.Equal(t, 35, total)
}

func TestPhaseCountsEmpty(t *testing.T) {
	got := PhaseCounts(nil)
	assert.Len(t, got, 3)
	for _, p := range phase.All {
		assert.Zero(t, got[p])
	}
}

func TestCountSortsAndOmitsMissing(t *testing.T) {
	records := []complaint.Complaint{
		rec(2020, time.August, 1, complaint.Queens, "Vehicle"),
		rec(2019, time.June, 1, complaint.Bronx, "Residential"),
		rec(2020, time.April, 1, complaint.Bronx, "Residential"),
		rec(2019, time.June, 2, complaint.Bronx, "Residential"),
	}

	got := Count(records, DimPhase, DimBorough)
	want := []GroupCount{
		{Key: []string{"PreCovid", complaint.Bronx}, Count: 2},
		{Key: []string{"Lockdown", complaint.Bronx}, Count: 1},
		{Key: []string{"Reopening", complaint.Queens}, Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Count mismatch (-want +got):\n%s", diff)
	}

	byYear := Count(records, DimYear)
	require.Len(t, byYear, 2)
	assert.Equal(t, []string{"2019"}, byYear[0].Key)
	assert.Equal(t, 2, byYear[0].Count)
}

func TestCountDimensions(t *testing.T) {
	r := rec(2020, time.March, 22, complaint.Manhattan, "Helicopter")
	for _, tt := range []struct {
		dim  Dimension
		want string
	}{
		{DimDate, "2020-03-22"},
		{DimMonth, "2020-03"},
		{DimYear, "2020"},
		{DimBorough, complaint.Manhattan},
		{DimCategory, "Helicopter"},
		{DimPhase, "Lockdown"},
	} {
		got := Count([]complaint.Complaint{r}, tt.dim)
		require.Len(t, got, 1)
		assert.Equal(t, tt.want, got[0].Key[0], "dimension %s", tt.dim)
	}
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension("borough")
	require.NoError(t, err)
	assert.Equal(t, DimBorough, d)

	_, err = ParseDimension("zip")
	assert.Error(t, err)
}

func TestReindexFillsZeros(t *testing.T) {
	counts := []GroupCount{
		{Key: []string{"2020-01", complaint.Bronx}, Count: 3},
		{Key: []string{"2020-02", complaint.Queens}, Count: 1},
		{Key: []string{"2020-03", complaint.Queens}, Count: 9},
	}
	got, err := Reindex(counts, []string{"2020-01", "2020-02"}, []string{complaint.Bronx, complaint.Queens})
	require.NoError(t, err)

	want := []GroupCount{
		{Key: []string{"2020-01", complaint.Bronx}, Count: 3},
		{Key: []string{"2020-01", complaint.Queens}, Count: 0},
		{Key: []string{"2020-02", complaint.Bronx}, Count: 0},
		{Key: []string{"2020-02", complaint.Queens}, Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reindex mismatch (-want +got):\n%s", diff)
	}
}

func TestReindexRejectsArityMismatch(t *testing.T) {
	_, err := Reindex([]GroupCount{{Key: []string{"a", "b"}, Count: 1}}, []string{"a"})
	assert.Error(t, err)
}

func TestValues(t *testing.T) {
	records := []complaint.Complaint{
		rec(2020, time.February, 1, complaint.Queens, "Vehicle"),
		rec(2019, time.June, 1, complaint.Bronx, "Residential"),
		rec(2020, time.February, 3, complaint.Bronx, "Residential"),
	}
	assert.Equal(t, []string{"2019-06", "2020-02"}, Values(records, DimMonth))
	assert.Equal(t, []string{complaint.Bronx, complaint.Queens}, Values(records, DimBorough))
}

func TestBoroughsOfAppendsUnknown(t *testing.T) {
	assert.Equal(t, complaint.Boroughs, boroughsOf(nil))

	got := boroughsOf([]complaint.Complaint{rec(2019, time.May, 1, complaint.Unknown, "Other")})
	assert.Equal(t, complaint.Unknown, got[len(got)-1])
	assert.Len(t, got, 6)
}
