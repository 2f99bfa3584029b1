package aggregate

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
)

// CorrelationMatrix holds pairwise Pearson correlations. Values[i][j] is nil
// when either series is constant.
type CorrelationMatrix struct {
	Categories []string
	Values     [][]*float64
}

// CategoryCorrelation correlates the daily counts of the n most frequent
// categories. Every day with at least one record is a sample; a category
// with no records that day counts zero.
func CategoryCorrelation(records []complaint.Complaint, n int) CorrelationMatrix {
	top := topCategories(records, n)
	col := make(map[string]int, len(top))
	for i, c := range top {
		col[c] = i
	}

	dayIndex := make(map[time.Time]int)
	var days []time.Time
	for _, r := range records {
		if _, ok := dayIndex[r.Date]; !ok {
			dayIndex[r.Date] = 0
			days = append(days, r.Date)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for i, d := range days {
		dayIndex[d] = i
	}

	series := make([][]float64, len(top))
	for i := range series {
		series[i] = make([]float64, len(days))
	}
	for _, r := range records {
		if c, ok := col[r.Category]; ok {
			series[c][dayIndex[r.Date]]++
		}
	}

	m := CorrelationMatrix{Categories: top, Values: make([][]*float64, len(top))}
	for i := range top {
		m.Values[i] = make([]*float64, len(top))
		for j := range top {
			if len(days) < 2 {
				continue
			}
			v := stat.Correlation(series[i], series[j], nil)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			m.Values[i][j] = &v
		}
	}
	return m
}
