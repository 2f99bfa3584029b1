package aggregate

import (
	"sort"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
)

// YearTotals counts records per (year, borough).
func YearTotals(records []complaint.Complaint) []GroupCount {
	return Count(records, DimYear, DimBorough)
}

// BoroughChange is one borough's count in two years and the change.
type BoroughChange struct {
	Borough string
	From    int
	To      int
	Change  *float64
}

// BoroughYearChange compares each borough's totals for fromYear and toYear.
func BoroughYearChange(records []complaint.Complaint, fromYear, toYear int) []BoroughChange {
	from := make(map[string]int)
	to := make(map[string]int)
	for _, r := range records {
		switch r.Year {
		case fromYear:
			from[r.Borough]++
		case toYear:
			to[r.Borough]++
		}
	}

	var out []BoroughChange
	for _, b := range boroughsOf(records) {
		out = append(out, BoroughChange{
			Borough: b,
			From:    from[b],
			To:      to[b],
			Change:  PercentChange(float64(from[b]), float64(to[b])),
		})
	}
	return out
}

// CategoryChange is one category's count in two years and the change.
type CategoryChange struct {
	Category string
	From     int
	To       int
	Change   *float64
}

// CategoryChanges compares the n most frequent categories between two years.
// The result is sorted by change, largest first, with undefined changes last.
func CategoryChanges(records []complaint.Complaint, n, fromYear, toYear int) []CategoryChange {
	from := make(map[string]int)
	to := make(map[string]int)
	var window []complaint.Complaint
	for _, r := range records {
		switch r.Year {
		case fromYear:
			from[r.Category]++
		case toYear:
			to[r.Category]++
		default:
			continue
		}
		window = append(window, r)
	}

	var out []CategoryChange
	for _, c := range topCategories(window, n) {
		out = append(out, CategoryChange{
			Category: c,
			From:     from[c],
			To:       to[c],
			Change:   PercentChange(float64(from[c]), float64(to[c])),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessChange(out[i].Change, out[j].Change)
	})
	return out
}

// lessChange orders changes descending with nil last.
func lessChange(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}

// BoroughCategory is a ranked category within one borough.
type BoroughCategory struct {
	Borough  string
	Rank     int
	Category string
	Count    int
}

// TopCategoriesByBorough returns the n most frequent categories per borough.
func TopCategoriesByBorough(records []complaint.Complaint, n int) []BoroughCategory {
	byBorough := make(map[string][]complaint.Complaint)
	for _, r := range records {
		byBorough[r.Borough] = append(byBorough[r.Borough], r)
	}

	var out []BoroughCategory
	for _, b := range boroughsOf(records) {
		counts := Count(byBorough[b], DimCategory)
		sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
		for i, c := range counts {
			if n > 0 && i >= n {
				break
			}
			out = append(out, BoroughCategory{Borough: b, Rank: i + 1, Category: c.Key[0], Count: c.Count})
		}
	}
	return out
}

// CategoryShare is a category's percentage of one month's top-category total.
type CategoryShare struct {
	Month    string
	Category string
	Count    int
	Share    float64
}

// MonthlyCategoryShare computes, for every month, each top-n category's
// share of that month's complaints across the top-n categories. Months
// without any top-n complaint are omitted.
func MonthlyCategoryShare(records []complaint.Complaint, n int) []CategoryShare {
	top := topCategories(records, n)
	isTop := make(map[string]bool, len(top))
	for _, c := range top {
		isTop[c] = true
	}

	var selected []complaint.Complaint
	for _, r := range records {
		if isTop[r.Category] {
			selected = append(selected, r)
		}
	}

	months := Values(selected, DimMonth)
	counts, err := Reindex(Count(selected, DimMonth, DimCategory), months, top)
	if err != nil {
		return nil
	}

	totals := make(map[string]int, len(months))
	for _, c := range counts {
		totals[c.Key[0]] += c.Count
	}

	out := make([]CategoryShare, 0, len(counts))
	for _, c := range counts {
		out = append(out, CategoryShare{
			Month:    c.Key[0],
			Category: c.Key[1],
			Count:    c.Count,
			Share:    float64(c.Count) / float64(totals[c.Key[0]]) * 100,
		})
	}
	return out
}

// CategoryDelta is a category's growth within one borough.
type CategoryDelta struct {
	Borough  string
	Category string
	From     int
	To       int
	Increase int
}

// RisingCategories returns, per borough, the n categories that grew the most
// in absolute terms from fromYear to toYear. Categories that did not grow
// are left out.
func RisingCategories(records []complaint.Complaint, n, fromYear, toYear int) []CategoryDelta {
	type key struct{ borough, category string }
	from := make(map[key]int)
	to := make(map[key]int)
	for _, r := range records {
		k := key{r.Borough, r.Category}
		switch r.Year {
		case fromYear:
			from[k]++
		case toYear:
			to[k]++
		}
	}

	var out []CategoryDelta
	for _, b := range boroughsOf(records) {
		var deltas []CategoryDelta
		for k, t := range to {
			if k.borough != b || t <= from[k] {
				continue
			}
			deltas = append(deltas, CategoryDelta{
				Borough: b, Category: k.category, From: from[k], To: t, Increase: t - from[k],
			})
		}
		sort.Slice(deltas, func(i, j int) bool {
			if deltas[i].Increase != deltas[j].Increase {
				return deltas[i].Increase > deltas[j].Increase
			}
			return deltas[i].Category < deltas[j].Category
		})
		if n > 0 && len(deltas) > n {
			deltas = deltas[:n]
		}
		out = append(out, deltas...)
	}
	return out
}

// HeatFrame holds one month's complaint locations as [lat, lon] pairs.
type HeatFrame struct {
	Month  string       `json:"month"`
	Points [][2]float64 `json:"points"`
}

// HeatFrames groups complaint coordinates by month, in month order.
func HeatFrames(records []complaint.Complaint) []HeatFrame {
	index := make(map[string]int)
	var out []HeatFrame
	for _, r := range records {
		m := r.MonthKey()
		i, ok := index[m]
		if !ok {
			i = len(out)
			index[m] = i
			out = append(out, HeatFrame{Month: m})
		}
		out[i].Points = append(out[i].Points, [2]float64{r.Latitude, r.Longitude})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
