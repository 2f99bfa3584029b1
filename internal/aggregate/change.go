package aggregate

import (
	"sort"
)

// PercentChange returns (cur-old)/old*100. A zero base has no defined
// change and yields nil.
func PercentChange(old, cur float64) *float64 {
	if old == 0 {
		return nil
	}
	v := (cur - old) / old * 100
	return &v
}

// YearOverYearPoint compares two years' rolling means on the same
// calendar day.
type YearOverYearPoint struct {
	MonthDay string // MM-DD
	From     *float64
	To       *float64
	Change   *float64
}

// YearOverYear aligns two daily series by month and day. Change is nil
// wherever either rolling mean is undefined or the base is zero.
func YearOverYear(from, to []DailyPoint) []YearOverYearPoint {
	byDay := make(map[string]*YearOverYearPoint)
	get := func(key string) *YearOverYearPoint {
		p, ok := byDay[key]
		if !ok {
			p = &YearOverYearPoint{MonthDay: key}
			byDay[key] = p
		}
		return p
	}
	for _, d := range from {
		get(d.Date.Format("01-02")).From = d.Rolling
	}
	for _, d := range to {
		get(d.Date.Format("01-02")).To = d.Rolling
	}

	out := make([]YearOverYearPoint, 0, len(byDay))
	for _, p := range byDay {
		if p.From != nil && p.To != nil {
			p.Change = PercentChange(*p.From, *p.To)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthDay < out[j].MonthDay })
	return out
}
