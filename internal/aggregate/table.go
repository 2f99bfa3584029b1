package aggregate

import (
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// Table is a named summary table handed to exporters.
type Table struct {
	Name  string
	Frame dataframe.DataFrame
}

func strCol(name string, v []string) series.Series {
	return series.New(v, series.String, name)
}

func intCol(name string, v []int) series.Series {
	return series.New(v, series.Int, name)
}

func floatCol(name string, v []float64) series.Series {
	return series.New(v, series.Float, name)
}

// optCol builds a float column where nil becomes NA.
func optCol(name string, v []*float64) series.Series {
	s := make([]string, len(v))
	for i, f := range v {
		if f == nil {
			s[i] = "NaN"
			continue
		}
		s[i] = strconv.FormatFloat(*f, 'f', -1, 64)
	}
	return series.New(s, series.Float, name)
}

// CountsTable lays out grouped counts with one column per dimension.
func CountsTable(counts []GroupCount, dims []Dimension) dataframe.DataFrame {
	cols := make([][]string, len(dims))
	n := make([]int, len(counts))
	for i, c := range counts {
		for d := range dims {
			cols[d] = append(cols[d], c.Key[d])
		}
		n[i] = c.Count
	}
	ss := make([]series.Series, 0, len(dims)+1)
	for d, dim := range dims {
		if cols[d] == nil {
			cols[d] = []string{}
		}
		ss = append(ss, strCol(string(dim), cols[d]))
	}
	ss = append(ss, intCol("count", n))
	return dataframe.New(ss...)
}

// PhaseTable lists per-phase totals, calendar days, daily averages and the
// change of each phase's daily average against PreCovid.
func (a *Analysis) PhaseTable() dataframe.DataFrame {
	var names []string
	var counts, days []int
	var avgs []float64
	var change []*float64
	for _, p := range phase.All {
		names = append(names, p.String())
		counts = append(counts, a.PhaseCounts[p])
		days = append(days, a.opts.Boundaries.Days(p))
		avgs = append(avgs, a.DailyAverages[p])
		change = append(change, a.PhaseChange[p])
	}
	return dataframe.New(
		strCol("phase", names),
		intCol("count", counts),
		intCol("days", days),
		floatCol("daily_average", avgs),
		optCol("change_pct", change),
	)
}

// DailyTable lists daily counts and their rolling mean.
func (a *Analysis) DailyTable() dataframe.DataFrame {
	dates := make([]string, len(a.Daily))
	counts := make([]int, len(a.Daily))
	rolling := make([]*float64, len(a.Daily))
	for i, d := range a.Daily {
		dates[i] = d.Date.Format("2006-01-02")
		counts[i] = d.Count
		rolling[i] = d.Rolling
	}
	return dataframe.New(
		strCol("date", dates),
		intCol("count", counts),
		optCol("rolling_mean", rolling),
	)
}

// YearOverYearTable lists the aligned rolling means of the two years.
func (a *Analysis) YearOverYearTable() dataframe.DataFrame {
	n := len(a.YearOverYear)
	days := make([]string, n)
	from := make([]*float64, n)
	to := make([]*float64, n)
	change := make([]*float64, n)
	for i, p := range a.YearOverYear {
		days[i] = p.MonthDay
		from[i] = p.From
		to[i] = p.To
		change[i] = p.Change
	}
	return dataframe.New(
		strCol("month_day", days),
		optCol("rolling_"+strconv.Itoa(a.opts.FromYear), from),
		optCol("rolling_"+strconv.Itoa(a.opts.ToYear), to),
		optCol("change_pct", change),
	)
}

// BoroughChangeTable lists year totals and change per borough.
func (a *Analysis) BoroughChangeTable() dataframe.DataFrame {
	n := len(a.BoroughChange)
	names := make([]string, n)
	from := make([]int, n)
	to := make([]int, n)
	change := make([]*float64, n)
	for i, b := range a.BoroughChange {
		names[i] = b.Borough
		from[i] = b.From
		to[i] = b.To
		change[i] = b.Change
	}
	return dataframe.New(
		strCol("borough", names),
		intCol("count_"+strconv.Itoa(a.opts.FromYear), from),
		intCol("count_"+strconv.Itoa(a.opts.ToYear), to),
		optCol("change_pct", change),
	)
}

// BoroughImpactTable lists per-borough phase averages and their changes.
func (a *Analysis) BoroughImpactTable() dataframe.DataFrame {
	n := len(a.BoroughImpact)
	names := make([]string, n)
	pre := make([]float64, n)
	lock := make([]float64, n)
	reopen := make([]float64, n)
	impact := make([]*float64, n)
	surge := make([]*float64, n)
	for i, b := range a.BoroughImpact {
		names[i] = b.Borough
		pre[i] = b.PreCovid
		lock[i] = b.Lockdown
		reopen[i] = b.Reopening
		impact[i] = b.LockdownImpact
		surge[i] = b.ReopeningSurge
	}
	return dataframe.New(
		strCol("borough", names),
		floatCol("pre_covid_daily", pre),
		floatCol("lockdown_daily", lock),
		floatCol("reopening_daily", reopen),
		optCol("lockdown_impact_pct", impact),
		optCol("reopening_surge_pct", surge),
	)
}

// CategoryChangeTable lists the top categories' year-over-year change.
func (a *Analysis) CategoryChangeTable() dataframe.DataFrame {
	n := len(a.CategoryChanges)
	names := make([]string, n)
	from := make([]int, n)
	to := make([]int, n)
	change := make([]*float64, n)
	for i, c := range a.CategoryChanges {
		names[i] = c.Category
		from[i] = c.From
		to[i] = c.To
		change[i] = c.Change
	}
	return dataframe.New(
		strCol("category", names),
		intCol("count_"+strconv.Itoa(a.opts.FromYear), from),
		intCol("count_"+strconv.Itoa(a.opts.ToYear), to),
		optCol("change_pct", change),
	)
}

// TopCategoriesTable lists the ranked categories per borough.
func (a *Analysis) TopCategoriesTable() dataframe.DataFrame {
	n := len(a.TopCategories)
	boroughs := make([]string, n)
	ranks := make([]int, n)
	cats := make([]string, n)
	counts := make([]int, n)
	for i, c := range a.TopCategories {
		boroughs[i] = c.Borough
		ranks[i] = c.Rank
		cats[i] = c.Category
		counts[i] = c.Count
	}
	return dataframe.New(
		strCol("borough", boroughs),
		intCol("rank", ranks),
		strCol("category", cats),
		intCol("count", counts),
	)
}

// CategoryShareTable lists monthly category shares.
func (a *Analysis) CategoryShareTable() dataframe.DataFrame {
	n := len(a.CategoryShare)
	months := make([]string, n)
	cats := make([]string, n)
	counts := make([]int, n)
	shares := make([]float64, n)
	for i, s := range a.CategoryShare {
		months[i] = s.Month
		cats[i] = s.Category
		counts[i] = s.Count
		shares[i] = s.Share
	}
	return dataframe.New(
		strCol("month", months),
		strCol("category", cats),
		intCol("count", counts),
		floatCol("share_pct", shares),
	)
}

// CorrelationTable lays the matrix out with one column per category.
func (a *Analysis) CorrelationTable() dataframe.DataFrame {
	m := a.Correlation
	ss := []series.Series{strCol("category", append([]string{}, m.Categories...))}
	for j, c := range m.Categories {
		col := make([]*float64, len(m.Categories))
		for i := range m.Categories {
			col[i] = m.Values[i][j]
		}
		ss = append(ss, optCol(c, col))
	}
	return dataframe.New(ss...)
}

// RisingTable lists the fastest-growing categories per borough.
func (a *Analysis) RisingTable() dataframe.DataFrame {
	n := len(a.Rising)
	boroughs := make([]string, n)
	cats := make([]string, n)
	from := make([]int, n)
	to := make([]int, n)
	inc := make([]int, n)
	for i, d := range a.Rising {
		boroughs[i] = d.Borough
		cats[i] = d.Category
		from[i] = d.From
		to[i] = d.To
		inc[i] = d.Increase
	}
	return dataframe.New(
		strCol("borough", boroughs),
		strCol("category", cats),
		intCol("count_"+strconv.Itoa(a.opts.FromYear), from),
		intCol("count_"+strconv.Itoa(a.opts.ToYear), to),
		intCol("increase", inc),
	)
}

// RegressionTable lists fitted coefficients per borough. Failed fits have NA
// coefficients and an error message.
func (a *Analysis) RegressionTable() dataframe.DataFrame {
	n := len(a.Regressions)
	names := make([]string, n)
	obs := make([]int, n)
	errs := make([]string, n)
	cols := make([][]*float64, 6)
	for i := range cols {
		cols[i] = make([]*float64, n)
	}
	for i, r := range a.Regressions {
		names[i] = r.Borough
		obs[i] = r.Observations
		if r.Err != nil {
			errs[i] = r.Err.Error()
			continue
		}
		c := r.Coefficients
		vals := []float64{c.Intercept, c.Trend, c.Weekend, c.Lockdown, c.Reopening, r.RSquared}
		for k := range vals {
			v := vals[k]
			cols[k][i] = &v
		}
	}
	return dataframe.New(
		strCol("borough", names),
		intCol("observations", obs),
		optCol("intercept", cols[0]),
		optCol("trend", cols[1]),
		optCol("weekend", cols[2]),
		optCol("lockdown", cols[3]),
		optCol("reopening", cols[4]),
		optCol("r_squared", cols[5]),
		strCol("error", errs),
	)
}

// Tables returns every table in export order.
func (a *Analysis) Tables() []Table {
	return []Table{
		{Name: "phase_summary", Frame: a.PhaseTable()},
		{Name: "daily_counts", Frame: a.DailyTable()},
		{Name: "year_over_year", Frame: a.YearOverYearTable()},
		{Name: "month_borough", Frame: CountsTable(a.MonthBorough, []Dimension{DimMonth, DimBorough})},
		{Name: "year_borough", Frame: CountsTable(a.YearTotals, []Dimension{DimYear, DimBorough})},
		{Name: "borough_change", Frame: a.BoroughChangeTable()},
		{Name: "borough_impact", Frame: a.BoroughImpactTable()},
		{Name: "category_change", Frame: a.CategoryChangeTable()},
		{Name: "top_categories", Frame: a.TopCategoriesTable()},
		{Name: "category_share", Frame: a.CategoryShareTable()},
		{Name: "category_correlation", Frame: a.CorrelationTable()},
		{Name: "rising_categories", Frame: a.RisingTable()},
		{Name: "regression", Frame: a.RegressionTable()},
	}
}
