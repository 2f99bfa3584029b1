package aggregate

import (
	"fmt"
	"time"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// Options tunes Analyze.
type Options struct {
	Boundaries phase.Boundaries
	Window     int
	TopN       int
	Epoch      time.Time
	FromYear   int
	ToYear     int
}

// DefaultOptions returns the settings of the 2019 vs 2020 study.
func DefaultOptions() Options {
	return Options{
		Boundaries: phase.Default(),
		Window:     DefaultWindow,
		TopN:       5,
		Epoch:      DefaultEpoch,
		FromYear:   2019,
		ToYear:     2020,
	}
}

// Analysis bundles every summary table computed for one run.
type Analysis struct {
	Total         int
	PhaseCounts   map[phase.Phase]int
	DailyAverages map[phase.Phase]float64
	PhaseChange   map[phase.Phase]*float64

	Daily        []DailyPoint
	YearOverYear []YearOverYearPoint

	MonthBorough  []GroupCount
	YearTotals    []GroupCount
	BoroughChange []BoroughChange
	BoroughImpact []BoroughImpact

	CategoryChanges []CategoryChange
	TopCategories   []BoroughCategory
	CategoryShare   []CategoryShare
	Correlation     CorrelationMatrix
	Rising          []CategoryDelta

	Regressions []BoroughRegression
	Drivers     Drivers

	HeatFrames []HeatFrame
	Milestones []phase.Milestone

	opts Options
}

// Options returns the settings the analysis was computed with.
func (a *Analysis) Options() Options {
	return a.opts
}

// Analyze runs every aggregation over phase-tagged records.
func Analyze(records []complaint.Complaint, opts Options) (*Analysis, error) {
	a := &Analysis{
		Total:       len(records),
		PhaseCounts: PhaseCounts(records),
		Milestones:  opts.Boundaries.Milestones(),
		opts:        opts,
	}

	a.DailyAverages = DailyAverages(records, opts.Boundaries)
	a.PhaseChange = make(map[phase.Phase]*float64, len(phase.All))
	for _, p := range phase.All {
		a.PhaseChange[p] = PercentChange(a.DailyAverages[phase.PreCovid], a.DailyAverages[p])
	}

	var err error
	if a.Daily, err = Daily(records, opts.Window); err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	from, err := Daily(FilterYear(records, opts.FromYear), opts.Window)
	if err != nil {
		return nil, fmt.Errorf("daily trend %d: %w", opts.FromYear, err)
	}
	to, err := Daily(FilterYear(records, opts.ToYear), opts.Window)
	if err != nil {
		return nil, fmt.Errorf("daily trend %d: %w", opts.ToYear, err)
	}
	a.YearOverYear = YearOverYear(from, to)

	a.MonthBorough, err = Reindex(Count(records, DimMonth, DimBorough), Values(records, DimMonth), boroughsOf(records))
	if err != nil {
		return nil, fmt.Errorf("month by borough: %w", err)
	}
	a.YearTotals = YearTotals(records)
	a.BoroughChange = BoroughYearChange(records, opts.FromYear, opts.ToYear)
	a.BoroughImpact = BoroughImpacts(records, opts.Boundaries)

	a.CategoryChanges = CategoryChanges(records, opts.TopN, opts.FromYear, opts.ToYear)
	a.TopCategories = TopCategoriesByBorough(records, opts.TopN)
	a.CategoryShare = MonthlyCategoryShare(records, opts.TopN)
	a.Correlation = CategoryCorrelation(records, opts.TopN)
	a.Rising = RisingCategories(records, opts.TopN, opts.FromYear, opts.ToYear)

	a.Regressions = Regress(records, opts.Epoch)
	a.Drivers = KeyDrivers(a.Regressions)

	a.HeatFrames = HeatFrames(records)
	return a, nil
}
