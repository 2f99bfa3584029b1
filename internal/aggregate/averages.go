package aggregate

import (
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// DailyAverages divides each phase's total by the phase's calendar length.
// The PreCovid total only counts records inside the baseline window.
func DailyAverages(records []complaint.Complaint, b phase.Boundaries) map[phase.Phase]float64 {
	totals := phaseTotals(records, b)
	out := make(map[phase.Phase]float64, len(phase.All))
	for _, p := range phase.All {
		days := b.Days(p)
		if days <= 0 {
			out[p] = 0
			continue
		}
		out[p] = float64(totals[p]) / float64(days)
	}
	return out
}

func phaseTotals(records []complaint.Complaint, b phase.Boundaries) map[phase.Phase]int {
	totals := make(map[phase.Phase]int, len(phase.All))
	for _, r := range records {
		if r.Phase == phase.PreCovid && !b.InBaseline(r.CreatedAt) {
			continue
		}
		if r.Phase == phase.Reopening && r.Date.After(b.AnalysisEnd) {
			continue
		}
		totals[r.Phase]++
	}
	return totals
}

// BoroughImpact is one borough's daily averages per phase and the change of
// the two pandemic phases against the pre-COVID baseline.
type BoroughImpact struct {
	Borough        string
	PreCovid       float64
	Lockdown       float64
	Reopening      float64
	LockdownImpact *float64
	ReopeningSurge *float64
}

// BoroughImpacts computes BoroughImpact for every borough.
func BoroughImpacts(records []complaint.Complaint, b phase.Boundaries) []BoroughImpact {
	byBorough := make(map[string][]complaint.Complaint)
	for _, r := range records {
		byBorough[r.Borough] = append(byBorough[r.Borough], r)
	}

	var out []BoroughImpact
	for _, name := range boroughsOf(records) {
		avg := DailyAverages(byBorough[name], b)
		out = append(out, BoroughImpact{
			Borough:        name,
			PreCovid:       avg[phase.PreCovid],
			Lockdown:       avg[phase.Lockdown],
			Reopening:      avg[phase.Reopening],
			LockdownImpact: PercentChange(avg[phase.PreCovid], avg[phase.Lockdown]),
			ReopeningSurge: PercentChange(avg[phase.PreCovid], avg[phase.Reopening]),
		})
	}
	return out
}
