package phase

import (
	"fmt"
	"time"
)

// Phase is one of the three contiguous COVID-19 policy periods.
// The zero value means the record has not been classified yet.
type Phase int

const (
	Unassigned Phase = iota
	PreCovid
	Lockdown
	Reopening
)

// All lists the assignable phases in chronological order.
var All = []Phase{PreCovid, Lockdown, Reopening}

func (p Phase) String() string {
	switch p {
	case PreCovid:
		return "PreCovid"
	case Lockdown:
		return "Lockdown"
	case Reopening:
		return "Reopening"
	default:
		return "Unassigned"
	}
}

// Label returns the human-readable name used in reports.
func (p Phase) Label() string {
	switch p {
	case PreCovid:
		return "Pre-COVID"
	case Lockdown:
		return "Lockdown"
	case Reopening:
		return "Reopening"
	default:
		return "Unassigned"
	}
}

// Parse converts a phase name (String or Label form) back to a Phase.
func Parse(s string) (Phase, error) {
	for _, p := range All {
		if s == p.String() || s == p.Label() {
			return p, nil
		}
	}
	return Unassigned, fmt.Errorf("unknown phase %q", s)
}

const dateLayout = "2006-01-02"

// Boundaries holds the calendar policy that defines the phases.
// Intervals are half-open: PreCovid (-inf, LockdownStart),
// Lockdown [LockdownStart, ReopeningStart), Reopening [ReopeningStart, inf).
type Boundaries struct {
	LockdownStart  time.Time
	ReopeningStart time.Time

	// Phase3Start marks a later reopening milestone for reports only.
	Phase3Start time.Time

	// AnalysisEnd is the last calendar day of the study window.
	AnalysisEnd time.Time

	// BaselineStart and BaselineEnd bound the pre-COVID comparison year.
	BaselineStart time.Time
	BaselineEnd   time.Time
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Default returns the NYC policy dates used throughout the analysis.
func Default() Boundaries {
	return Boundaries{
		LockdownStart:  date(2020, time.March, 22),
		ReopeningStart: date(2020, time.June, 8),
		Phase3Start:    date(2020, time.July, 6),
		AnalysisEnd:    date(2020, time.December, 31),
		BaselineStart:  date(2019, time.January, 1),
		BaselineEnd:    date(2019, time.December, 31),
	}
}

// Classify returns the phase containing t. It is total: every instant
// maps to exactly one phase.
func (b Boundaries) Classify(t time.Time) Phase {
	switch {
	case t.Before(b.LockdownStart):
		return PreCovid
	case t.Before(b.ReopeningStart):
		return Lockdown
	default:
		return Reopening
	}
}

// Days returns the fixed calendar length used as the denominator for a
// phase's daily average.
func (b Boundaries) Days(p Phase) int {
	switch p {
	case PreCovid:
		return daysBetween(b.BaselineStart, b.BaselineEnd) + 1
	case Lockdown:
		return daysBetween(b.LockdownStart, b.ReopeningStart)
	case Reopening:
		return daysBetween(b.ReopeningStart, b.AnalysisEnd) + 1
	default:
		return 0
	}
}

// InBaseline reports whether t falls on a day inside the baseline window.
func (b Boundaries) InBaseline(t time.Time) bool {
	return !t.Before(b.BaselineStart) && t.Before(b.BaselineEnd.AddDate(0, 0, 1))
}

// Validate checks that the boundaries are ordered.
func (b Boundaries) Validate() error {
	if !b.LockdownStart.Before(b.ReopeningStart) {
		return fmt.Errorf("lockdown start %s must precede reopening start %s",
			b.LockdownStart.Format(dateLayout), b.ReopeningStart.Format(dateLayout))
	}
	if b.AnalysisEnd.Before(b.ReopeningStart) {
		return fmt.Errorf("analysis end %s precedes reopening start %s",
			b.AnalysisEnd.Format(dateLayout), b.ReopeningStart.Format(dateLayout))
	}
	if b.BaselineEnd.Before(b.BaselineStart) {
		return fmt.Errorf("baseline end %s precedes baseline start %s",
			b.BaselineEnd.Format(dateLayout), b.BaselineStart.Format(dateLayout))
	}
	return nil
}

// Milestone is a labelled date drawn on time-series charts.
type Milestone struct {
	Date  time.Time
	Label string
}

// Milestones returns the policy dates in chronological order.
func (b Boundaries) Milestones() []Milestone {
	ms := []Milestone{
		{Date: b.LockdownStart, Label: "Lockdown"},
		{Date: b.ReopeningStart, Label: "Phase 1"},
	}
	if !b.Phase3Start.IsZero() {
		ms = append(ms, Milestone{Date: b.Phase3Start, Label: "Phase 3"})
	}
	return ms
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
