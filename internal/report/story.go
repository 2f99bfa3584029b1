package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// RangeStatus describes how one fetched range went.
type RangeStatus struct {
	Range     fetch.Range
	Records   int
	Truncated bool
	Err       error
}

// Meta is the run context printed alongside the analysis.
type Meta struct {
	RunID       string
	GeneratedAt time.Time
	Ranges      []RangeStatus
	Clean       complaint.Stats
}

// Title of the story page.
const Title = "NYC Noise Story: 2019-2020"

// Pct formats a percent change, "n/a" when undefined.
func Pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func num(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// Story assembles the three-act narrative as Markdown.
func Story(a *aggregate.Analysis, meta Meta) string {
	sections := []string{
		header(meta),
		dataSection(meta),
		preCovidSection(a),
		lockdownSection(a),
		reopeningSection(a),
		driversSection(a),
		milestonesSection(a),
	}
	return strings.Join(sections, "\n\n---\n\n") + "\n"
}

func header(meta Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title)
	fmt.Fprintf(&b, "Run `%s`, generated %s.", meta.RunID, meta.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

func dataSection(meta Meta) string {
	var b strings.Builder
	b.WriteString("## The Data\n\n")
	b.WriteString("| Range | Dates | Records | Status |\n|---|---|---:|---|\n")
	for _, r := range meta.Ranges {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case r.Truncated:
			status = "truncated at the row limit"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", cell(r.Range.Label), r.Range.Display(), r.Records, cell(status))
	}

	s := meta.Clean
	fmt.Fprintf(&b, "\n%d complaints kept out of %d fetched (%d dropped: %d bad timestamps, %d bad coordinates, %d outside the city).",
		s.Kept, s.Input, s.Dropped(), s.BadTimestamp, s.BadCoordinates, s.OutOfBounds)

	for _, r := range meta.Ranges {
		if r.Truncated {
			fmt.Fprintf(&b, "\n\n> **Warning:** the %s range hit the row limit, so its counts may be incomplete.", r.Range.Label)
		}
	}
	return b.String()
}

func preCovidSection(a *aggregate.Analysis) string {
	opts := a.Options()
	var b strings.Builder
	b.WriteString("## Act I: The Pre-Pandemic City\n\n")
	fmt.Fprintf(&b, "Through the %d baseline, New York logged %s noise complaints a day.\n\n",
		opts.FromYear, num(a.DailyAverages[phase.PreCovid]))

	b.WriteString("| Category | " + fmt.Sprint(opts.FromYear) + " | " + fmt.Sprint(opts.ToYear) + " | Change |\n|---|---:|---:|---:|\n")
	for _, c := range a.CategoryChanges {
		fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", cell(c.Category), c.From, c.To, Pct(c.Change))
	}
	return strings.TrimRight(b.String(), "\n")
}

func lockdownSection(a *aggregate.Analysis) string {
	var b strings.Builder
	b.WriteString("## Act II: The Great Quieting\n\n")
	fmt.Fprintf(&b, "From %s the city locked down. Complaints averaged %s a day (%s against the baseline).\n\n",
		a.Options().Boundaries.LockdownStart.Format("January 2"),
		num(a.DailyAverages[phase.Lockdown]), Pct(a.PhaseChange[phase.Lockdown]))

	impacts := append([]aggregate.BoroughImpact(nil), a.BoroughImpact...)
	sort.SliceStable(impacts, func(i, j int) bool {
		return lessPct(impacts[i].LockdownImpact, impacts[j].LockdownImpact)
	})
	b.WriteString("| Borough | Pre-COVID / day | Lockdown / day | Impact |\n|---|---:|---:|---:|\n")
	for _, bi := range impacts {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(bi.Borough), num(bi.PreCovid), num(bi.Lockdown), Pct(bi.LockdownImpact))
	}
	return strings.TrimRight(b.String(), "\n")
}

func reopeningSection(a *aggregate.Analysis) string {
	opts := a.Options()
	var b strings.Builder
	b.WriteString("## Act III: The Noise Awakening\n\n")
	fmt.Fprintf(&b, "Reopening began on %s. Complaints climbed to %s a day (%s against the baseline).\n\n",
		opts.Boundaries.ReopeningStart.Format("January 2"),
		num(a.DailyAverages[phase.Reopening]), Pct(a.PhaseChange[phase.Reopening]))

	impacts := append([]aggregate.BoroughImpact(nil), a.BoroughImpact...)
	sort.SliceStable(impacts, func(i, j int) bool {
		return morePct(impacts[i].ReopeningSurge, impacts[j].ReopeningSurge)
	})
	b.WriteString("| Borough | Reopening / day | Surge |\n|---|---:|---:|\n")
	for _, bi := range impacts {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(bi.Borough), num(bi.Reopening), Pct(bi.ReopeningSurge))
	}

	if len(a.Rising) > 0 {
		fmt.Fprintf(&b, "\nFastest-rising categories, %d to %d:\n\n", opts.FromYear, opts.ToYear)
		b.WriteString("| Borough | Category | Increase |\n|---|---|---:|\n")
		for _, r := range a.Rising {
			fmt.Fprintf(&b, "| %s | %s | +%d |\n", cell(r.Borough), cell(r.Category), r.Increase)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func driversSection(a *aggregate.Analysis) string {
	var b strings.Builder
	b.WriteString("## What Drove the Change\n\n")
	d := a.Drivers
	if d.Boroughs == 0 {
		b.WriteString("No borough had enough data for a regression.")
		return b.String()
	}
	fmt.Fprintf(&b, "Across %d boroughs, lockdown moved daily complaints by %+.1f, reopening by %+.1f (spread %.1f), and weekends by %+.1f. ",
		d.Boroughs, d.Lockdown, d.Reopening, d.ReopeningStdDev, d.Weekend)
	fmt.Fprintf(&b, "The strongest reopening effect was in %s (%+.1f a day).\n\n", d.StrongestBorough, d.StrongestSurge)

	b.WriteString("| Borough | Trend | Weekend | Lockdown | Reopening | R² |\n|---|---:|---:|---:|---:|---:|\n")
	for _, r := range a.Regressions {
		if r.Err != nil {
			fmt.Fprintf(&b, "| %s | n/a | n/a | n/a | n/a | n/a |\n", cell(r.Borough))
			continue
		}
		c := r.Coefficients
		fmt.Fprintf(&b, "| %s | %+.3f | %+.1f | %+.1f | %+.1f | %.2f |\n",
			cell(r.Borough), c.Trend, c.Weekend, c.Lockdown, c.Reopening, r.RSquared)
	}
	return strings.TrimRight(b.String(), "\n")
}

func milestonesSection(a *aggregate.Analysis) string {
	var lines []string
	for _, m := range a.Milestones {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", m.Date.Format("2006-01-02"), m.Label))
	}
	return "## Milestones\n\n" + strings.Join(lines, "\n")
}

// lessPct orders percent changes ascending with undefined values last.
func lessPct(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// morePct orders percent changes descending with undefined values last.
func morePct(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}
