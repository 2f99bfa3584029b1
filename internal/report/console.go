package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/database"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// Print writes a short plain-text summary of the analysis.
func Print(w io.Writer, a *aggregate.Analysis, meta Meta) {
	fmt.Fprintf(w, "%s (run %s)\n\n", Title, meta.RunID)

	for _, r := range meta.Ranges {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "  %-8s %-28s FAILED: %v\n", r.Range.Label, r.Range.Display(), r.Err)
		case r.Truncated:
			fmt.Fprintf(w, "  %-8s %-28s %d records (TRUNCATED)\n", r.Range.Label, r.Range.Display(), r.Records)
		default:
			fmt.Fprintf(w, "  %-8s %-28s %d records\n", r.Range.Label, r.Range.Display(), r.Records)
		}
	}
	fmt.Fprintf(w, "  %-37s %d kept, %d dropped\n\n", "cleaned", meta.Clean.Kept, meta.Clean.Dropped())

	fmt.Fprintf(w, "  %-12s %10s %8s %12s %10s\n", "Phase", "Records", "Days", "Per day", "Change")
	for _, p := range phase.All {
		fmt.Fprintf(w, "  %-12s %10d %8d %12.1f %10s\n",
			p.Label(), a.PhaseCounts[p], a.Options().Boundaries.Days(p), a.DailyAverages[p], Pct(a.PhaseChange[p]))
	}

	fmt.Fprintf(w, "\n  %-16s %12s %12s\n", "Borough", "Lockdown", "Reopening")
	for _, b := range a.BoroughImpact {
		fmt.Fprintf(w, "  %-16s %12s %12s\n", b.Borough, Pct(b.LockdownImpact), Pct(b.ReopeningSurge))
	}

	if a.Drivers.Boroughs > 0 {
		fmt.Fprintf(w, "\n  Regression across %d boroughs: lockdown %+.1f/day, reopening %+.1f/day, weekend %+.1f/day\n",
			a.Drivers.Boroughs, a.Drivers.Lockdown, a.Drivers.Reopening, a.Drivers.Weekend)
	}
}

// PrintRun writes the summary of a stored run and its table catalog.
func PrintRun(w io.Writer, run *database.Run, tables []database.TableInfo) {
	fmt.Fprintf(w, "Run %s, started %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "  Lockdown from %s, reopening from %s, through %s\n\n",
		run.LockdownStart, run.ReopeningStart, run.AnalysisEnd)

	for _, r := range run.Ranges {
		status := fmt.Sprintf("%d records", r.Records)
		switch {
		case r.Err != nil:
			status = "FAILED: " + *r.Err
		case r.Truncated:
			status += " (TRUNCATED)"
		}
		fmt.Fprintf(w, "  %-8s %s..%s  %s\n", r.Label, r.Start, r.End, status)
	}
	fmt.Fprintf(w, "  %d fetched, %d kept, %d dropped\n", run.Fetched, run.Kept, run.Dropped)

	reasons := make([]string, 0, len(run.DropReasons))
	for k := range run.DropReasons {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(w, "    %-16s %d\n", k, run.DropReasons[k])
	}

	fmt.Fprintf(w, "\n  %-24s %8s\n", "Table", "Rows")
	for _, t := range tables {
		fmt.Fprintf(w, "  %-24s %8d\n", t.Name, t.RowCount)
	}
}
